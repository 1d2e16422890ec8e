package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindradix-similarity/models"
)

func TestAttachmentLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notes.txt":
			w.Write([]byte("plain notes"))
		case "/big.txt":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	loader := NewAttachmentLoader(32)
	got := loader.Load(context.Background(), []models.AttachmentRef{
		{ID: "a", Filename: "notes.txt", URL: srv.URL + "/notes.txt"},
		{ID: "b", Filename: "big.txt", URL: srv.URL + "/big.txt"},
		{ID: "c", Filename: "gone.pdf", URL: srv.URL + "/gone.pdf"},
		{ID: "d", Filename: "bad.txt", URL: "://not a url"},
	})

	require.Len(t, got, 4)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, []byte("plain notes"), got[0].Bytes)
	assert.Equal(t, "big.txt", got[1].Filename)
	assert.Empty(t, got[1].Bytes)
	assert.Empty(t, got[2].Bytes)
	assert.Empty(t, got[3].Bytes)
}
