package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindradix-similarity/internal/auth"
	"mindradix-similarity/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServiceAuth(t *testing.T) {
	tokens, err := auth.NewServiceTokens("0123456789abcdef0123456789abcdef", nil)
	require.NoError(t, err)

	r := gin.New()
	r.Use(ServiceAuth(tokens))
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).Service)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	raw, err := tokens.Issue("articles", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "articles", w.Body.String())
}

func TestServiceAuthDisabled(t *testing.T) {
	r := gin.New()
	r.Use(ServiceAuth(nil))
	r.GET("/x", func(c *gin.Context) {
		assert.Nil(t, GetClaims(c))
		c.Status(http.StatusNoContent)
	})
	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("Bearer "))
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	w = serve(r, req)
	assert.Equal(t, "given-id", w.Header().Get(RequestIDHeader))
}

func TestRequestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimit(10))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("this body is too long")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "request_too_large")

	w = serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("short")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitWithoutRedisPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(nil, &config.Config{RateLimitReqs: 1, RateLimitWindow: 60}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	}
}

func TestMetricsMiddlewareToleratesNilMetrics(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware(), MetricsMiddleware(nil))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	assert.Equal(t, http.StatusAccepted, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}
