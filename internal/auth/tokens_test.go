package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndValidate(t *testing.T) {
	tokens, err := NewServiceTokens(testSecret, nil)
	require.NoError(t, err)

	raw, err := tokens.Issue("articles", time.Minute)
	require.NoError(t, err)

	claims, err := tokens.Validate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "articles", claims.Service)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestShortSecretRejected(t *testing.T) {
	_, err := NewServiceTokens("short", nil)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	tokens, err := NewServiceTokens(testSecret, nil)
	require.NoError(t, err)

	raw, err := tokens.Issue("articles", -time.Minute)
	require.NoError(t, err)
	_, err = tokens.Validate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestWrongSecretOrIssuer(t *testing.T) {
	a, _ := NewServiceTokens(testSecret, nil)
	b, _ := NewServiceTokens(testSecret+"-other", nil)

	raw, err := b.Issue("articles", time.Minute)
	require.NoError(t, err)
	_, err = a.Validate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Service:          "articles",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	})
	signed, err := foreign.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = a.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNoneAlgorithmRejected(t *testing.T) {
	a, _ := NewServiceTokens(testSecret, nil)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Service:          "articles",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer},
	})
	signed, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeWithoutRedis(t *testing.T) {
	a, _ := NewServiceTokens(testSecret, nil)
	assert.Error(t, a.Revoke(context.Background(), "jti", time.Minute))
}
