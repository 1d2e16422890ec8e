package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const Issuer = "mindradix-similarity"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevoked      = errors.New("token revoked")
)

// Claims identify the calling service, normally the article-management layer.
type Claims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// ServiceTokens issues and validates HS256 service tokens. Revocation is
// tracked in Redis when a client is configured.
type ServiceTokens struct {
	secret []byte
	rdb    *redis.Client
}

func NewServiceTokens(secret string, rdb *redis.Client) (*ServiceTokens, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("SERVICE_TOKEN_SECRET must be at least 32 characters")
	}
	return &ServiceTokens{secret: []byte(secret), rdb: rdb}, nil
}

func (s *ServiceTokens) Issue(service string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   service,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *ServiceTokens) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(Issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if s.rdb != nil && claims.ID != "" {
		revoked, err := s.rdb.Exists(ctx, revokedKey(claims.ID)).Result()
		// Redis being down must not lock every caller out.
		if err == nil && revoked == 1 {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// Revoke blocks jti until it would have expired anyway.
func (s *ServiceTokens) Revoke(ctx context.Context, jti string, remaining time.Duration) error {
	if s.rdb == nil {
		return errors.New("revocation requires Redis")
	}
	return s.rdb.Set(ctx, revokedKey(jti), 1, remaining).Err()
}

func revokedKey(jti string) string {
	return "revoked:" + jti
}
