package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"mindradix-similarity/internal/auth"
	"mindradix-similarity/internal/logger"
	"mindradix-similarity/utils"
)

const claimsKey = "claims"

// ServiceAuth requires a bearer service token on every request. With no
// token service configured it lets requests through, which is how the
// service runs locally behind the article layer.
func ServiceAuth(tokens *auth.ServiceTokens) gin.HandlerFunc {
	if tokens == nil {
		logger.Warn("Service token auth disabled")
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Service token is required")
			return
		}

		claims, err := tokens.Validate(c.Request.Context(), tokenString)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired service token")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// GetClaims returns the validated caller, or nil when auth is disabled.
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
