package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kasbon/kasirsync/internal/presentation/http/dto/response"
	"github.com/kasbon/kasirsync/pkg/authtoken"
)

const scopeClaimsKey = "scope_claims"

// AuthMiddleware validates the bearer token and stores the caller's sync
// scope claims on the request context.
func AuthMiddleware(tokens *authtoken.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := tokens.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(scopeClaimsKey, claims)
		c.Next()
	}
}

// GetScopeClaims extracts the validated scope claims from the Gin context
func GetScopeClaims(c *gin.Context) *authtoken.ScopeClaims {
	val, exists := c.Get(scopeClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := val.(*authtoken.ScopeClaims)
	if !ok {
		return nil
	}
	return claims
}
