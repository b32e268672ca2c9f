// Package middleware provides Gin HTTP middleware for authentication, rate limiting,
// request ids, metrics and security headers.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → Handler
//
// Security headers run first so they appear on all responses including errors.
// Auth only establishes which account is calling. Whether that account may perform
// a privileged operation is decided by the restriction engine against the stored
// account, never by anything the token claims.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/auth"
)

// AccountIDKey is the gin.Context key holding the authenticated account id.
const AccountIDKey = "account_id"

// AuthMiddleware requires a valid bearer session token issued by issuer.
func AuthMiddleware(issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Missing authorization header")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Authorization header must start with 'Bearer '")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			abortUnauthorized(c, "Authorization token is empty")
			return
		}

		claims, err := auth.ValidateJWT(token, issuer)
		if err != nil {
			abortUnauthorized(c, "Invalid credentials")
			return
		}

		c.Set(AccountIDKey, claims.AccountID())
		c.Next()
	}
}

// AccountID returns the authenticated account id, or "" when the request is anonymous.
func AccountID(c *gin.Context) string {
	return c.GetString(AccountIDKey)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": msg,
		"code":  apperr.KindUnauthorized,
	})
}
