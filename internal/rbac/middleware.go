package rbac

import (
	"net/http"

	"voice-gateway/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireScope allows a request through only when the verified token carries
// the required scope. Chain it after auth.RequireAccessToken, which puts the
// scope into the request context.
func RequireScope(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		held, err := auth.Scope(c.Request.Context())
		if err != nil || held == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "scope required"})
			return
		}
		if !Grants(held, required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
