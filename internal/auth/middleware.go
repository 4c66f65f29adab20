package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RequireAccessToken verifies an access token and injects the actor into request context.
// It does not perform RBAC checks; those belong to internal/rbac and the workflow matrix.
//
// Browsers cannot set headers on EventSource/WebSocket requests, so an access_token
// query parameter is accepted as a fallback.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := ""
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if strings.HasPrefix(raw, bearerPrefix) {
			tok = strings.TrimPrefix(raw, bearerPrefix)
		} else if q := c.Query("access_token"); q != "" {
			tok = q
		}
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		a := claims.Actor()
		c.Request = c.Request.WithContext(WithActor(c.Request.Context(), a))

		// Also store on gin context for handler convenience.
		c.Set("user_id", a.ID)
		c.Set("role", a.Role)

		c.Next()
	}
}
