package rbac

import (
	"net/http"

	"fleet-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireActor enforces that the authenticated identity carries a known role.
// Stage-level authorization is NOT done here; it belongs to the workflow
// Authorization Matrix, which is consulted by the engine alone.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := auth.ActorFrom(c.Request.Context())
		if err != nil || a.ID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "actor required"})
			return
		}
		if _, ok := ParseRole(a.Role); !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unknown role"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// Only used for surfaces outside the workflow (reports, metrics).
func RequireAnyRole(allowed ...Role) gin.HandlerFunc {
	allowedSet := make(map[Role]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		a, err := auth.ActorFrom(c.Request.Context())
		if err != nil || a.Role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		role, ok := ParseRole(a.Role)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
