package httpapi

import (
	"net/http"
	"time"

	"fleet-platform/internal/auth"
	"fleet-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

type devTokenRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	Name       string `json:"name"`
	Role       string `json:"role" binding:"required"`
	CostCenter string `json:"cost_center"`
}

// DevToken issues a token pair for any identity. Only registered outside
// production; the real directory service issues tokens there.
func (h Handlers) DevToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal", Detail: "auth not configured"})
		return
	}
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	role, ok := rbac.ParseRole(req.Role)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid_json", Detail: "unknown role"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), auth.Actor{ID: req.UserID, Name: req.Name, Role: string(role), CostCenter: req.CostCenter})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal", Detail: "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}
