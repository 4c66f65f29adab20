package httpapi

import (
	"fleet-platform/internal/auth"
	"fleet-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register wires the API onto r. authMW authenticates every /v1 route except
// the dev token endpoint.
func (h Handlers) Register(r gin.IRouter, authMW gin.HandlerFunc, devTokens bool) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	if devTokens {
		v1.POST("/auth/dev-token", h.DevToken)
	}

	api := v1.Group("")
	api.Use(authMW, rbac.RequireActor())
	{
		api.GET("/me", func(c *gin.Context) {
			a, _ := auth.ActorFrom(c.Request.Context())
			c.JSON(200, a)
		})

		req := api.Group("/requests")
		req.POST("", h.CreateRequest)
		req.GET("/:id", h.GetRequest)
		req.POST("/:id/transitions", h.Transition)
		req.PATCH("/:id/priority", h.UpdatePriority)
		req.POST("/:id/messages", h.PostMessage)
		req.POST("/:id/read", h.MarkRead)
		req.POST("/:id/dialogue", h.SetDialogue)
		req.GET("/:id/live", h.Live)

		api.GET("/board", h.Board)
		api.GET("/board/stream", h.BoardStream)

		api.GET("/reports/summary",
			rbac.RequireAnyRole(rbac.RoleSupervisor, rbac.RoleAdmin, rbac.RoleAuditor),
			h.Summary)
		api.GET("/ops/events", rbac.RequireAnyRole(rbac.RoleAdmin), h.OpsEvents)
	}
}
