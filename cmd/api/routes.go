package main

import (
	"fleet-platform/internal/auth"
	"fleet-platform/internal/config"
	"fleet-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, cfg config.Config, d *deps, authManager *auth.Manager) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := httpapi.Handlers{
		Engine:  d.engine,
		Reports: d.reports,
		Audit:   d.audit,
		Auth:    authManager,
	}
	h.Register(r, auth.RequireAccessToken(authManager), !cfg.IsProduction())
}
