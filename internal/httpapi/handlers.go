package httpapi

import (
	"context"
	"net/http"
	"time"

	"fleet-platform/internal/audit"
	"fleet-platform/internal/auth"
	"fleet-platform/internal/rbac"
	"fleet-platform/internal/reporting"
	"fleet-platform/internal/workflow"

	"github.com/gin-gonic/gin"
)

const defaultRetryAttempts = 3

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call the engine, map errors.
type Handlers struct {
	Engine  *workflow.Engine
	Reports *reporting.Service
	Audit   *audit.Service
	Auth    *auth.Manager

	// RetryAttempts bounds server-side retries of writes that hit a version
	// conflict. Clients sending expected_version are never retried.
	RetryAttempts int
}

func (h Handlers) attempts() int {
	if h.RetryAttempts > 0 {
		return h.RetryAttempts
	}
	return defaultRetryAttempts
}

// actor resolves the authenticated caller into a workflow actor.
func actor(c *gin.Context) (workflow.Actor, bool) {
	a, err := auth.ActorFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "unauthenticated"})
		return workflow.Actor{}, false
	}
	role, ok := rbac.ParseRole(a.Role)
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "unauthorized", Detail: "unknown role"})
		return workflow.Actor{}, false
	}
	return workflow.Actor{ID: a.ID, Name: a.Name, Role: role, CostCenter: a.CostCenter}, true
}

type mutation func(ctx context.Context, rec workflow.RequestRecord, a workflow.Actor) (workflow.RequestRecord, error)

// mutate re-reads the record, applies fn and retries on version conflicts.
// When the client pins expected_version, a mismatch is reported instead.
func (h Handlers) mutate(c *gin.Context, expectedVersion *int64, fn mutation) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id := c.Param("id")
	attempts := h.attempts()
	if expectedVersion != nil {
		attempts = 1
	}

	var out workflow.RequestRecord
	err := workflow.RetryOnConflict(c.Request.Context(), attempts, func(ctx context.Context) error {
		rec, err := h.Engine.Get(ctx, a, id)
		if err != nil {
			return err
		}
		if expectedVersion != nil && rec.Version != *expectedVersion {
			return staleVersion(rec.Version, *expectedVersion)
		}
		out, err = fn(ctx, rec, a)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}
