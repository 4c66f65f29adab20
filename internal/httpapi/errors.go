package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"fleet-platform/internal/reporting"
	"fleet-platform/internal/workflow"
	"fleet-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError maps the workflow error taxonomy onto HTTP. "unauthorized" (you may
// not) and "invalid_payload" (not ready yet) stay distinguishable for clients.
func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: code, Detail: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, workflow.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, workflow.ErrInvalidPayload), errors.Is(err, reporting.ErrInvalidRequest):
		return http.StatusUnprocessableEntity, "invalid_payload"
	case errors.Is(err, workflow.ErrDialogueClosed):
		return http.StatusConflict, "dialogue_closed"
	case errors.Is(err, workflow.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, workflow.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func badJSON(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid_json", Detail: err.Error()})
}

func staleVersion(current, expected int64) error {
	return fmt.Errorf("%w: record is at version %d, client expected %d", workflow.ErrConflict, current, expected)
}
