package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"fleet-platform/internal/audit"
	"fleet-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Summary: GET /v1/reports/summary?from=RFC3339&to=RFC3339&cost_center=
// Defaults to the last 30 days.
func (h Handlers) Summary(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	now := time.Now().UTC()
	rng := reporting.TimeRange{From: now.AddDate(0, 0, -30), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badJSON(c, err)
			return
		}
		rng.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badJSON(c, err)
			return
		}
		rng.To = t
	}
	out, err := h.Reports.Summary(c.Request.Context(), a, reporting.SummaryRequest{Range: rng, CostCenter: c.Query("cost_center")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// OpsEvents lists rejected writes for operators.
func (h Handlers) OpsEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	evs, err := h.Audit.List(c.Request.Context(), audit.Query{
		RequestID: c.Query("request_id"),
		Type:      audit.EventType(c.Query("type")),
		Limit:     limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}
