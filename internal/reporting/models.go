package reporting

import (
	"time"

	"fleet-platform/internal/workflow"

	"github.com/shopspring/decimal"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryRequest selects requests created in Range. CostCenter narrows further;
// the viewer's own visibility always applies.
type SummaryRequest struct {
	Range      TimeRange `json:"range"`
	CostCenter string    `json:"cost_center,omitempty"`
}

type Summary struct {
	Range      TimeRange `json:"range"`
	CostCenter string    `json:"cost_center,omitempty"`

	Total  int                    `json:"total"`
	Stages map[workflow.Stage]int `json:"stages"`

	Spend     []CurrencySpend `json:"spend"`
	CycleTime CycleTime       `json:"cycle_time"`
}

// CurrencySpend totals budgets per currency. Approved counts budgets the audit
// accepted; Pending those still waiting for review.
type CurrencySpend struct {
	Currency      string          `json:"currency"`
	Approved      decimal.Decimal `json:"approved"`
	ApprovedCount int             `json:"approved_count"`
	Pending       decimal.Decimal `json:"pending"`
	PendingCount  int             `json:"pending_count"`
}

// CycleTime measures creation to Finished for finished requests.
type CycleTime struct {
	Finished     int     `json:"finished"`
	AverageHours float64 `json:"average_hours"`
	MedianHours  float64 `json:"median_hours"`
	MaxHours     float64 `json:"max_hours"`
	Rejections   int     `json:"rejections"`
}
