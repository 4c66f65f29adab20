package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type BudgetItem struct {
	Description string          `json:"description" validate:"required,max=200"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Total       decimal.Decimal `json:"total"`
}

// Budget is the provider's quote. It is replaced as a whole on every submission.
type Budget struct {
	Items       []BudgetItem    `json:"items" validate:"required,min=1,max=100,dive"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency" validate:"omitempty,len=3,uppercase"`
	SubmittedBy string          `json:"submitted_by,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// normalizeBudget checks the quote arithmetic and fills computed totals.
// Totals supplied by the client must agree with quantity * unit cost.
func normalizeBudget(v *validator.Validate, in Budget, defaultCurrency string, by Actor, now time.Time) (Budget, error) {
	if err := v.Struct(in); err != nil {
		return Budget{}, fmt.Errorf("%w: budget: %v", ErrInvalidPayload, err)
	}
	out := Budget{
		Items:       make([]BudgetItem, 0, len(in.Items)),
		Currency:    strings.TrimSpace(in.Currency),
		SubmittedBy: by.Name,
		SubmittedAt: now,
	}
	if out.Currency == "" {
		out.Currency = defaultCurrency
	}
	sum := decimal.Zero
	for i, it := range in.Items {
		if !it.Quantity.IsPositive() {
			return Budget{}, fmt.Errorf("%w: budget item %d: quantity must be positive", ErrInvalidPayload, i)
		}
		if it.UnitCost.IsNegative() {
			return Budget{}, fmt.Errorf("%w: budget item %d: unit cost must not be negative", ErrInvalidPayload, i)
		}
		line := it.Quantity.Mul(it.UnitCost)
		if !it.Total.IsZero() && !it.Total.Equal(line) {
			return Budget{}, fmt.Errorf("%w: budget item %d: total %s does not match %s", ErrInvalidPayload, i, it.Total, line)
		}
		it.Description = strings.TrimSpace(it.Description)
		it.Total = line
		out.Items = append(out.Items, it)
		sum = sum.Add(line)
	}
	if !in.Total.IsZero() && !in.Total.Equal(sum) {
		return Budget{}, fmt.Errorf("%w: budget total %s does not match items %s", ErrInvalidPayload, in.Total, sum)
	}
	out.Total = sum
	return out, nil
}
