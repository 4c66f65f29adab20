package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"fleet-platform/internal/workflow"

	"github.com/shopspring/decimal"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository is the read side used for reports. workflow.Store satisfies it.
type Repository interface {
	List(ctx context.Context, f workflow.Filter) ([]workflow.RequestRecord, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) Summary(ctx context.Context, viewer workflow.Actor, req SummaryRequest) (Summary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Summary{}, errors.New("reporting: repository not configured")
	}

	f := workflow.ViewerFilter(viewer)
	if req.CostCenter != "" {
		if f.CostCenter != "" && f.CostCenter != req.CostCenter {
			return Summary{}, ErrInvalidRequest
		}
		f.CostCenter = req.CostCenter
	}
	rows, err := s.repo.List(ctx, f)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Range: req.Range, CostCenter: req.CostCenter, Stages: map[workflow.Stage]int{}}
	spend := map[string]*CurrencySpend{}
	var cycles []time.Duration

	for _, r := range rows {
		if !workflow.Visible(viewer, r) {
			continue
		}
		if r.CreatedAt.Before(req.Range.From) || !r.CreatedAt.Before(req.Range.To) {
			continue
		}
		out.Total++
		out.Stages[r.Stage]++

		if r.Budget != nil {
			cs, ok := spend[r.Budget.Currency]
			if !ok {
				cs = &CurrencySpend{Currency: r.Budget.Currency, Approved: decimal.Zero, Pending: decimal.Zero}
				spend[r.Budget.Currency] = cs
			}
			switch r.AuditStatus {
			case workflow.AuditApproved:
				cs.Approved = cs.Approved.Add(r.Budget.Total)
				cs.ApprovedCount++
			case workflow.AuditPending:
				cs.Pending = cs.Pending.Add(r.Budget.Total)
				cs.PendingCount++
			}
		}

		out.CycleTime.Rejections += countRejections(r)
		if r.Stage == workflow.StageFinished {
			if last, ok := r.History.Last(); ok {
				cycles = append(cycles, last.Timestamp.Sub(r.CreatedAt))
			}
		}
	}

	out.Spend = make([]CurrencySpend, 0, len(spend))
	for _, cs := range spend {
		out.Spend = append(out.Spend, *cs)
	}
	sort.Slice(out.Spend, func(i, j int) bool { return out.Spend[i].Currency < out.Spend[j].Currency })

	out.CycleTime = summarizeCycles(cycles, out.CycleTime.Rejections)
	return out, nil
}

// countRejections counts audit rejections: Budgeted entries followed by a return
// to ScheduleAssigned.
func countRejections(r workflow.RequestRecord) int {
	entries := r.History.ReadAll()
	n := 0
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Stage == workflow.StageBudgeted && entries[i].Stage == workflow.StageScheduleAssigned {
			n++
		}
	}
	return n
}

func summarizeCycles(cycles []time.Duration, rejections int) CycleTime {
	out := CycleTime{Finished: len(cycles), Rejections: rejections}
	if len(cycles) == 0 {
		return out
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i] < cycles[j] })
	var sum time.Duration
	for _, c := range cycles {
		sum += c
	}
	out.AverageHours = (sum / time.Duration(len(cycles))).Hours()
	mid := len(cycles) / 2
	if len(cycles)%2 == 1 {
		out.MedianHours = cycles[mid].Hours()
	} else {
		out.MedianHours = ((cycles[mid-1] + cycles[mid]) / 2).Hours()
	}
	out.MaxHours = cycles[len(cycles)-1].Hours()
	return out
}
