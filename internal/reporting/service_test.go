package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet-platform/internal/rbac"
	"fleet-platform/internal/workflow"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T) *workflow.MemoryStore {
	t.Helper()
	s := workflow.NewMemoryStore()
	budget := func(total int64, currency string) *workflow.Budget {
		return &workflow.Budget{Total: decimal.NewFromInt(total), Currency: currency}
	}
	recs := []workflow.RequestRecord{
		{
			ID: "finished", CostCenter: "CC1", Stage: workflow.StageFinished, AuditStatus: workflow.AuditApproved,
			Budget: budget(45000, "ARS"), CreatedAt: t0,
			History: workflow.NewHistory(
				workflow.AuditEntry{Stage: workflow.StageRequested, Timestamp: t0},
				workflow.AuditEntry{Stage: workflow.StageBudgeted, Timestamp: t0.Add(time.Hour)},
				workflow.AuditEntry{Stage: workflow.StageScheduleAssigned, Timestamp: t0.Add(2 * time.Hour)},
				workflow.AuditEntry{Stage: workflow.StageFinished, Timestamp: t0.Add(10 * time.Hour)},
			),
		},
		{ID: "pending", CostCenter: "CC1", Stage: workflow.StageBudgeted, AuditStatus: workflow.AuditPending, Budget: budget(1200, "USD"), CreatedAt: t0},
		{ID: "other-cc", CostCenter: "CC2", Stage: workflow.StageInShop, AuditStatus: workflow.AuditApproved, Budget: budget(500, "ARS"), CreatedAt: t0},
		{ID: "old", CostCenter: "CC1", Stage: workflow.StageRequested, CreatedAt: t0.Add(-48 * time.Hour)},
	}
	for _, r := range recs {
		if _, err := s.Create(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return s
}

func day() TimeRange { return TimeRange{From: t0.Add(-time.Hour), To: t0.Add(24 * time.Hour)} }

func TestSummary_AdminAggregates(t *testing.T) {
	svc := NewService(seed(t))
	out, err := svc.Summary(context.Background(), workflow.Actor{Role: rbac.RoleAdmin}, SummaryRequest{Range: day()})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Total != 3 {
		t.Fatalf("expected 3 requests in range, got %d", out.Total)
	}
	if out.Stages[workflow.StageFinished] != 1 || out.Stages[workflow.StageInShop] != 1 {
		t.Fatalf("unexpected stage counts %+v", out.Stages)
	}
	if len(out.Spend) != 2 || out.Spend[0].Currency != "ARS" {
		t.Fatalf("unexpected spend %+v", out.Spend)
	}
	if !out.Spend[0].Approved.Equal(decimal.NewFromInt(45500)) || out.Spend[0].ApprovedCount != 2 {
		t.Fatalf("unexpected ARS spend %+v", out.Spend[0])
	}
	if !out.Spend[1].Pending.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("unexpected USD spend %+v", out.Spend[1])
	}
	if out.CycleTime.Finished != 1 || out.CycleTime.AverageHours != 10 || out.CycleTime.Rejections != 1 {
		t.Fatalf("unexpected cycle time %+v", out.CycleTime)
	}
}

func TestSummary_CostCenterIsolation(t *testing.T) {
	svc := NewService(seed(t))
	sup := workflow.Actor{Role: rbac.RoleSupervisor, CostCenter: "CC2"}

	out, err := svc.Summary(context.Background(), sup, SummaryRequest{Range: day()})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Total != 1 || out.Stages[workflow.StageInShop] != 1 {
		t.Fatalf("supervisor must only see CC2, got %+v", out)
	}
	if _, err := svc.Summary(context.Background(), sup, SummaryRequest{Range: day(), CostCenter: "CC1"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for foreign cost center, got %v", err)
	}
}

func TestSummary_RejectsBadRange(t *testing.T) {
	svc := NewService(seed(t))
	_, err := svc.Summary(context.Background(), workflow.Actor{Role: rbac.RoleAdmin}, SummaryRequest{Range: TimeRange{From: t0, To: t0}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestSummarizeCycles_EvenMedian(t *testing.T) {
	out := summarizeCycles([]time.Duration{4 * time.Hour, 2 * time.Hour}, 0)
	if out.MedianHours != 3 || out.MaxHours != 4 || out.AverageHours != 3 {
		t.Fatalf("unexpected %+v", out)
	}
}
