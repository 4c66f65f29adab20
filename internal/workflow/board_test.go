package workflow

import (
	"testing"
	"time"
)

func boardFixture() []RequestRecord {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return []RequestRecord{
		{ID: "1", CostCenter: "CC-NORTE", Stage: StageRequested, UnreadForAdmin: 2, UnreadForRequester: 1, UpdatedAt: t0},
		{ID: "2", CostCenter: "CC-NORTE", Stage: StageRequested, UpdatedAt: t0.Add(time.Hour)},
		{ID: "3", CostCenter: "CC-SUR", Stage: StageBudgeted, ProviderID: provider.ID, UpdatedAt: t0},
		{ID: "4", CostCenter: "CC-NORTE", Stage: StageCancelled, UpdatedAt: t0},
		{ID: "5", CostCenter: "CC-SUR", Stage: StageFinished, UpdatedAt: t0},
	}
}

func TestBuildBoard_AdminSeesEverything(t *testing.T) {
	b := BuildBoard(boardFixture(), admin)

	if len(b.Columns) != 5 {
		t.Fatalf("expected 5 columns, got %d", len(b.Columns))
	}
	for i, s := range BoardStages {
		if b.Columns[i].Stage != s {
			t.Fatalf("column %d: expected %s, got %s", i, s, b.Columns[i].Stage)
		}
		if b.Columns[i].Cards == nil {
			t.Fatalf("column %s must not be nil", s)
		}
	}
	if b.Total != 5 || b.Cancelled != 1 {
		t.Fatalf("unexpected totals %d/%d", b.Total, b.Cancelled)
	}
	req := b.Columns[0].Cards
	if len(req) != 2 || req[0].ID != "2" {
		t.Fatalf("expected most recent first, got %+v", req)
	}
	if req[1].Unread != 2 {
		t.Fatalf("admin sees admin counter, got %d", req[1].Unread)
	}
}

func TestBuildBoard_CostCenterVisibility(t *testing.T) {
	b := BuildBoard(boardFixture(), requester)
	if b.Total != 3 || b.Cancelled != 1 {
		t.Fatalf("requester must only see CC-NORTE, got %d/%d", b.Total, b.Cancelled)
	}
	if b.Columns[0].Cards[1].Unread != 1 {
		t.Fatalf("requester sees requester counter")
	}

	p := BuildBoard(boardFixture(), provider)
	if p.Total != 1 || len(p.Columns[2].Cards) != 1 {
		t.Fatalf("provider must see assigned tickets only, got %+v", p)
	}

	none := BuildBoard(boardFixture(), Actor{ID: "x", Role: requester.Role})
	if none.Total != 0 {
		t.Fatalf("actor without cost center sees nothing, got %d", none.Total)
	}
}

func TestViewerFilter(t *testing.T) {
	if f := ViewerFilter(supervisor); f.CostCenter != "CC-NORTE" {
		t.Fatalf("unexpected filter %+v", f)
	}
	if f := ViewerFilter(auditor); f.CostCenter != "" {
		t.Fatalf("auditor must not be narrowed, got %+v", f)
	}
}
