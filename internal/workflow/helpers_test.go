package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"fleet-platform/internal/rbac"

	"github.com/shopspring/decimal"
)

var (
	requester  = Actor{ID: "u-req", Name: "Rosa Requester", Role: rbac.RoleRequester, CostCenter: "CC-NORTE"}
	supervisor = Actor{ID: "u-sup", Name: "Sergio Supervisor", Role: rbac.RoleSupervisor, CostCenter: "CC-NORTE"}
	admin      = Actor{ID: "u-adm", Name: "Ana Admin", Role: rbac.RoleAdmin}
	provider   = Actor{ID: "prov-1", Name: "Taller Sur", Role: rbac.RoleProvider}
	auditor    = Actor{ID: "u-aud", Name: "Pablo Auditor", Role: rbac.RoleAuditor}
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingOps struct {
	mu     sync.Mutex
	events []OpsEvent
}

func (r *recordingOps) LogOpsEvent(_ context.Context, e OpsEvent) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recordingOps) Events() []OpsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OpsEvent(nil), r.events...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls [][]string
	last  Notification
}

func (n *recordingNotifier) Notify(_ context.Context, recipients []string, note Notification) error {
	n.mu.Lock()
	n.calls = append(n.calls, recipients)
	n.last = note
	n.mu.Unlock()
	return nil
}

type harness struct {
	engine   *Engine
	store    *MemoryStore
	clock    *stepClock
	ops      *recordingOps
	notifier *recordingNotifier
}

func newHarness(t *testing.T, policy Policy) *harness {
	t.Helper()
	h := &harness{
		store:    NewMemoryStore(),
		clock:    &stepClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		ops:      &recordingOps{},
		notifier: &recordingNotifier{},
	}
	h.engine = NewEngine(h.store, Options{Policy: policy, Ops: h.ops, Notifier: h.notifier})
	h.engine.clock = h.clock.Now
	return h
}

func (h *harness) create(t *testing.T) RequestRecord {
	t.Helper()
	rec, err := h.engine.Create(context.Background(), requester, NewRequest{
		VehiclePlate:      "ab 123 cd",
		Category:          CategoryMaintenance,
		SubCategory:       "10K service",
		Description:       "Scheduled 10.000 km service",
		OdometerAtRequest: 9950,
		LocationCity:      "Rosario",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return rec
}

func (h *harness) move(t *testing.T, rec RequestRecord, actor Actor, req TransitionRequest) RequestRecord {
	t.Helper()
	out, err := h.engine.AttemptTransition(context.Background(), rec, actor, req)
	if err != nil {
		t.Fatalf("transition %s -> %s as %s: %v", rec.Stage, req.Target, actor.Role, err)
	}
	return out
}

func serviceBudget(unit int64) *Budget {
	return &Budget{Items: []BudgetItem{{
		Description: "Service 10K",
		Quantity:    decimal.NewFromInt(1),
		UnitCost:    decimal.NewFromInt(unit),
		Total:       decimal.NewFromInt(unit),
	}}, Total: decimal.NewFromInt(unit)}
}

func schedule() TransitionRequest {
	return TransitionRequest{Target: StageScheduleAssigned, ProviderID: provider.ID, ProviderName: provider.Name, Comment: "turn assigned"}
}

func stages(rec RequestRecord) []Stage {
	entries := rec.History.ReadAll()
	out := make([]Stage, len(entries))
	for i, e := range entries {
		out[i] = e.Stage
	}
	return out
}
