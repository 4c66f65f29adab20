package workflow

import (
	"context"
	"testing"
	"time"
)

func waitSnapshot(t *testing.T, sub Subscription) []RequestRecord {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		if !ok {
			t.Fatalf("subscription closed")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatalf("no snapshot delivered")
	}
	return nil
}

func TestSubscribe_InitialAndUpdates(t *testing.T) {
	h := newHarness(t, Policy{})
	ctx := context.Background()
	rec := h.create(t)

	sub, err := h.store.Subscribe(ctx, Filter{CostCenter: requester.CostCenter})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if snap := waitSnapshot(t, sub); len(snap) != 1 || snap[0].ID != rec.ID {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}

	moved := h.move(t, rec, admin, schedule())
	snap := waitSnapshot(t, sub)
	if len(snap) != 1 || snap[0].Stage != StageScheduleAssigned || snap[0].Version != moved.Version {
		t.Fatalf("expected acknowledged state, got %+v", snap)
	}
}

func TestSubscribe_SlowConsumerGetsLatestOnly(t *testing.T) {
	h := newHarness(t, Policy{})
	ctx := context.Background()
	rec := h.create(t)

	sub, _ := h.store.Subscribe(ctx, Filter{})
	defer sub.Close()

	for i := 0; i < 5; i++ {
		var err error
		rec, err = h.engine.PostMessage(ctx, rec, admin, "update")
		if err != nil {
			t.Fatalf("message: %v", err)
		}
	}
	snap := waitSnapshot(t, sub)
	if len(snap) != 1 || snap[0].Messages.Len() != 5 {
		t.Fatalf("expected only the latest snapshot, got %d messages", snap[0].Messages.Len())
	}
	select {
	case extra := <-sub.Updates():
		t.Fatalf("unexpected extra snapshot %+v", extra)
	default:
	}
}

func TestFeed_IgnoresStaleAndFiltersOut(t *testing.T) {
	f := NewFeed()
	sub := f.Subscribe(Filter{CostCenter: "CC1"}, []RequestRecord{{ID: "a", CostCenter: "CC1", Version: 3}})
	waitSnapshot(t, sub)

	f.Publish(RequestRecord{ID: "a", CostCenter: "CC1", Version: 2})
	select {
	case snap := <-sub.Updates():
		t.Fatalf("stale version must be ignored, got %+v", snap)
	default:
	}

	f.Publish(RequestRecord{ID: "a", CostCenter: "CC2", Version: 4})
	if snap := waitSnapshot(t, sub); len(snap) != 0 {
		t.Fatalf("record leaving the filter must disappear, got %+v", snap)
	}

	f.Publish(RequestRecord{ID: "z", CostCenter: "CC9", Version: 1})
	select {
	case snap := <-sub.Updates():
		t.Fatalf("unrelated record must not wake the subscriber, got %+v", snap)
	default:
	}
}

func TestFeed_CloseUnregisters(t *testing.T) {
	f := NewFeed()
	sub := f.Subscribe(Filter{}, nil)
	if f.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber")
	}
	sub.Close()
	sub.Close()
	if f.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers after close")
	}
	f.Publish(RequestRecord{ID: "a", Version: 1})
	for range sub.Updates() {
	}
}

func TestWatch_PublishBeforeSeedWins(t *testing.T) {
	f := NewFeed()
	w := f.Watch(Filter{})
	defer w.Close()

	f.Publish(RequestRecord{ID: "a", Stage: StageScheduleAssigned, Version: 2})
	select {
	case snap := <-w.Updates():
		t.Fatalf("nothing may be delivered before seeding, got %+v", snap)
	default:
	}

	w.Seed([]RequestRecord{
		{ID: "a", Stage: StageRequested, Version: 1},
		{ID: "b", Stage: StageRequested, Version: 1},
	})
	snap := waitSnapshot(t, w)
	if len(snap) != 2 {
		t.Fatalf("expected 2 records, got %+v", snap)
	}
	for _, r := range snap {
		if r.ID == "a" && (r.Version != 2 || r.Stage != StageScheduleAssigned) {
			t.Fatalf("listed copy overwrote a newer publish: %+v", r)
		}
	}
}
