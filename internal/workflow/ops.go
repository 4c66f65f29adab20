package workflow

import (
	"context"
	"time"

	"fleet-platform/internal/rbac"
)

type OpsEventKind string

const (
	OpsTransitionDenied OpsEventKind = "transition_denied"
	OpsWriteConflict    OpsEventKind = "write_conflict"
)

// OpsEvent is an internal operations record of a rejected write. It never
// becomes part of a record's history.
type OpsEvent struct {
	Kind      OpsEventKind
	RequestID string
	Op        string
	ActorID   string
	ActorRole rbac.Role
	From      Stage
	To        Stage
	Reason    string
	At        time.Time
}

// OpsLogger records OpsEvents. Best-effort: errors are logged and dropped.
type OpsLogger interface {
	LogOpsEvent(ctx context.Context, e OpsEvent) error
}
