package audit

import "time"

// Event is an immutable, append-only operations record.
//
// Invariants:
// - Events are never updated or deleted.
// - request_id is required; every event is about one service request.
// - Logging is best-effort; callers never fail a workflow operation on audit errors.
//
// Storage (Postgres): table ops_events, INSERT-only.
type Event struct {
	ID        string    `json:"id" db:"id"`
	Type      EventType `json:"type" db:"type"`
	RequestID string    `json:"request_id" db:"request_id"`

	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	FromStage string `json:"from_stage,omitempty" db:"from_stage"`
	ToStage   string `json:"to_stage,omitempty" db:"to_stage"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`
	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeTransitionDenied EventType = "transition_denied"
	EventTypeWriteConflict    EventType = "write_conflict"
)

// Query filters List. Zero fields match everything.
type Query struct {
	RequestID string
	Type      EventType
	Limit     int
}
