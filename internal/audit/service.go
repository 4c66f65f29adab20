package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for ops events. It is append-only:
// there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, q Query) ([]Event, error)
}

// Service records rejected workflow writes for operators.
// Internal-only; these records are not shown to requesters.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

const defaultListLimit = 100

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.RequestID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogTransitionDenied records a stage move the actor's role did not allow.
func (s *Service) LogTransitionDenied(ctx context.Context, requestID, actorUserID, actorRole, from, to, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeTransitionDenied,
		RequestID:   requestID,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		FromStage:   from,
		ToStage:     to,
		Message:     message,
	})
}

// LogWriteConflict records a write rejected by the version check.
func (s *Service) LogWriteConflict(ctx context.Context, requestID, actorUserID, actorRole, op, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeWriteConflict,
		RequestID:   requestID,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		Message:     message,
		Metadata:    `{"op":"` + op + `"}`,
	})
}

// List returns events newest first.
func (s *Service) List(ctx context.Context, q Query) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if q.Limit <= 0 || q.Limit > 1000 {
		q.Limit = defaultListLimit
	}
	return s.repo.List(ctx, q)
}
