package workflow

import (
	"context"

	"fleet-platform/internal/audit"
)

// AuditAdapter sends workflow ops events to the shared audit.Service.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogOpsEvent(ctx context.Context, e OpsEvent) error {
	if a.Audit == nil {
		return nil
	}
	switch e.Kind {
	case OpsTransitionDenied:
		return a.Audit.LogTransitionDenied(ctx, e.RequestID, e.ActorID, string(e.ActorRole), string(e.From), string(e.To), e.Reason)
	case OpsWriteConflict:
		return a.Audit.LogWriteConflict(ctx, e.RequestID, e.ActorID, string(e.ActorRole), e.Op, e.Reason)
	default:
		return a.Audit.Append(ctx, audit.Event{
			Type:        audit.EventType(e.Kind),
			RequestID:   e.RequestID,
			ActorUserID: e.ActorID,
			ActorRole:   string(e.ActorRole),
			FromStage:   string(e.From),
			ToStage:     string(e.To),
			Message:     e.Reason,
		})
	}
}
