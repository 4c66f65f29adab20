package notify

import (
	"context"
	"log/slog"

	"fleet-platform/internal/workflow"
)

// Log writes notifications to the structured log. Used for local runs.
type Log struct {
	log *slog.Logger
}

func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{log: l}
}

func (n *Log) Notify(ctx context.Context, recipients []string, note workflow.Notification) error {
	n.log.InfoContext(ctx, "notification",
		"kind", note.Kind,
		"request_id", note.RequestID,
		"code", note.Code,
		"stage", note.Stage,
		"recipients", recipients,
	)
	return nil
}
