package workflow

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Stage transition attempts by target stage and result.",
		},
		[]string{"to", "result"},
	)
	chatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "workflow",
			Name:      "chat_messages_total",
			Help:      "Accepted chat messages by author audience.",
		},
		[]string{"audience"},
	)
	storeConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "workflow",
			Name:      "store_conflicts_total",
			Help:      "Writes rejected by the optimistic version check.",
		},
		[]string{"op"},
	)
	notifyFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleet",
			Subsystem: "workflow",
			Name:      "notify_failures_total",
			Help:      "Notifications that could not be delivered.",
		},
	)
)

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
