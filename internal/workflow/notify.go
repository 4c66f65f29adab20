package workflow

import (
	"context"
	"time"

	"fleet-platform/internal/rbac"
)

// Notification is a best-effort signal to people interested in a record.
type Notification struct {
	Kind      string    `json:"kind"`
	RequestID string    `json:"request_id"`
	Code      string    `json:"code"`
	Stage     Stage     `json:"stage"`
	ActorName string    `json:"actor_name"`
	Text      string    `json:"text,omitempty"`
	At        time.Time `json:"at"`
}

const (
	NotificationStageChanged = "stage_changed"
	NotificationMessage      = "message"
)

// Notifier delivers notifications. Recipients are user ids or role topics
// (see RoleTopic). Failures never undo the write that triggered them.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, n Notification) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, []string, Notification) error { return nil }

// RoleTopic addresses everyone holding role.
func RoleTopic(r rbac.Role) string { return "role:" + string(r) }

// transitionRecipients: requester and provider hear about every move;
// auditors additionally hear about budgets waiting for review.
func transitionRecipients(rec RequestRecord, actor Actor) []string {
	ids := []string{rec.RequesterID, rec.ProviderID}
	if rec.Stage == StageBudgeted {
		ids = append(ids, RoleTopic(rbac.RoleAuditor))
	}
	return dedupeRecipients(ids, actor.ID)
}

func messageRecipients(rec RequestRecord, actor Actor) []string {
	var ids []string
	if actor.Role == rbac.RoleRequester {
		ids = []string{rec.ProviderID, RoleTopic(rbac.RoleSupervisor), RoleTopic(rbac.RoleAdmin)}
	} else {
		ids = []string{rec.RequesterID}
	}
	return dedupeRecipients(ids, actor.ID)
}

func dedupeRecipients(ids []string, exclude string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
