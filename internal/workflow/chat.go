package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fleet-platform/internal/rbac"

	"github.com/google/uuid"
)

const maxMessageLen = 4000

// PostMessage appends a chat message and bumps the unread counter of the other
// audience.
func (e *Engine) PostMessage(ctx context.Context, rec RequestRecord, actor Actor, text string) (RequestRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return RequestRecord{}, fmt.Errorf("%w: empty message", ErrInvalidPayload)
	}
	if len(text) > maxMessageLen {
		return RequestRecord{}, fmt.Errorf("%w: message too long", ErrInvalidPayload)
	}
	now := e.clock().UTC()
	if err := e.chatOpen(rec, actor, now); err != nil {
		return RequestRecord{}, err
	}

	next := rec
	next.Messages = rec.Messages.Append(ChatMessage{
		ID:         uuid.NewString(),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		Role:       actor.Role,
		Text:       text,
		Timestamp:  now,
	})
	audience := AudienceOf(actor.Role)
	if audience == AudienceRequester {
		next.UnreadForAdmin = rec.UnreadForAdmin + 1
	} else {
		next.UnreadForRequester = rec.UnreadForRequester + 1
	}
	next.UpdatedAt = now

	acked, err := e.commit(ctx, "message", rec, next, actor)
	if err != nil {
		return RequestRecord{}, err
	}
	chatMessagesTotal.WithLabelValues(string(audience)).Inc()
	e.notify(ctx, messageRecipients(acked, actor), Notification{
		Kind:      NotificationMessage,
		RequestID: acked.ID,
		Code:      acked.Code,
		Stage:     acked.Stage,
		ActorName: actor.Name,
		Text:      text,
		At:        now,
	})
	return acked, nil
}

// chatOpen applies the dialogue policy: a closed dialogue silences the requester,
// and a finished or cancelled ticket stays open to everyone for the grace period.
func (e *Engine) chatOpen(rec RequestRecord, actor Actor, now time.Time) error {
	if rec.Stage.Terminal() {
		if ended := terminalSince(rec); !ended.IsZero() && now.Sub(ended) > e.chatGrace {
			return fmt.Errorf("%w: ticket %s ended %s ago", ErrDialogueClosed, rec.Code, now.Sub(ended).Truncate(time.Minute))
		}
	}
	if !rec.IsDialogueOpen && actor.Role == rbac.RoleRequester {
		return fmt.Errorf("%w: dialogue closed by staff", ErrDialogueClosed)
	}
	return nil
}

// terminalSince returns when the record entered its terminal stage.
func terminalSince(rec RequestRecord) time.Time {
	entries := rec.History.ReadAll()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Stage != rec.Stage {
			break
		}
		if i == 0 || entries[i-1].Stage != rec.Stage {
			return entries[i].Timestamp
		}
	}
	return rec.UpdatedAt
}

// MarkRead zeroes the audience's unread counter. A zero counter is a no-op and
// does not write.
func (e *Engine) MarkRead(ctx context.Context, rec RequestRecord, actor Actor, audience Audience) (RequestRecord, error) {
	if AudienceOf(actor.Role) != audience {
		return RequestRecord{}, fmt.Errorf("%w: %s does not read the %s thread", ErrUnauthorized, actor.Role, audience)
	}
	next := rec
	switch audience {
	case AudienceAdmin:
		if rec.UnreadForAdmin == 0 {
			return rec, nil
		}
		next.UnreadForAdmin = 0
	case AudienceRequester:
		if rec.UnreadForRequester == 0 {
			return rec, nil
		}
		next.UnreadForRequester = 0
	default:
		return RequestRecord{}, fmt.Errorf("%w: unknown audience %q", ErrInvalidPayload, audience)
	}
	next.UpdatedAt = e.clock().UTC()
	return e.commit(ctx, "read", rec, next, actor)
}

// Unread returns the counter the viewer reads.
func Unread(rec RequestRecord, viewer Actor) int {
	if AudienceOf(viewer.Role) == AudienceRequester {
		return rec.UnreadForRequester
	}
	return rec.UnreadForAdmin
}
