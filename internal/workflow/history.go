package workflow

import "encoding/json"

// History is the append-only audit trail embedded in a record. Its API has no
// update or delete; Append returns a new value and never touches the receiver's
// backing array, so snapshots handed to subscribers cannot change underneath them.
type History struct {
	entries []AuditEntry
}

func NewHistory(entries ...AuditEntry) History {
	return History{}.Append(entries...)
}

func (h History) Append(entries ...AuditEntry) History {
	out := make([]AuditEntry, 0, len(h.entries)+len(entries))
	out = append(out, h.entries...)
	out = append(out, entries...)
	return History{entries: out}
}

// ReadAll returns a copy of every entry in write order.
func (h History) ReadAll() []AuditEntry {
	out := make([]AuditEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h History) Len() int { return len(h.entries) }

// Last returns the most recent entry.
func (h History) Last() (AuditEntry, bool) {
	if len(h.entries) == 0 {
		return AuditEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

func (h History) MarshalJSON() ([]byte, error) {
	if h.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.entries)
}

func (h *History) UnmarshalJSON(b []byte) error {
	var entries []AuditEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	h.entries = entries
	return nil
}

// Thread is the append-only chat sub-thread. Same contract as History.
type Thread struct {
	messages []ChatMessage
}

func (t Thread) Append(msgs ...ChatMessage) Thread {
	out := make([]ChatMessage, 0, len(t.messages)+len(msgs))
	out = append(out, t.messages...)
	out = append(out, msgs...)
	return Thread{messages: out}
}

func (t Thread) ReadAll() []ChatMessage {
	out := make([]ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t Thread) Len() int { return len(t.messages) }

func (t Thread) MarshalJSON() ([]byte, error) {
	if t.messages == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.messages)
}

func (t *Thread) UnmarshalJSON(b []byte) error {
	var msgs []ChatMessage
	if err := json.Unmarshal(b, &msgs); err != nil {
		return err
	}
	t.messages = msgs
	return nil
}
