package workflow

import "errors"

// Error taxonomy. Detail is attached with fmt.Errorf("%w: ...").
var (
	// ErrUnauthorized: the role may not perform this move from the current stage.
	ErrUnauthorized = errors.New("workflow: unauthorized")
	// ErrInvalidPayload: the move is allowed but the record or payload is not ready for it.
	ErrInvalidPayload = errors.New("workflow: invalid payload")
	// ErrDialogueClosed: chat write rejected by policy.
	ErrDialogueClosed = errors.New("workflow: dialogue closed")
	// ErrStoreUnavailable: the write was not acknowledged.
	ErrStoreUnavailable = errors.New("workflow: store unavailable")
	// ErrConflict: the record changed since it was read; re-fetch and retry.
	ErrConflict = errors.New("workflow: version conflict")
	ErrNotFound = errors.New("workflow: not found")
)
