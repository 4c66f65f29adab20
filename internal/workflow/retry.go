package workflow

import (
	"context"
	"errors"
)

// RetryOnConflict runs fn until it returns something other than ErrConflict, at
// most attempts times. fn must re-fetch the record on every call.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
