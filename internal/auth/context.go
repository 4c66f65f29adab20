package auth

import (
	"context"
	"errors"
)

// Actor is the authenticated caller as resolved by the directory.
type Actor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	CostCenter string `json:"cost_center,omitempty"`
}

type ctxKey struct{}

var ErrNoActor = errors.New("actor not in context")

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFrom returns the current actor.
func ActorFrom(ctx context.Context) (Actor, error) {
	if a, ok := ctx.Value(ctxKey{}).(Actor); ok && a.ID != "" {
		return a, nil
	}
	return Actor{}, ErrNoActor
}
