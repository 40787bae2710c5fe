// Package reqctx carries the request id through context.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID returns the request id stored in ctx or "".
func ID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

func NewID() string { return uuid.NewString() }
