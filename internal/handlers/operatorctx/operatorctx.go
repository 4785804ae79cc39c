package operatorctx

import (
	"context"
)

type ctxKey string

const operatorKey ctxKey = "operator"

// Create a new context with the authenticated operator (token subject)
func New(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey, operator)
}

// Extract the operator from the context
func FromContext(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(operatorKey).(string)
	return op, ok
}
