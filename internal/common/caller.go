package common

import "context"

type ctxKey string

const callerKey ctxKey = "auth/caller"

// WithCaller records the authenticated calling service on the context. The
// gateway is service-to-service; the subject names a storefront instance,
// never an end customer.
func WithCaller(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerKey, id)
}

// Caller reports the authenticated caller, if any.
func Caller(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerKey).(string)
	return id, ok
}
