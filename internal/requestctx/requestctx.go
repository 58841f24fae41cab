// Package requestctx carries the request ID through context so domain
// code can tag logs and audit rows without importing the HTTP layer.
package requestctx

import "context"

type ctxKey struct{}

var requestIDKey ctxKey

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the empty string when no ID was attached.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
