// Package requestclock provides request-scoped time. All operations within a
// single HTTP request observe the same "now" timestamp, which keeps rate limit
// decisions, cache expiry checks, and log timestamps consistent, and lets tests
// drive the clock without sleeping.
package requestclock

import (
	"context"
	"net/http"
	"time"
)

type contextKeyNow struct{}

// Middleware captures the current time at the start of the request
// and stores it in the context for the rest of the handler chain.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI, tests
// that don't inject a time).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyNow{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Used by tests to simulate
// clock advance and by workers that want a consistent time per batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyNow{}, t)
}
