package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	platformMW "autoforms/internal/platform/middleware"
	"autoforms/internal/ratelimit/models"
)

// Limiter is the subset of the rate limit service the middleware needs.
type Limiter interface {
	Check(ctx context.Context, rule models.RuleName, identifier string) (*models.Result, error)
	Record(ctx context.Context, rule models.RuleName, identifier string) error
}

type Middleware struct {
	limiter Limiter
	logger  *slog.Logger
}

func New(limiter Limiter, logger *slog.Logger) *Middleware {
	return &Middleware{limiter: limiter, logger: logger}
}

// PerIP enforces the named rule against the client IP. The request is both
// checked and, when it proceeds, recorded: for plain HTTP traffic the
// request itself is the rate-limited action.
func (m *Middleware) PerIP(rule models.RuleName) func(http.Handler) http.Handler {
	return m.limit(rule, func(ctx context.Context) string {
		return platformMW.GetClientIP(ctx)
	})
}

// PerUser enforces the named rule against the authenticated user, falling
// back to the client IP for unauthenticated requests.
func (m *Middleware) PerUser(rule models.RuleName) func(http.Handler) http.Handler {
	return m.limit(rule, func(ctx context.Context) string {
		if userID := platformMW.GetUserID(ctx); userID != "" {
			return userID
		}
		return platformMW.GetClientIP(ctx)
	})
}

func (m *Middleware) limit(rule models.RuleName, identify func(context.Context) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identifier := identify(ctx)

			result, err := m.limiter.Check(ctx, rule, identifier)
			if err != nil {
				// Fail open: a limiter misconfiguration must not take the
				// endpoint down, but it is loud in the logs.
				m.logger.Error("rate limit check failed", "error", err, "rule", rule)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}

			if err := m.limiter.Record(ctx, rule, identifier); err != nil {
				m.logger.Error("rate limit record failed", "error", err, "rule", rule)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":       "rate_limited",
		"reason":      result.Reason,
		"retry_after": result.RetryAfter,
	})
}
