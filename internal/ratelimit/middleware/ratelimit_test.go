package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformMW "autoforms/internal/platform/middleware"
	"autoforms/internal/ratelimit/config"
	"autoforms/internal/ratelimit/models"
	"autoforms/internal/ratelimit/service"
	"autoforms/internal/ratelimit/store/record"
	"autoforms/pkg/requestclock"
)

func newTestMiddleware(t *testing.T, rules map[models.RuleName]models.Rule) *Middleware {
	t.Helper()
	limiter, err := service.New(record.New(), service.WithConfig(&config.Config{Rules: rules}))
	require.NoError(t, err)
	return New(limiter, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// wrap applies the client IP and request clock middleware the router always
// installs ahead of rate limiting.
func wrap(h http.Handler) http.Handler {
	return requestclock.Middleware(platformMW.ClientIP(h))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestPerIP(t *testing.T) {
	mw := newTestMiddleware(t, map[models.RuleName]models.Rule{
		models.RuleAPIPerIP: {MaxRequests: 2, Window: time.Hour, Cooldown: 5 * time.Minute},
	})
	handler := wrap(mw.PerIP(models.RuleAPIPerIP)(okHandler()))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/forms", nil)
		req.RemoteAddr = ip + ":51234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("allowed requests pass with headers", func(t *testing.T) {
		rec := do("203.0.113.7")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("third request is rejected", func(t *testing.T) {
		do("203.0.113.7")
		rec := do("203.0.113.7")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "rate_limited", body["error"])
	})

	t.Run("other IPs are unaffected", func(t *testing.T) {
		rec := do("198.51.100.9")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestPerUser(t *testing.T) {
	mw := newTestMiddleware(t, map[models.RuleName]models.Rule{
		models.RuleAPIPerUser: {MaxRequests: 1, Window: time.Hour},
	})
	handler := wrap(mw.PerUser(models.RuleAPIPerUser)(okHandler()))

	do := func(userID, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/forms", nil)
		req.RemoteAddr = ip + ":51234"
		if userID != "" {
			req = req.WithContext(platformMW.WithUserID(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("budget is per user, not per IP", func(t *testing.T) {
		require.Equal(t, http.StatusOK, do("user-1", "203.0.113.7").Code)
		assert.Equal(t, http.StatusTooManyRequests, do("user-1", "198.51.100.9").Code)
		assert.Equal(t, http.StatusOK, do("user-2", "203.0.113.7").Code)
	})

	t.Run("unauthenticated requests fall back to IP", func(t *testing.T) {
		require.Equal(t, http.StatusOK, do("", "192.0.2.1").Code)
		assert.Equal(t, http.StatusTooManyRequests, do("", "192.0.2.1").Code)
	})
}

func TestFailOpenOnMisconfiguredRule(t *testing.T) {
	mw := newTestMiddleware(t, map[models.RuleName]models.Rule{
		models.RuleAPIPerIP: {MaxRequests: 1, Window: time.Hour},
	})
	handler := wrap(mw.PerIP("rule_that_does_not_exist")(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/api/forms", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "misconfiguration must not take the endpoint down")
}
