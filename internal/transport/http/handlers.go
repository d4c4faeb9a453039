// Package httptransport is the thin HTTP layer. It delegates to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"autoforms/internal/cache"
	"autoforms/internal/generate"
	platformMW "autoforms/internal/platform/middleware"
	"autoforms/internal/ratelimit/models"
	dErrors "autoforms/pkg/domain-errors"
)

// StatusReporter is the monitoring surface of the rate limiter.
type StatusReporter interface {
	Status(ctx context.Context, rule models.RuleName, identifier string) (*models.Status, error)
}

// CacheInspector is the monitoring/admin surface of the in-memory cache.
// Nil when the Redis backend is active (Redis owns its own expiry and has
// no process-local stats worth reporting here).
type CacheInspector interface {
	Snapshot(ctx context.Context) cache.Stats
	Clear(ctx context.Context)
}

// Handler holds the services the HTTP layer delegates to.
type Handler struct {
	generator *generate.Service
	status    StatusReporter
	cache     CacheInspector
	logger    *slog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(generator *generate.Service, status StatusReporter, cacheInspector CacheInspector, logger *slog.Logger) *Handler {
	return &Handler{
		generator: generator,
		status:    status,
		cache:     cacheInspector,
		logger:    logger,
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Lang   string `json:"lang"`
}

// handleGenerate serves POST /api/generate.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	ctx := r.Context()
	result, err := h.generator.Generate(ctx,
		platformMW.GetUserID(ctx),
		platformMW.GetClientIP(ctx),
		req.Prompt,
		req.Lang,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleLimitStatus serves GET /api/limits/{rule}. The identifier is the
// authenticated user, falling back to the client IP.
func (h *Handler) handleLimitStatus(rule models.RuleName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identifier := platformMW.GetUserID(ctx)
		if identifier == "" {
			identifier = platformMW.GetClientIP(ctx)
		}

		status, err := h.status.Status(ctx, rule, identifier)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// handleCacheStats serves GET /api/cache/stats.
func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusOK, map[string]string{"backend": "redis"})
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Snapshot(r.Context()))
}

// handleCacheClear serves POST /api/cache/clear.
func (h *Handler) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		h.cache.Clear(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleHealth serves GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
