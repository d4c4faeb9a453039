// Package generate orchestrates form generation: it gates requests behind
// the rate limiter, serves repeated prompts from cache, calls the injected
// Generator (the LLM client) for the rest, charges the rate limit budget
// only for generations that actually ran, and pushes a real-time
// notification on success.
package generate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"autoforms/internal/cache"
	"autoforms/internal/notify"
	"autoforms/internal/ratelimit/models"
	dErrors "autoforms/pkg/domain-errors"
)

// Generator produces form HTML from a natural-language prompt. Timeout and
// fallback behavior live behind this interface; the service only
// orchestrates.
type Generator interface {
	Generate(ctx context.Context, prompt, lang string) (string, error)
}

// Limiter is the named-rule rate limiter.
type Limiter interface {
	Check(ctx context.Context, rule models.RuleName, identifier string) (*models.Result, error)
	Record(ctx context.Context, rule models.RuleName, identifier string) error
}

// Notifier pushes real-time events to connected clients.
type Notifier interface {
	SendToUser(ctx context.Context, userID string, event notify.Event)
}

// Result is the outcome of one generation request.
type Result struct {
	HTML   string `json:"html"`
	Cached bool   `json:"cached"`
}

// Service coordinates limiter, cache, and generator.
type Service struct {
	generator Generator
	limiter   Limiter
	loader    *cache.Loader
	notifier  Notifier
	logger    *slog.Logger
	cacheTTL  time.Duration
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier sets the real-time notifier. Optional; without it
// generations simply produce no push events.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithCacheTTL overrides the default result TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// New creates the generation service.
func New(generator Generator, limiter Limiter, backend cache.Backend, opts ...Option) (*Service, error) {
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if limiter == nil {
		return nil, errors.New("limiter is required")
	}
	if backend == nil {
		return nil, errors.New("cache backend is required")
	}

	svc := &Service{
		generator: generator,
		limiter:   limiter,
		loader:    cache.NewLoader(backend),
		logger:    slog.Default(),
		cacheTTL:  30 * time.Minute,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Generate produces form HTML for a prompt on behalf of a user.
//
// Rate limit checks run first (per-user generation budget and per-IP API
// budget, AND-ed); a denial surfaces as a CodeRateLimited domain error for
// the HTTP layer to turn into 429. A cache hit does not charge the
// generation budget: the two-phase check/record protocol exists precisely
// so work that never ran is never billed.
func (s *Service) Generate(ctx context.Context, userID, ip, prompt, lang string) (*Result, error) {
	if prompt == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "prompt is required")
	}
	if lang == "" {
		lang = "en"
	}

	if err := s.checkLimits(ctx, userID, ip); err != nil {
		return nil, err
	}

	ran := false
	key := cache.GenerationKey(prompt, lang)
	value, cached, err := s.loader.GetOrLoad(ctx, key, s.cacheTTL, func(ctx context.Context) (any, error) {
		html, err := s.generator.Generate(ctx, prompt, lang)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "form generation failed")
		}
		ran = true
		return html, nil
	})
	if err != nil {
		return nil, err
	}

	html, ok := value.(string)
	if !ok {
		// A foreign value under our key (e.g. a shared Redis database).
		// Treat as a failed read rather than serving garbage.
		return nil, dErrors.New(dErrors.CodeInternal, "unexpected cached value type")
	}

	if ran {
		s.recordLimits(ctx, userID, ip)
	}

	s.logger.Info("form_generated",
		"user_id", userID,
		"lang", lang,
		"cached", cached,
		"prompt_len", len(prompt),
	)

	if s.notifier != nil && userID != "" {
		s.notifier.SendToUser(ctx, userID, notify.Event{
			Type:    notify.EventFormGenerated,
			Message: "your form is ready",
			Data:    map[string]any{"cached": cached, "lang": lang},
		})
	}

	return &Result{HTML: html, Cached: cached}, nil
}

func (s *Service) checkLimits(ctx context.Context, userID, ip string) error {
	type gate struct {
		rule       models.RuleName
		identifier string
	}
	gates := make([]gate, 0, 2)
	if userID != "" {
		gates = append(gates, gate{models.RuleFormGeneration, userID})
	}
	if ip != "" {
		gates = append(gates, gate{models.RuleAPIPerIP, ip})
	}

	for _, g := range gates {
		result, err := s.limiter.Check(ctx, g.rule, g.identifier)
		if err != nil {
			return err
		}
		if !result.Allowed {
			return dErrors.New(dErrors.CodeRateLimited, string(g.rule)+": "+result.Reason)
		}
	}
	return nil
}

func (s *Service) recordLimits(ctx context.Context, userID, ip string) {
	if userID != "" {
		if err := s.limiter.Record(ctx, models.RuleFormGeneration, userID); err != nil {
			s.logger.Error("failed to record generation", "error", err)
		}
	}
	if ip != "" {
		if err := s.limiter.Record(ctx, models.RuleAPIPerIP, ip); err != nil {
			s.logger.Error("failed to record generation", "error", err)
		}
	}
}
