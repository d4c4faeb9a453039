// Package service provides named-rule rate limiting.
//
// This is the primary limiter consumed by middleware and other services.
// Check and Record are decoupled: a caller checks permission before doing
// expensive work, then records only after the work succeeded.
//
// Usage:
//
//	svc, _ := service.New(recordStore)
//	result, _ := svc.Check(ctx, models.RuleFormGeneration, userID)
//	if !result.Allowed {
//	    // Surface HTTP 429, or drop silently for best-effort actions.
//	}
//	// ... perform the action ...
//	_ = svc.Record(ctx, models.RuleFormGeneration, userID)
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"autoforms/internal/ratelimit/config"
	"autoforms/internal/ratelimit/metrics"
	"autoforms/internal/ratelimit/models"
	dErrors "autoforms/pkg/domain-errors"
)

// RecordStore tracks per-key request history and cooldowns.
type RecordStore interface {
	Check(ctx context.Context, key models.RecordKey, rule models.Rule) *models.Result
	Record(ctx context.Context, key models.RecordKey)
	Status(ctx context.Context, key models.RecordKey, rule models.Rule) *models.Status
	Reset(ctx context.Context, key models.RecordKey)
	Sweep(ctx context.Context, threshold time.Duration) int
	Len() int
}

// Service evaluates named rules against a record store.
// Thread-safe for concurrent use by HTTP middleware and services.
type Service struct {
	store   RecordStore
	logger  *slog.Logger
	config  *config.Config
	metrics *metrics.Metrics
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger for violation logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConfig overrides the default rule table.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithMetrics sets the metrics recorder for observability.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a rate limiting service over the given record store.
func New(store RecordStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}

	svc := &Service{
		store:  store,
		logger: slog.Default(),
		config: config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}

	if err := svc.config.Validate(); err != nil {
		return nil, err
	}
	return svc, nil
}

// Check decides whether an action for the identifier may proceed right now
// under the named rule. It does not consume budget. An unknown rule name is
// a configuration mistake and returns an error; it is never reported as a
// normal denied (or allowed) outcome.
func (s *Service) Check(ctx context.Context, rule models.RuleName, identifier string) (*models.Result, error) {
	r, err := s.config.Get(rule)
	if err != nil {
		return nil, err
	}

	key := models.NewRecordKey(rule, identifier)
	result := s.store.Check(ctx, key, r)
	s.metrics.RecordCheck(string(rule), result.Allowed)

	if !result.Allowed {
		if result.Reason == "rate limit exceeded" && r.Cooldown > 0 {
			s.metrics.RecordCooldown(string(rule))
		}
		s.logger.Info("rate_limit_denied",
			"rule", rule,
			"identifier_key", key.String(),
			"reason", result.Reason,
			"limit", r.MaxRequests,
			"window_seconds", int(r.Window.Seconds()),
			"retry_after", result.RetryAfter,
		)
	}
	return result, nil
}

// Record charges one request against the identifier's budget for the named
// rule. Call only after the action actually succeeded.
func (s *Service) Record(ctx context.Context, rule models.RuleName, identifier string) error {
	if _, err := s.config.Get(rule); err != nil {
		return err
	}
	s.store.Record(ctx, models.NewRecordKey(rule, identifier))
	return nil
}

// Status returns the monitoring view for a (rule, identifier) pair.
func (s *Service) Status(ctx context.Context, rule models.RuleName, identifier string) (*models.Status, error) {
	r, err := s.config.Get(rule)
	if err != nil {
		return nil, err
	}
	return s.store.Status(ctx, models.NewRecordKey(rule, identifier), r), nil
}

// Reset clears the record for a (rule, identifier) pair. Admin operation.
func (s *Service) Reset(ctx context.Context, rule models.RuleName, identifier string) error {
	if _, err := s.config.Get(rule); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "reset for unknown rule")
	}
	s.store.Reset(ctx, models.NewRecordKey(rule, identifier))
	return nil
}
