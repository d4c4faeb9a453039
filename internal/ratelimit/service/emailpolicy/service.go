// Package emailpolicy gates email sending behind the conjunction of up to
// four rate limit rules: per-recipient address, global, per-sending user
// (when known), and per-source IP (when known). If any rule disallows, the
// whole send is disallowed.
//
// Callers must CheckSend before attempting the send and RecordSend only
// after the send actually succeeded. Best-effort senders (notification mail
// after a form submission) treat a denial as a silent no-op rather than
// failing the parent operation.
package emailpolicy

import (
	"context"
	"errors"
	"log/slog"

	"autoforms/internal/ratelimit/models"
)

// Limiter is the named-rule rate limiter the policy is built on.
type Limiter interface {
	Check(ctx context.Context, rule models.RuleName, identifier string) (*models.Result, error)
	Record(ctx context.Context, rule models.RuleName, identifier string) error
}

// Service applies the composite email sending policy.
type Service struct {
	limiter Limiter
	logger  *slog.Logger
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

// New creates the email policy service.
func New(limiter Limiter, opts ...Option) (*Service, error) {
	if limiter == nil {
		return nil, errors.New("limiter is required")
	}
	svc := &Service{limiter: limiter, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// checks builds the applicable (rule, identifier) pairs for one send.
// userID and ip are optional; empty values drop their rule from the set.
func checks(address, userID, ip string) [][2]string {
	pairs := [][2]string{
		{string(models.RuleEmailPerAddress), address},
		{string(models.RuleEmailGlobal), models.GlobalIdentifier},
	}
	if userID != "" {
		pairs = append(pairs, [2]string{string(models.RuleEmailPerUser), userID})
	}
	if ip != "" {
		pairs = append(pairs, [2]string{string(models.RuleEmailPerIP), ip})
	}
	return pairs
}

// CheckSend evaluates every applicable rule. The first denial
// short-circuits and is returned with the denying rule's name as reason
// context. Denial is a normal outcome, not an error.
func (s *Service) CheckSend(ctx context.Context, address, userID, ip string) (*models.Result, error) {
	for _, pair := range checks(address, userID, ip) {
		rule := models.RuleName(pair[0])
		result, err := s.limiter.Check(ctx, rule, pair[1])
		if err != nil {
			return nil, err
		}
		if !result.Allowed {
			s.logger.Info("email_send_denied",
				"rule", rule,
				"reason", result.Reason,
				"retry_after", result.RetryAfter,
			)
			denied := *result
			denied.Reason = string(rule) + ": " + result.Reason
			return &denied, nil
		}
	}
	return &models.Result{Allowed: true, Reason: "ok"}, nil
}

// RecordSend charges one send against every applicable rule. Call only
// after the send succeeded.
func (s *Service) RecordSend(ctx context.Context, address, userID, ip string) error {
	for _, pair := range checks(address, userID, ip) {
		if err := s.limiter.Record(ctx, models.RuleName(pair[0]), pair[1]); err != nil {
			return err
		}
	}
	return nil
}
