package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "autoforms/pkg/domain-errors"
)

// RuleName identifies a statically configured rate limit rule.
type RuleName string

const (
	// Email sending rules, evaluated as a conjunction per send.
	RuleEmailPerAddress RuleName = "email_per_address"
	RuleEmailPerUser    RuleName = "email_per_user"
	RuleEmailPerIP      RuleName = "email_per_ip"
	RuleEmailGlobal     RuleName = "email_global"

	// API rules.
	RuleAPIPerIP       RuleName = "api_per_ip"
	RuleAPIPerUser     RuleName = "api_per_user"
	RuleFormGeneration RuleName = "form_generation_per_user"
	RuleFormSubmission RuleName = "form_submission"
)

// GlobalIdentifier is the fixed identifier used by process-wide rules.
const GlobalIdentifier = "global"

// Rule defines rate limit parameters for a named rule. Immutable after
// process start.
type Rule struct {
	MaxRequests int
	Window      time.Duration
	// Cooldown, when non-zero, blocks the identifier for this long once the
	// ceiling is hit, regardless of window state.
	Cooldown time.Duration
}

// Validate enforces the rule invariants.
func (r Rule) Validate() error {
	if r.MaxRequests <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "max_requests must be positive")
	}
	if r.Window <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "window must be positive")
	}
	if r.Cooldown < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "cooldown cannot be negative")
	}
	return nil
}

// Result is the outcome of a rate limit check. Denial is a normal outcome,
// not an error.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Status is a read model describing the current state of one (rule,
// identifier) record, for monitoring endpoints.
type Status struct {
	Rule            RuleName   `json:"rule"`
	CurrentRequests int        `json:"current_requests"`
	MaxRequests     int        `json:"max_requests"`
	WindowSeconds   int        `json:"window_seconds"`
	Remaining       int        `json:"remaining"`
	BlockedUntil    *time.Time `json:"blocked_until,omitempty"`
	TotalBlocked    int        `json:"total_blocked"`
}

// Violation records one cooldown activation, for observability.
type Violation struct {
	ID            string    `json:"id"`
	Rule          RuleName  `json:"rule"`
	Limit         int       `json:"limit"`
	WindowSeconds int       `json:"window_seconds"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewViolation creates a Violation with domain invariant validation.
func NewViolation(rule RuleName, limit, windowSeconds int, occurredAt time.Time) (*Violation, error) {
	if rule == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rule cannot be empty")
	}
	if limit <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "limit must be positive")
	}
	if windowSeconds <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "window_seconds must be positive")
	}
	return &Violation{
		ID:            uuid.NewString(),
		Rule:          rule,
		Limit:         limit,
		WindowSeconds: windowSeconds,
		OccurredAt:    occurredAt,
	}, nil
}
