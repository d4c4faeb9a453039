// Package config holds the static rate limit rule table. Rules are defined
// once at process start and immutable thereafter.
package config

import (
	"os"
	"strconv"
	"time"

	"autoforms/internal/ratelimit/models"
	dErrors "autoforms/pkg/domain-errors"
)

// Config maps rule names to their parameters.
type Config struct {
	Rules map[models.RuleName]models.Rule
}

// DefaultConfig returns the production rule table.
func DefaultConfig() *Config {
	return &Config{
		Rules: map[models.RuleName]models.Rule{
			// Email sending limits.
			models.RuleEmailPerAddress: {MaxRequests: 5, Window: time.Hour, Cooldown: 5 * time.Minute},
			models.RuleEmailPerUser:    {MaxRequests: 10, Window: time.Hour, Cooldown: 5 * time.Minute},
			models.RuleEmailPerIP:      {MaxRequests: 20, Window: time.Hour, Cooldown: 10 * time.Minute},
			models.RuleEmailGlobal:     {MaxRequests: 100, Window: time.Hour, Cooldown: 30 * time.Minute},

			// API limits.
			models.RuleAPIPerIP:        {MaxRequests: 100, Window: time.Hour, Cooldown: 5 * time.Minute},
			models.RuleAPIPerUser:      {MaxRequests: 200, Window: time.Hour, Cooldown: 5 * time.Minute},
			models.RuleFormGeneration:  {MaxRequests: 10, Window: time.Hour, Cooldown: 10 * time.Minute},
			models.RuleFormSubmission:  {MaxRequests: 50, Window: time.Hour, Cooldown: 5 * time.Minute},
		},
	}
}

// FromEnv returns the default table with per-rule env overrides applied.
// Overrides use the pattern RATE_LIMIT_<RULE>_MAX, _WINDOW (seconds) and
// _COOLDOWN (seconds), e.g. RATE_LIMIT_FORM_GENERATION_PER_USER_MAX=20.
func FromEnv() *Config {
	cfg := DefaultConfig()
	for name, rule := range cfg.Rules {
		prefix := "RATE_LIMIT_" + envSegment(name)
		if v, ok := intEnv(prefix + "_MAX"); ok {
			rule.MaxRequests = v
		}
		if v, ok := intEnv(prefix + "_WINDOW"); ok {
			rule.Window = time.Duration(v) * time.Second
		}
		if v, ok := intEnv(prefix + "_COOLDOWN"); ok {
			rule.Cooldown = time.Duration(v) * time.Second
		}
		cfg.Rules[name] = rule
	}
	return cfg
}

// Get returns the rule for a name. A missing rule is a configuration
// mistake and is reported as an error rather than silently allowing or
// denying.
func (c *Config) Get(name models.RuleName) (models.Rule, error) {
	rule, ok := c.Rules[name]
	if !ok {
		return models.Rule{}, dErrors.New(dErrors.CodeInvariantViolation, "unknown rate limit rule: "+string(name))
	}
	return rule, nil
}

// Validate checks every configured rule's invariants.
func (c *Config) Validate() error {
	for name, rule := range c.Rules {
		if err := rule.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "invalid rule "+string(name))
		}
	}
	return nil
}

func envSegment(name models.RuleName) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

func intEnv(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
