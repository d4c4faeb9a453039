package emailpolicy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoforms/internal/ratelimit/config"
	"autoforms/internal/ratelimit/models"
	"autoforms/internal/ratelimit/service"
	"autoforms/internal/ratelimit/store/record"
	"autoforms/pkg/requestclock"
)

func newPolicy(t *testing.T) (*Service, *service.Service) {
	t.Helper()
	cfg := &config.Config{
		Rules: map[models.RuleName]models.Rule{
			models.RuleEmailPerAddress: {MaxRequests: 2, Window: time.Hour, Cooldown: 5 * time.Minute},
			models.RuleEmailPerUser:    {MaxRequests: 3, Window: time.Hour},
			models.RuleEmailPerIP:      {MaxRequests: 4, Window: time.Hour},
			models.RuleEmailGlobal:     {MaxRequests: 10, Window: time.Hour},
		},
	}
	limiter, err := service.New(record.New(), service.WithConfig(cfg))
	require.NoError(t, err)

	policy, err := New(limiter)
	require.NoError(t, err)
	return policy, limiter
}

func testCtx() context.Context {
	return requestclock.WithTime(context.Background(), time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
}

func TestCheckSend_AllRulesAllow(t *testing.T) {
	policy, _ := newPolicy(t)

	result, err := policy.CheckSend(testCtx(), "to@example.com", "user-1", "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestCheckSend_AnyRuleDenies(t *testing.T) {
	policy, _ := newPolicy(t)
	ctx := testCtx()

	// Exhaust the per-address budget only.
	require.NoError(t, policy.RecordSend(ctx, "to@example.com", "user-1", "203.0.113.7"))
	require.NoError(t, policy.RecordSend(ctx, "to@example.com", "user-1", "203.0.113.7"))

	result, err := policy.CheckSend(ctx, "to@example.com", "user-1", "203.0.113.7")
	require.NoError(t, err, "denial is a normal outcome")
	require.False(t, result.Allowed)
	assert.Contains(t, result.Reason, string(models.RuleEmailPerAddress))

	t.Run("other recipients are unaffected", func(t *testing.T) {
		result, err := policy.CheckSend(ctx, "other@example.com", "user-1", "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})
}

func TestCheckSend_OptionalIdentifiersDropTheirRules(t *testing.T) {
	policy, limiter := newPolicy(t)
	ctx := testCtx()

	// With no user and no IP, only per-address and global apply: three sends
	// to three addresses stay allowed even though the per-user ceiling is 3.
	for _, addr := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		result, err := policy.CheckSend(ctx, addr, "", "")
		require.NoError(t, err)
		require.True(t, result.Allowed)
		require.NoError(t, policy.RecordSend(ctx, addr, "", ""))
	}

	status, err := limiter.Status(ctx, models.RuleEmailGlobal, models.GlobalIdentifier)
	require.NoError(t, err)
	assert.Equal(t, 3, status.CurrentRequests, "global rule charged per send")
}

func TestRecordSend_ChargesEveryApplicableRule(t *testing.T) {
	policy, limiter := newPolicy(t)
	ctx := testCtx()

	require.NoError(t, policy.RecordSend(ctx, "to@example.com", "user-1", "203.0.113.7"))

	for _, tc := range []struct {
		rule       models.RuleName
		identifier string
	}{
		{models.RuleEmailPerAddress, "to@example.com"},
		{models.RuleEmailPerUser, "user-1"},
		{models.RuleEmailPerIP, "203.0.113.7"},
		{models.RuleEmailGlobal, models.GlobalIdentifier},
	} {
		status, err := limiter.Status(ctx, tc.rule, tc.identifier)
		require.NoError(t, err)
		assert.Equal(t, 1, status.CurrentRequests, "rule %s", tc.rule)
	}
}

func TestNewRequiresLimiter(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
