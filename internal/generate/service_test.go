package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"autoforms/internal/cache"
	"autoforms/internal/notify"
	rlConfig "autoforms/internal/ratelimit/config"
	"autoforms/internal/ratelimit/models"
	"autoforms/internal/ratelimit/service"
	"autoforms/internal/ratelimit/store/record"
	dErrors "autoforms/pkg/domain-errors"
	"autoforms/pkg/requestclock"
)

// countingGenerator wraps the fallback templates and counts invocations.
type countingGenerator struct {
	calls int
	err   error
}

func (g *countingGenerator) Generate(ctx context.Context, prompt, lang string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return "<form>" + prompt + "</form>", nil
}

type recordingNotifier struct {
	events []notify.Event
	users  []string
}

func (n *recordingNotifier) SendToUser(ctx context.Context, userID string, event notify.Event) {
	n.users = append(n.users, userID)
	n.events = append(n.events, event)
}

type GenerateSuite struct {
	suite.Suite
	gen      *countingGenerator
	limiter  *service.Service
	notifier *recordingNotifier
	svc      *Service
	now      time.Time
}

func (s *GenerateSuite) SetupTest() {
	cfg := &rlConfig.Config{
		Rules: map[models.RuleName]models.Rule{
			models.RuleFormGeneration: {MaxRequests: 2, Window: time.Hour, Cooldown: 10 * time.Minute},
			models.RuleAPIPerIP:       {MaxRequests: 100, Window: time.Hour},
		},
	}
	limiter, err := service.New(record.New(), service.WithConfig(cfg))
	s.Require().NoError(err)

	s.gen = &countingGenerator{}
	s.limiter = limiter
	s.notifier = &recordingNotifier{}
	s.now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	svc, err := New(s.gen, limiter, cache.New(50), WithNotifier(s.notifier))
	s.Require().NoError(err)
	s.svc = svc
}

func (s *GenerateSuite) ctx() context.Context {
	return requestclock.WithTime(context.Background(), s.now)
}

func (s *GenerateSuite) TestGenerate() {
	result, err := s.svc.Generate(s.ctx(), "user-1", "203.0.113.7", "contact form", "en")
	s.Require().NoError(err)
	s.Equal("<form>contact form</form>", result.HTML)
	s.False(result.Cached)
	s.Equal(1, s.gen.calls)
}

func (s *GenerateSuite) TestRepeatedPromptServedFromCache() {
	ctx := s.ctx()
	_, err := s.svc.Generate(ctx, "user-1", "203.0.113.7", "contact form", "en")
	s.Require().NoError(err)

	result, err := s.svc.Generate(ctx, "user-1", "203.0.113.7", "Contact Form", "en")
	s.Require().NoError(err)
	s.True(result.Cached, "normalized prompt hits the same entry")
	s.Equal(1, s.gen.calls)
}

func (s *GenerateSuite) TestCacheHitDoesNotChargeBudget() {
	ctx := s.ctx()

	// The generation budget allows 2. One real generation plus any number of
	// cache hits must leave one unit of budget standing.
	_, err := s.svc.Generate(ctx, "user-1", "203.0.113.7", "contact form", "en")
	s.Require().NoError(err)
	for i := 0; i < 5; i++ {
		_, err := s.svc.Generate(ctx, "user-1", "203.0.113.7", "contact form", "en")
		s.Require().NoError(err)
	}

	status, err := s.limiter.Status(ctx, models.RuleFormGeneration, "user-1")
	s.Require().NoError(err)
	s.Equal(1, status.CurrentRequests, "only the real generation was charged")
}

func (s *GenerateSuite) TestRateLimitedGeneration() {
	ctx := s.ctx()
	_, err := s.svc.Generate(ctx, "user-1", "203.0.113.7", "prompt one", "en")
	s.Require().NoError(err)
	_, err = s.svc.Generate(ctx, "user-1", "203.0.113.7", "prompt two", "en")
	s.Require().NoError(err)

	_, err = s.svc.Generate(ctx, "user-1", "203.0.113.7", "prompt three", "en")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
	s.Contains(err.Error(), string(models.RuleFormGeneration))
	s.Equal(2, s.gen.calls, "the denied request never reached the generator")
}

func (s *GenerateSuite) TestGeneratorFailureIsNotCachedOrCharged() {
	ctx := s.ctx()
	s.gen.err = errors.New("upstream timeout")

	_, err := s.svc.Generate(ctx, "user-1", "203.0.113.7", "contact form", "en")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	status, err := s.limiter.Status(ctx, models.RuleFormGeneration, "user-1")
	s.Require().NoError(err)
	s.Equal(0, status.CurrentRequests, "failed generations cost nothing")

	// The failure left no cache entry behind: recovery retries for real.
	s.gen.err = nil
	result, err := s.svc.Generate(ctx, "user-1", "203.0.113.7", "contact form", "en")
	s.Require().NoError(err)
	s.False(result.Cached)
}

func (s *GenerateSuite) TestEmptyPromptRejected() {
	_, err := s.svc.Generate(s.ctx(), "user-1", "203.0.113.7", "", "en")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *GenerateSuite) TestNotification() {
	_, err := s.svc.Generate(s.ctx(), "user-1", "203.0.113.7", "contact form", "en")
	s.Require().NoError(err)

	s.Require().Len(s.notifier.events, 1)
	s.Equal("user-1", s.notifier.users[0])
	s.Equal(notify.EventFormGenerated, s.notifier.events[0].Type)
}

func (s *GenerateSuite) TestAnonymousGenerationSkipsUserGates() {
	ctx := s.ctx()
	result, err := s.svc.Generate(ctx, "", "203.0.113.7", "contact form", "en")
	s.Require().NoError(err)
	s.NotEmpty(result.HTML)
	s.Empty(s.notifier.events, "no push without a user")

	status, err := s.limiter.Status(ctx, models.RuleAPIPerIP, "203.0.113.7")
	s.Require().NoError(err)
	s.Equal(1, status.CurrentRequests, "the IP budget is still charged")
}

func TestGenerateSuite(t *testing.T) {
	suite.Run(t, new(GenerateSuite))
}

func TestFallbackGenerator(t *testing.T) {
	g := NewFallbackGenerator()
	ctx := context.Background()

	tests := []struct {
		prompt string
		want   string
	}{
		{"a contact form for my bakery", `name="message"`},
		{"event registration with dietary needs", `name="full_name"`},
		{"customer feedback survey", `name="rating"`},
		{"something entirely else", `name="details"`},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			html, err := g.Generate(ctx, tt.prompt, "en")
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if !containsAny(html, tt.want) {
				t.Errorf("template for %q missing %q:\n%s", tt.prompt, tt.want, html)
			}
		})
	}
}
