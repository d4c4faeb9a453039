// Package reaper removes stale state from the in-memory stores on a timer:
// rate limit records inactive beyond a threshold and expired cache entries.
// Without it, high identifier cardinality would grow the registries without
// bound.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"autoforms/internal/ratelimit/metrics"
)

// RecordStore is swept of records inactive beyond the threshold.
type RecordStore interface {
	Sweep(ctx context.Context, threshold time.Duration) int
	Len() int
}

// CacheSweeper is swept of already-expired entries.
type CacheSweeper interface {
	SweepExpired(ctx context.Context) int
}

// Result contains the outcome of one reaper run.
type Result struct {
	RecordsRemoved      int
	CacheEntriesRemoved int
	Duration            time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithThreshold(threshold time.Duration) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.threshold = threshold
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCache(cache CacheSweeper) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

type Service struct {
	records   RecordStore
	cache     CacheSweeper
	logger    *slog.Logger
	interval  time.Duration
	threshold time.Duration
	metrics   *metrics.Metrics
}

func New(records RecordStore, opts ...Option) *Service {
	service := &Service{
		records:   records,
		logger:    slog.Default(),
		interval:  30 * time.Minute,
		threshold: 2 * time.Hour,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Start runs the reaper until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			startTime := time.Now()
			res := s.RunOnce(ctx)
			res.Duration = time.Since(startTime)

			s.logger.Info("reaper_run_completed",
				"records_removed", res.RecordsRemoved,
				"cache_entries_removed", res.CacheEntriesRemoved,
				"records_held", s.records.Len(),
				"duration_ms", res.Duration.Milliseconds(),
			)
			s.metrics.RecordReaperRun("success", res.RecordsRemoved, res.Duration.Seconds())
			s.metrics.SetRecordsHeld(s.records.Len())

		case <-ctx.Done():
			s.logger.Info("reaper stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single sweep. Logging is handled by the caller (Start).
func (s *Service) RunOnce(ctx context.Context) *Result {
	res := &Result{}
	res.RecordsRemoved = s.records.Sweep(ctx, s.threshold)
	if s.cache != nil {
		res.CacheEntriesRemoved = s.cache.SweepExpired(ctx)
	}
	return res
}
