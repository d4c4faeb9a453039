// Package record implements the in-memory registry of rate limit records.
//
// One record tracks the request timestamps of a single (rule, identifier)
// pair inside a sliding window, plus an optional cooldown. Check and Record
// are deliberately separate operations: callers check permission before
// doing expensive work and record only after the work actually happened, so
// checked-but-unperformed actions are never charged against the budget.
package record

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autoforms/internal/ratelimit/models"
	"autoforms/pkg/requestclock"
)

// Store is the registry of rate limit records, keyed by hashed
// (rule, identifier) keys. Safe for concurrent use; a single mutex guards
// all records, which is sufficient since every operation is a short
// in-memory mutation.
type Store struct {
	mu      sync.Mutex
	records map[string]*record
}

// record is the aggregate root for one (rule, identifier) pair.
type record struct {
	requests     []time.Time
	blockedUntil time.Time // zero when not blocked
	totalBlocked int
	lastSeen     time.Time
}

// pruneWindow drops timestamps older than now-window. Insertion order is
// chronological, so a single cut suffices.
func (r *record) pruneWindow(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(r.requests); i++ {
		if r.requests[i].After(cutoff) {
			break
		}
	}
	r.requests = r.requests[i:]
}

// New creates an empty record store.
func New() *Store {
	return &Store{records: make(map[string]*record)}
}

// Check evaluates whether an action for the keyed identifier may proceed
// under the given rule. It never appends a timestamp; see Record. The time
// source is the request-scoped clock.
//
// Order of evaluation: an in-force cooldown denies immediately; an elapsed
// cooldown is cleared; then the window is pruned before capacity is
// evaluated, so clearing a cooldown never bypasses window accounting.
func (s *Store) Check(ctx context.Context, key models.RecordKey, rule models.Rule) *models.Result {
	now := requestclock.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.get(key, now)

	if !rec.blockedUntil.IsZero() {
		if now.Before(rec.blockedUntil) {
			return &models.Result{
				Allowed:    false,
				Reason:     fmt.Sprintf("blocked until %s", rec.blockedUntil.UTC().Format(time.RFC3339)),
				Limit:      rule.MaxRequests,
				Remaining:  0,
				ResetAt:    rec.blockedUntil,
				RetryAfter: retryAfterSeconds(now, rec.blockedUntil),
			}
		}
		rec.blockedUntil = time.Time{}
	}

	rec.pruneWindow(now, rule.Window)

	if len(rec.requests) >= rule.MaxRequests {
		resetAt := rec.requests[0].Add(rule.Window)
		if rule.Cooldown > 0 {
			rec.blockedUntil = now.Add(rule.Cooldown)
			rec.totalBlocked++
			resetAt = rec.blockedUntil
		}
		return &models.Result{
			Allowed:    false,
			Reason:     "rate limit exceeded",
			Limit:      rule.MaxRequests,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}
	}

	resetAt := now.Add(rule.Window)
	if len(rec.requests) > 0 {
		resetAt = rec.requests[0].Add(rule.Window)
	}
	return &models.Result{
		Allowed:   true,
		Reason:    "ok",
		Limit:     rule.MaxRequests,
		Remaining: rule.MaxRequests - len(rec.requests),
		ResetAt:   resetAt,
	}
}

// Record appends the current time to the keyed record. Always succeeds.
func (s *Store) Record(ctx context.Context, key models.RecordKey) {
	now := requestclock.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.get(key, now)
	rec.requests = append(rec.requests, now)
}

// Status reports the current state of the keyed record for monitoring.
// The window is pruned first so counts reflect only live requests.
func (s *Store) Status(ctx context.Context, key models.RecordKey, rule models.Rule) *models.Status {
	now := requestclock.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.get(key, now)
	rec.pruneWindow(now, rule.Window)

	st := &models.Status{
		Rule:            key.Rule(),
		CurrentRequests: len(rec.requests),
		MaxRequests:     rule.MaxRequests,
		WindowSeconds:   int(rule.Window.Seconds()),
		Remaining:       max(0, rule.MaxRequests-len(rec.requests)),
		TotalBlocked:    rec.totalBlocked,
	}
	if !rec.blockedUntil.IsZero() && now.Before(rec.blockedUntil) {
		until := rec.blockedUntil
		st.BlockedUntil = &until
	}
	return st
}

// Reset removes the keyed record entirely.
func (s *Store) Reset(ctx context.Context, key models.RecordKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key.String())
}

// Sweep removes records whose last activity is older than threshold and
// that are not currently blocked. Returns the number of records removed.
// Called periodically by the reaper to cap registry growth under high
// identifier cardinality.
func (s *Store) Sweep(ctx context.Context, threshold time.Duration) int {
	now := requestclock.Now(ctx)
	cutoff := now.Add(-threshold)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, rec := range s.records {
		if rec.lastSeen.After(cutoff) {
			continue
		}
		if !rec.blockedUntil.IsZero() && now.Before(rec.blockedUntil) {
			continue
		}
		delete(s.records, key)
		removed++
	}
	return removed
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// get lazily creates the record for a key and refreshes its activity stamp.
// Must be called with the lock held.
func (s *Store) get(key models.RecordKey, now time.Time) *record {
	k := key.String()
	rec, ok := s.records[k]
	if !ok {
		rec = &record{}
		s.records[k] = rec
	}
	rec.lastSeen = now
	return rec
}

func retryAfterSeconds(now, resetAt time.Time) int {
	seconds := int(resetAt.Sub(now).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}
