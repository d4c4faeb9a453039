package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader wraps a Backend with singleflight deduplication: concurrent
// callers asking for the same missing key share one execution of the load
// function instead of each paying for the expensive computation.
type Loader struct {
	backend Backend
	group   singleflight.Group
}

// NewLoader creates a Loader over the given backend.
func NewLoader(backend Backend) *Loader {
	return &Loader{backend: backend}
}

// GetOrLoad returns the cached value for key, or runs load once (across
// all concurrent callers of the same key), caches its result with ttl, and
// returns it. The bool reports whether the value came from cache. Load
// errors are returned uncached so a failed computation can be retried.
func (l *Loader) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) (any, error)) (any, bool, error) {
	if value, ok := l.backend.Get(ctx, key); ok {
		return value, true, nil
	}

	value, err, _ := l.group.Do(key, func() (any, error) {
		// Re-check under the flight: another caller may have filled the
		// cache between our miss and acquiring the flight.
		if value, ok := l.backend.Get(ctx, key); ok {
			return value, nil
		}
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		l.backend.Set(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, false, nil
}
