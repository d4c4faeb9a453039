package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HitsTotal      prometheus.Counter
	MissesTotal    prometheus.Counter
	EvictionsTotal prometheus.Counter
	ExpiredTotal   prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		HitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autoforms_cache_hits_total",
			Help: "Total number of cache hits",
		}),
		MissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autoforms_cache_misses_total",
			Help: "Total number of cache misses",
		}),
		EvictionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autoforms_cache_evictions_total",
			Help: "Total number of entries evicted to respect the size bound",
		}),
		ExpiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autoforms_cache_expired_total",
			Help: "Total number of expired entries removed",
		}),
	}
}

func (m *Metrics) RecordHit() {
	if m == nil {
		return
	}
	m.HitsTotal.Inc()
}

func (m *Metrics) RecordMiss() {
	if m == nil {
		return
	}
	m.MissesTotal.Inc()
}

func (m *Metrics) RecordEviction() {
	if m == nil {
		return
	}
	m.EvictionsTotal.Inc()
}

func (m *Metrics) RecordExpired(count int) {
	if m == nil || count == 0 {
		return
	}
	m.ExpiredTotal.Add(float64(count))
}
