package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal          *prometheus.CounterVec
	CooldownsTotal       *prometheus.CounterVec
	RecordsHeld          prometheus.Gauge
	ReaperRunsTotal      *prometheus.CounterVec
	ReaperRemovedTotal   prometheus.Counter
	ReaperDurationSeconds prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autoforms_ratelimit_checks_total",
			Help: "Total number of rate limit checks by rule and outcome",
		}, []string{"rule", "outcome"}),
		CooldownsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autoforms_ratelimit_cooldowns_total",
			Help: "Total number of cooldown activations by rule",
		}, []string{"rule"}),
		RecordsHeld: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "autoforms_ratelimit_records_held",
			Help: "Current number of rate limit records in the registry",
		}),
		ReaperRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autoforms_ratelimit_reaper_runs_total",
			Help: "Total number of reaper runs",
		}, []string{"status"}),
		ReaperRemovedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autoforms_ratelimit_reaper_removed_total",
			Help: "Total number of records removed by the reaper",
		}),
		ReaperDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "autoforms_ratelimit_reaper_duration_seconds",
			Help: "Duration of reaper runs in seconds",
		}),
	}
}

func (m *Metrics) RecordCheck(rule string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.ChecksTotal.WithLabelValues(rule, outcome).Inc()
}

func (m *Metrics) RecordCooldown(rule string) {
	if m == nil {
		return
	}
	m.CooldownsTotal.WithLabelValues(rule).Inc()
}

func (m *Metrics) SetRecordsHeld(count int) {
	if m == nil {
		return
	}
	m.RecordsHeld.Set(float64(count))
}

func (m *Metrics) RecordReaperRun(status string, removed int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ReaperRunsTotal.WithLabelValues(status).Inc()
	m.ReaperRemovedTotal.Add(float64(removed))
	m.ReaperDurationSeconds.Observe(durationSeconds)
}
