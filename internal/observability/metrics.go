// Package observability provides Prometheus metrics for the guard service.
//
// Metrics are exposed on /metrics. They complement, and never replace, the
// attempts/successes counters served by the summary endpoint.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "guard"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// SessionsStarted counts Start calls. Labels: difficulty.
	SessionsStarted *prometheus.CounterVec

	// Pins counts Pin calls. Labels: level, result (success, failure).
	Pins *prometheus.CounterVec

	// Chats counts Chat calls. Labels: level, status (ok, error).
	Chats *prometheus.CounterVec

	// ChatDuration measures completion latency. Labels: tier.
	ChatDuration *prometheus.HistogramVec

	// SummaryRefreshDuration measures counter sweeps on summary cache misses.
	SummaryRefreshDuration prometheus.Histogram
}

// NewMetrics creates and registers all collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_started_total",
			Help:      "Sessions started, by difficulty.",
		}, []string{"difficulty"}),
		Pins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pins_total",
			Help:      "Code guesses, by level and result.",
		}, []string{"level", "result"}),
		Chats: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "chats_total",
			Help:      "Chat requests, by level and status.",
		}, []string{"level", "status"}),
		ChatDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "chat_duration_seconds",
			Help:      "Completion backend latency, by model tier.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"tier"}),
		SummaryRefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "summary_refresh_seconds",
			Help:      "Duration of counter sweeps on summary cache misses.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
}

// RegisterSessionGauge exposes a live session count read from fn.
func RegisterSessionGauge(reg prometheus.Registerer, fn func() int) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "active_sessions",
		Help:      "Sessions currently held in memory.",
	}, func() float64 { return float64(fn()) })
}

// SessionStarted records a Start.
func (m *Metrics) SessionStarted(difficulty int) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(strconv.Itoa(difficulty)).Inc()
}

// Pinned records a Pin outcome.
func (m *Metrics) Pinned(level int, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.Pins.WithLabelValues(strconv.Itoa(level), result).Inc()
}

// Chatted records a completed Chat and its backend latency.
func (m *Metrics) Chatted(level int, tier string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Chats.WithLabelValues(strconv.Itoa(level), status).Inc()
	m.ChatDuration.WithLabelValues(tier).Observe(d.Seconds())
}

// SummaryRefreshed records a summary sweep.
func (m *Metrics) SummaryRefreshed(d time.Duration) {
	if m == nil {
		return
	}
	m.SummaryRefreshDuration.Observe(d.Seconds())
}
