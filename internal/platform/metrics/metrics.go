package metrics

import (
	"errors"
	"net/http"

	"stemsync/internal/media"
	"stemsync/internal/playback"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the stem sync service.
// It implements playback.Observer.
type Metrics struct {
	registry                *prometheus.Registry
	requestsTotal           prometheus.Counter
	errorsTotal             prometheus.Counter
	activeSessions          prometheus.Gauge
	roleSwitchesTotal       *prometheus.CounterVec
	driftCorrectionsTotal   prometheus.Counter
	driftCorrectionSeconds  prometheus.Histogram
	secondaryRejectedTotal  *prometheus.CounterVec
	secondaryLoadFailsTotal prometheus.Counter
	commentsAddedTotal      prometheus.Counter
}

var _ playback.Observer = (*Metrics)(nil)

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stemsync_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stemsync_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stemsync_active_sessions",
			Help: "Number of mounted playback sessions",
		}),
		roleSwitchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stemsync_role_switches_total",
			Help: "Total number of role selections, by target role",
		}, []string{"role"}),
		driftCorrectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stemsync_drift_corrections_total",
			Help: "Total number of secondary clock hard resets",
		}),
		driftCorrectionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stemsync_drift_correction_seconds",
			Help:    "Offset between primary and secondary clocks when a correction fired",
			Buckets: []float64{0.15, 0.25, 0.5, 1, 2, 5},
		}),
		secondaryRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stemsync_secondary_play_rejected_total",
			Help: "Total number of secondary play calls that were refused",
		}, []string{"reason"}),
		secondaryLoadFailsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stemsync_secondary_load_failures_total",
			Help: "Total number of stem loads that failed",
		}),
		commentsAddedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stemsync_comments_added_total",
			Help: "Total number of comments appended",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.activeSessions,
		m.roleSwitchesTotal,
		m.driftCorrectionsTotal,
		m.driftCorrectionSeconds,
		m.secondaryRejectedTotal,
		m.secondaryLoadFailsTotal,
		m.commentsAddedTotal,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// IncCommentsAdded increments the comments counter.
func (m *Metrics) IncCommentsAdded() {
	m.commentsAddedTotal.Inc()
}

// RoleSwitched implements playback.Observer.
func (m *Metrics) RoleSwitched(role playback.Role) {
	m.roleSwitchesTotal.WithLabelValues(string(role)).Inc()
}

// DriftCorrected implements playback.Observer.
func (m *Metrics) DriftCorrected(delta float64) {
	m.driftCorrectionsTotal.Inc()
	m.driftCorrectionSeconds.Observe(delta)
}

// SecondaryPlayRejected implements playback.Observer.
func (m *Metrics) SecondaryPlayRejected(err error) {
	reason := "other"
	switch {
	case errors.Is(err, media.ErrAutoplayBlocked):
		reason = "autoplay"
	case errors.Is(err, media.ErrNoSource):
		reason = "no_source"
	}
	m.secondaryRejectedTotal.WithLabelValues(reason).Inc()
}

// SecondaryLoadFailed implements playback.Observer.
func (m *Metrics) SecondaryLoadFailed(string) {
	m.secondaryLoadFailsTotal.Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
