// Package metrics exposes Prometheus instrumentation for scans. A nil
// *Registry is valid and records nothing, so callers never need to check.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all scanner metrics on its own prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	FetchAttempts *prometheus.CounterVec
	CacheLookups  *prometheus.CounterVec
	Unavailable   prometheus.Counter
	StageDuration *prometheus.HistogramVec
	StageFaults   *prometheus.CounterVec
	SetupsFound   *prometheus.CounterVec
	AlertsSent    *prometheus.CounterVec
	ScansTotal    *prometheus.CounterVec
	LastScan      prometheus.Gauge
}

// New creates and registers the metric set.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingscanner_fetch_attempts_total",
			Help: "Fetch attempts per source and result",
		}, []string{"source", "result"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingscanner_cache_lookups_total",
			Help: "Series cache lookups by result",
		}, []string{"result"}),
		Unavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swingscanner_symbols_unavailable_total",
			Help: "Symbols for which every source failed",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swingscanner_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		StageFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingscanner_stage_faults_total",
			Help: "Errors and panics recovered inside pipeline stages",
		}, []string{"stage"}),
		SetupsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingscanner_setups_detected_total",
			Help: "Detected setups by type",
		}, []string{"setup_type"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingscanner_alerts_total",
			Help: "Alert deliveries per channel and result",
		}, []string{"channel", "result"}),
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingscanner_scans_total",
			Help: "Completed scans by status",
		}, []string{"status"}),
		LastScan: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingscanner_last_scan_timestamp_seconds",
			Help: "Unix time of the last completed scan",
		}),
	}
	r.reg.MustRegister(
		r.FetchAttempts, r.CacheLookups, r.Unavailable,
		r.StageDuration, r.StageFaults, r.SetupsFound,
		r.AlertsSent, r.ScansTotal, r.LastScan,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) FetchAttempt(source string, ok bool) {
	if r == nil {
		return
	}
	r.FetchAttempts.WithLabelValues(source, result(ok)).Inc()
}

func (r *Registry) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	r.CacheLookups.WithLabelValues(label).Inc()
}

func (r *Registry) SymbolUnavailable() {
	if r == nil {
		return
	}
	r.Unavailable.Inc()
}

func (r *Registry) ObserveStage(stage string, d time.Duration, faulted bool) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if faulted {
		r.StageFaults.WithLabelValues(stage).Inc()
	}
}

func (r *Registry) SetupDetected(setupType string) {
	if r == nil {
		return
	}
	r.SetupsFound.WithLabelValues(setupType).Inc()
}

func (r *Registry) AlertSent(channel string, ok bool) {
	if r == nil {
		return
	}
	r.AlertsSent.WithLabelValues(channel, result(ok)).Inc()
}

func (r *Registry) ScanFinished(status string, at time.Time) {
	if r == nil {
		return
	}
	r.ScansTotal.WithLabelValues(status).Inc()
	r.LastScan.Set(float64(at.Unix()))
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
