package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Focus metrics
	FocusEvents prometheus.Counter

	// Mute metrics
	MuteCommands      *prometheus.CounterVec
	SessionFailures   prometheus.Counter
	DeviceUnavailable prometheus.Counter
	DispatchDuration  prometheus.Histogram

	// Catalog metrics
	CatalogEntries prometheus.Gauge
	WatchedEntries prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a metrics set on its own registry so several controllers can
// coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		FocusEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "focusmute_focus_events_total",
			Help: "Total number of foreground window changes received",
		}),
		MuteCommands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focusmute_mute_commands_total",
				Help: "Total number of mute commands executed",
			},
			[]string{"action"},
		),
		SessionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "focusmute_session_failures_total",
			Help: "Total number of audio sessions skipped because of a failure",
		}),
		DeviceUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Name: "focusmute_device_unavailable_total",
			Help: "Total number of mute commands that found no default output device",
		}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "focusmute_dispatch_duration_seconds",
			Help:    "Time spent executing one mute command",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		CatalogEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "focusmute_catalog_entries",
			Help: "Number of entries in the current catalog snapshot",
		}),
		WatchedEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "focusmute_watched_entries",
			Help: "Number of watched entries",
		}),
		registry: reg,
	}
}

// RecordMute counts one executed mute command
func (m *Metrics) RecordMute(mute bool, failedSessions int, seconds float64) {
	action := "unmute"
	if mute {
		action = "mute"
	}
	m.MuteCommands.WithLabelValues(action).Inc()
	m.SessionFailures.Add(float64(failedSessions))
	m.DispatchDuration.Observe(seconds)
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
