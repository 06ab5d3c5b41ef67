// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "synheart_guard"

// Metrics groups every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	SamplesIngested  prometheus.Counter
	SamplesRejected  *prometheus.CounterVec
	SamplesClipped   prometheus.Counter
	OfflineQueue     prometheus.Gauge
	SyncAttempts     *prometheus.CounterVec
	SamplesSynced    prometheus.Counter
	RegulationScore  prometheus.Gauge
	WarningLevel     prometheus.Gauge
	WarningsOpened   *prometheus.CounterVec
	WarningsResolved *prometheus.CounterVec
	JournalFailures  prometheus.Counter
	ConnectionState  prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SamplesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_ingested_total",
			Help:      "Samples accepted into the sample window.",
		}),
		SamplesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_rejected_total",
			Help:      "Samples dropped at ingestion, by reason.",
		}, []string{"reason"}),
		SamplesClipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_clipped_total",
			Help:      "Samples with at least one field clipped into range.",
		}),
		OfflineQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "offline_queue_depth",
			Help:      "Samples waiting in the offline queue.",
		}),
		SyncAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_attempts_total",
			Help:      "Offline queue sync attempts, by result.",
		}, []string{"result"}),
		SamplesSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_synced_total",
			Help:      "Samples delivered to the remote sink.",
		}),
		RegulationScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "regulation_score",
			Help:      "Most recent regulation score (0-100).",
		}),
		WarningLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warning_level",
			Help:      "Current warning level (0=normal, 1=notice, 2=watch, 3=alert).",
		}),
		WarningsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_opened_total",
			Help:      "Warning events opened, by level at open.",
		}, []string{"level"}),
		WarningsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_resolved_total",
			Help:      "Warning events resolved, by cause.",
		}, []string{"cause"}),
		JournalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warning_journal_failures_total",
			Help:      "Warning event writes that exhausted their retries.",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_connection_state",
			Help:      "Device connection state (0=disconnected, 1=connecting, 2=connected).",
		}),
	}

	m.registry.MustRegister(
		m.SamplesIngested,
		m.SamplesRejected,
		m.SamplesClipped,
		m.OfflineQueue,
		m.SyncAttempts,
		m.SamplesSynced,
		m.RegulationScore,
		m.WarningLevel,
		m.WarningsOpened,
		m.WarningsResolved,
		m.JournalFailures,
		m.ConnectionState,
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
