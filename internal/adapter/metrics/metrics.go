package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CollectorMetrics holds all Prometheus metrics for the collector process.
type CollectorMetrics struct {
	CollectionCycles   *prometheus.CounterVec
	IncidentsFetched   prometheus.Counter
	IncidentsPublished prometheus.Counter
	PublishFailures    prometheus.Counter
	ConfigUpdates      *prometheus.CounterVec
	TokenRefreshes     prometheus.Counter
	RelayFailures      prometheus.Counter
	LastCollection     prometheus.Gauge
}

// NewCollectorMetrics initializes and registers the Prometheus metrics.
func NewCollectorMetrics() *CollectorMetrics {
	return &CollectorMetrics{
		CollectionCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dlp_collector",
			Subsystem: "collect",
			Name:      "cycles_total",
			Help:      "Total number of collection cycles by outcome.",
		}, []string{"status"}), // status: success, error
		IncidentsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dlp_collector",
			Subsystem: "collect",
			Name:      "incidents_fetched_total",
			Help:      "Total number of incidents fetched from the DLP manager.",
		}),
		IncidentsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dlp_collector",
			Subsystem: "collect",
			Name:      "incidents_published_total",
			Help:      "Total number of incidents published to the stream.",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dlp_collector",
			Subsystem: "collect",
			Name:      "publish_failures_total",
			Help:      "Total number of failed stream publishes.",
		}),
		ConfigUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dlp_collector",
			Subsystem: "sync",
			Name:      "config_updates_total",
			Help:      "Total number of applied config updates by source.",
		}, []string{"source"}),
		TokenRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dlp_collector",
			Subsystem: "manager",
			Name:      "token_refreshes_total",
			Help:      "Total number of access token exchanges against the DLP manager.",
		}),
		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dlp_collector",
			Subsystem: "relay",
			Name:      "failures_total",
			Help:      "Total number of failed log relay attempts to the central authority.",
		}),
		LastCollection: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "dlp_collector",
			Subsystem: "collect",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful collection cycle.",
		}),
	}
}
