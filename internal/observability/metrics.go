package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// coordinator.
type Metrics struct {
	AlertsReceived  prometheus.Counter
	AlertsCancelled prometheus.Counter
	ActiveAlerts    prometheus.Gauge

	StationConnects    prometheus.Counter
	StationDisconnects prometheus.Counter

	// Persistence metrics. StoreDivergence counts mutations that were
	// applied to the in-memory registry but failed to reach the durable
	// mirror; the mirror lags until the next successful write.
	StoreFailures   *prometheus.CounterVec // labels: op
	StoreDivergence prometheus.Counter

	// District status-pull metrics.
	DistrictProbes        *prometheus.CounterVec // labels: outcome={ok,unknown,unreachable,failed}
	DistrictProbeDuration prometheus.Histogram

	NotifyFailures prometheus.Counter
}

// NewMetrics creates and registers all coordinator metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.AlertsReceived,
		m.AlertsCancelled,
		m.ActiveAlerts,
		m.StationConnects,
		m.StationDisconnects,
		m.StoreFailures,
		m.StoreDivergence,
		m.DistrictProbes,
		m.DistrictProbeDuration,
		m.NotifyFailures,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		AlertsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_rmc",
			Name:      "alerts_received_total",
			Help:      "Total alerts pushed by stations.",
		}),
		AlertsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_rmc",
			Name:      "alerts_cancelled_total",
			Help:      "Total alert cancellations that matched a live alert.",
		}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_rmc",
			Name:      "active_alerts",
			Help:      "Number of alerts currently held in the registry.",
		}),
		StationConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_rmc",
			Name:      "station_connects_total",
			Help:      "Total station connection registrations.",
		}),
		StationDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_rmc",
			Name:      "station_disconnects_total",
			Help:      "Total station disconnections.",
		}),
		StoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_rmc",
			Name:      "store_failures_total",
			Help:      "Durable store operation failures by operation.",
		}, []string{"op"}),
		StoreDivergence: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_rmc",
			Name:      "store_divergence_total",
			Help:      "Registry mutations not mirrored durably because the paired store write failed.",
		}),
		DistrictProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_rmc",
			Name:      "district_probes_total",
			Help:      "District status pulls by outcome.",
		}, []string{"outcome"}),
		DistrictProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_rmc",
			Name:      "district_probe_duration_seconds",
			Help:      "Duration of a district resolve-ping-state round trip.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_rmc",
			Name:      "notify_failures_total",
			Help:      "Display notifications that could not be published.",
		}),
	}
}
