package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the warmer's collectors. A batch process is never scraped, so it stays
// apart from the default registry and is flushed with WriteTextfile.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// WarmRuns counts warm runs by result (success|partial|interrupted|failure).
	WarmRuns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmwarm_runs_total",
			Help: "Total number of snapshot warm runs",
		},
		[]string{"result"},
	)

	// SnapshotWrites counts individual cache writes by result (success|failure).
	SnapshotWrites = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmwarm_snapshot_writes_total",
			Help: "Total number of client snapshot cache writes",
		},
		[]string{"result"},
	)

	// LastRunSnapshots records how many snapshots the most recent run cached.
	LastRunSnapshots = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "crmwarm_last_run_snapshots",
			Help: "Snapshots cached by the most recent run",
		},
	)

	// LastSuccess is the unix time of the most recent run without failures.
	LastSuccess = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "crmwarm_last_success_timestamp_seconds",
			Help: "Unix time of the last fully successful warm run",
		},
	)

	// RunDuration measures end to end warm run latency.
	RunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crmwarm_run_duration_seconds",
			Help:    "Warm run duration",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// WriteTextfile writes the registry in text exposition format for node_exporter's
// textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
