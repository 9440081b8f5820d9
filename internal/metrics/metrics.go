// Package metrics provides Prometheus instrumentation for generator runs.
//
// Metrics live in a per-run registry and are written once, in text
// exposition format, for the node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tpm2gen"

// Metrics holds the metrics of one run.
type Metrics struct {
	reg *prometheus.Registry

	CommandsParsed    prometheus.Gauge
	CommandsPlanned   prometheus.Gauge
	CommandsSkipped   *prometheus.CounterVec
	ParseErrors       prometheus.Counter
	ArtifactsWritten  *prometheus.CounterVec
	ArtifactBytes     *prometheus.CounterVec
	FormatterFailures prometheus.Counter
	Duration          *prometheus.GaugeVec
	LastSuccess       prometheus.Gauge
}

// New creates a Metrics instance registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		CommandsParsed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "commands_parsed",
			Help:      "Number of commands read from the grammar",
		}),
		CommandsPlanned: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "commands_planned",
			Help:      "Number of commands for which code was generated",
		}),
		CommandsSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_skipped_total",
				Help:      "Commands left out of generation",
			},
			[]string{"reason"},
		),
		ParseErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Grammar parse failures",
		}),
		ArtifactsWritten: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_written_total",
				Help:      "Generated files by kind",
			},
			[]string{"lang", "kind"},
		),
		ArtifactBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifact_bytes_total",
				Help:      "Bytes of generated source by kind",
			},
			[]string{"lang", "kind"},
		),
		FormatterFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "formatter_failures_total",
			Help:      "Files the external formatter failed on",
		}),
		Duration: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time of each generation stage",
			},
			[]string{"stage"},
		),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
	}
}

// Registry returns the run's registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveStage records how long a stage took. Use as
// defer m.ObserveStage("parse", time.Now()).
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.Duration.WithLabelValues(stage).Set(time.Since(start).Seconds())
}

// MarkSuccess stamps the completion time.
func (m *Metrics) MarkSuccess() { m.LastSuccess.SetToCurrentTime() }

// WriteFile writes all metrics to path in text exposition format.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
