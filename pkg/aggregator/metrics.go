package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "validatorstats"
	metricsSubsystem = "aggregator"
)

// Metrics holds the aggregator collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	rows       *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	checkpoint *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "runs_total",
				Help:      "Aggregator invocations by kind and outcome (done, busy, error)",
			},
			[]string{"kind", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of completed aggregator runs",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "rows_written_total",
				Help:      "Rows written by aggregator kind and operation (inserted, upserted, modified)",
			},
			[]string{"kind", "op"},
		),
		skipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "heights_skipped_total",
				Help:      "Heights skipped or partially processed because upstream data was missing",
			},
			[]string{"reason"},
		),
		checkpoint: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "checkpoint_height",
				Help:      "Last processed height per checkpoint metric",
			},
			[]string{"metric"},
		),
	}
}

func (m *Metrics) observeRun(res Result, err error) {
	if m == nil {
		return
	}
	kind := string(res.Kind)
	switch {
	case err != nil:
		m.runs.WithLabelValues(kind, "error").Inc()
	case res.Busy:
		m.runs.WithLabelValues(kind, "busy").Inc()
	default:
		m.runs.WithLabelValues(kind, "done").Inc()
		m.duration.WithLabelValues(kind).Observe(res.Duration.Seconds())
		m.rows.WithLabelValues(kind, "inserted").Add(float64(res.Inserted))
		m.rows.WithLabelValues(kind, "upserted").Add(float64(res.Upserted))
		m.rows.WithLabelValues(kind, "modified").Add(float64(res.Modified))
	}
}

func (m *Metrics) skip(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) setCheckpoint(metric Metric, height uint64) {
	if m == nil {
		return
	}
	m.checkpoint.WithLabelValues(string(metric)).Set(float64(height))
}
