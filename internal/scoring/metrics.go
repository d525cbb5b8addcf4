package scoring

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "gsneval"

// Metrics records aggregation outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	runs       *prometheus.CounterVec
	warnings   *prometheus.CounterVec
	finalScore *prometheus.GaugeVec
	duration   prometheus.Histogram
}

// NewMetrics creates the scoring collectors and registers them with reg.
// Registering twice against the same registry fails.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scoring",
			Name:      "runs_total",
			Help:      "Aggregated runs by outcome",
		}, []string{"status"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scoring",
			Name:      "warnings_total",
			Help:      "Non-fatal scoring warnings by kind",
		}, []string{"kind"}),
		finalScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "scoring",
			Name:      "final_score",
			Help:      "Final score of the last aggregated run per perspective",
		}, []string{"perspective"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "scoring",
			Name:      "aggregate_duration_seconds",
			Help:      "Time spent aggregating one run",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
	for _, c := range []prometheus.Collector{m.runs, m.warnings, m.finalScore, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRun(start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(status).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeScore(perspectiveName string, score float64) {
	if m == nil {
		return
	}
	m.finalScore.WithLabelValues(perspectiveName).Set(score)
}

func (m *Metrics) observeWarnings(errs []error) {
	if m == nil {
		return
	}
	for _, err := range errs {
		m.warnings.WithLabelValues(warningKind(err)).Inc()
	}
}

func warningKind(err error) string {
	switch {
	case errors.Is(err, ErrRegistryLookup):
		return "registry_lookup"
	case errors.Is(err, ErrNormalizationDegenerate):
		return "normalization_degenerate"
	case errors.Is(err, ErrMissingModality):
		return "missing_modality"
	default:
		return "other"
	}
}
