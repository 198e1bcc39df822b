// Package observability provides prometheus collectors for the feature engine and the evaluator.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the demandcast collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// FeatureComputations counts engine invocations by outcome.
	FeatureComputations *prometheus.CounterVec
	// RowsProcessed counts input and output rows of the engine.
	RowsProcessed *prometheus.CounterVec
	// UnsafeImputations counts uses of imputation strategies that read later rows.
	UnsafeImputations *prometheus.CounterVec
	// FoldsEvaluated counts evaluated folds by model and status.
	FoldsEvaluated *prometheus.CounterVec
	// FoldDuration measures fit+predict time per fold.
	FoldDuration *prometheus.HistogramVec
	// LeakageFailures counts folds that failed the leakage audit.
	LeakageFailures prometheus.Counter
	// CacheLookups counts feature cache hits and misses.
	CacheLookups *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FeatureComputations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_feature_computations_total",
				Help: "Total number of feature engine invocations",
			},
			[]string{"status"}, // status: success, error
		),
		RowsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_feature_rows_total",
				Help: "Rows read and written by the feature engine",
			},
			[]string{"direction"}, // direction: input, output
		),
		UnsafeImputations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_unsafe_imputations_total",
				Help: "Imputations with a strategy that reads later rows",
			},
			[]string{"strategy"},
		),
		FoldsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_folds_evaluated_total",
				Help: "Total number of backtest folds evaluated",
			},
			[]string{"model", "status"},
		),
		FoldDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "demandcast_fold_duration_seconds",
				Help:    "Fit and predict duration of one fold",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"model"},
		),
		LeakageFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "demandcast_leakage_failures_total",
				Help: "Folds that failed the temporal leakage audit",
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "demandcast_feature_cache_lookups_total",
				Help: "Feature cache lookups by result",
			},
			[]string{"result"}, // result: hit, miss, error
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.FeatureComputations,
			m.RowsProcessed,
			m.UnsafeImputations,
			m.FoldsEvaluated,
			m.FoldDuration,
			m.LeakageFailures,
			m.CacheLookups,
		)
	}
	return m
}

func (m *Metrics) ObserveFeatureComputation(err error, inputRows, outputRows int) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.FeatureComputations.WithLabelValues(status).Inc()
	m.RowsProcessed.WithLabelValues("input").Add(float64(inputRows))
	m.RowsProcessed.WithLabelValues("output").Add(float64(outputRows))
}

func (m *Metrics) ObserveUnsafeImputation(strategy string) {
	if m == nil {
		return
	}
	m.UnsafeImputations.WithLabelValues(strategy).Inc()
}

func (m *Metrics) ObserveFold(model string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.FoldsEvaluated.WithLabelValues(model, status).Inc()
	m.FoldDuration.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) ObserveLeakageFailure() {
	if m == nil {
		return
	}
	m.LeakageFailures.Inc()
}

func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
