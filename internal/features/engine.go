// Package features is the time-safe feature engineering engine.
//
// For a row of entity e dated t, no generated value depends on an observation of e dated t or
// later, nor on any observation of another entity. The engine is synchronous, performs no I/O
// and keeps no state between calls, so one Engine can serve concurrent requests.
package features

import (
	"time"

	"github.com/sirupsen/logrus"

	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
	"demandcast/internal/observability"
)

type Engine struct {
	log     logrus.FieldLogger
	metrics *observability.Metrics
}

// NewEngine creates an engine. metrics may be nil.
func NewEngine(log logrus.FieldLogger, metrics *observability.Metrics) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{log: log.WithField("component", "feature_engine"), metrics: metrics}
}

// Compute transforms frame into a feature table. When cutoff is set, rows dated after it are
// dropped before any feature is computed. The input frame is not modified.
//
// The steps run in a fixed order: sort by entity and date, cutoff, imputation, lag, rolling,
// calendar, exogenous.
func (e *Engine) Compute(frame *series.Frame, cfg *domainfeatures.FeatureConfig, cutoff *time.Time) (*domainfeatures.Result, error) {
	if cfg == nil {
		return nil, core.NewValidationError("features", "feature config is required")
	}
	if frame == nil {
		frame = series.NewFrame()
	}
	inputRows := frame.Len()

	if inputRows > 0 {
		for _, col := range cfg.RequiredColumns() {
			if !frame.HasColumn(col) {
				err := core.NewMissingColumnError(col)
				e.metrics.ObserveFeatureComputation(err, inputRows, 0)
				return nil, err
			}
		}
	}

	columns := FeatureColumns(cfg)
	if inputRows == 0 {
		f := frame.Clone()
		for _, col := range columns {
			if !f.HasColumn(col) {
				f.SetColumn(col, []float64{})
			}
		}
		e.metrics.ObserveFeatureComputation(nil, 0, 0)
		return &domainfeatures.Result{
			Frame:          f,
			FeatureColumns: columns,
			ConfigHash:     cfg.Hash(),
			Cutoff:         truncatedCutoff(cutoff),
			Stats:          domainfeatures.Stats{NullCounts: nullCounts(f, columns)},
		}, nil
	}

	f := frame.SortByEntityDate()

	cut := truncatedCutoff(cutoff)
	if cut != nil {
		sorted := f
		f = sorted.Filter(func(i int) bool { return !sorted.Date(i).After(*cut) })
	}

	var warnings []domainfeatures.Warning
	if cfg.Imputation() != nil {
		f, warnings = e.impute(f, cfg.Imputation())
	}

	groups := partitionByEntity(f)
	if cfg.Lag() != nil {
		addLagFeatures(f, groups, cfg.Lag())
	}
	if cfg.Rolling() != nil {
		addRollingFeatures(f, groups, cfg.Rolling())
	}
	if cfg.Calendar() != nil {
		addCalendarFeatures(f, cfg.Calendar())
	}
	if cfg.Exogenous() != nil {
		addExogenousFeatures(f, groups, cfg.Exogenous())
	}

	result := &domainfeatures.Result{
		Frame:          f,
		FeatureColumns: columns,
		ConfigHash:     cfg.Hash(),
		Cutoff:         cut,
		Stats: domainfeatures.Stats{
			InputRows:  inputRows,
			OutputRows: f.Len(),
			NullCounts: nullCounts(f, columns),
		},
		Warnings: warnings,
	}

	e.metrics.ObserveFeatureComputation(nil, inputRows, f.Len())
	e.log.WithFields(logrus.Fields{
		"entity_count": len(groups),
		"input_rows":   inputRows,
		"output_rows":  f.Len(),
		"config_hash":  cfg.Hash().Short(),
	}).Debug("Computed features")

	return result, nil
}

// FeatureColumns lists the columns cfg generates, in output order.
func FeatureColumns(cfg *domainfeatures.FeatureConfig) []string {
	var cols []string
	if cfg.Lag() != nil {
		cols = append(cols, cfg.Lag().ColumnNames()...)
	}
	if cfg.Rolling() != nil {
		cols = append(cols, cfg.Rolling().ColumnNames()...)
	}
	if cfg.Calendar() != nil {
		cols = append(cols, cfg.Calendar().ColumnNames()...)
	}
	if cfg.Exogenous() != nil {
		cols = append(cols, cfg.Exogenous().ColumnNames()...)
	}
	return cols
}

func nullCounts(f *series.Frame, columns []string) map[string]int {
	counts := make(map[string]int, len(columns))
	for _, name := range columns {
		col, _ := f.Column(name)
		n := 0
		for _, v := range col {
			if series.IsMissing(v) {
				n++
			}
		}
		counts[name] = n
	}
	return counts
}

func truncatedCutoff(cutoff *time.Time) *time.Time {
	if cutoff == nil {
		return nil
	}
	c := core.TruncateDay(*cutoff)
	return &c
}
