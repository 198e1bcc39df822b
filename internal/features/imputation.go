package features

import (
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
)

const unsafeImputationMessage = "imputation strategy reads later rows of the entity; use for offline analysis only"

// impute applies the configured strategies column by column in sorted order. Fill strategies run
// before any row is dropped so drop decisions see the filled values of the other columns.
func (e *Engine) impute(f *series.Frame, cfg *domainfeatures.ImputationConfig) (*series.Frame, []domainfeatures.Warning) {
	if cfg == nil {
		disabled("imputation")
	}
	groups := partitionByEntity(f)

	var warnings []domainfeatures.Warning
	var dropCols []string
	for _, col := range cfg.Columns() {
		strategy, _ := cfg.Strategy(col)
		if !strategy.LeakageSafe() {
			e.log.WithFields(logrus.Fields{
				"column":   col,
				"strategy": string(strategy),
			}).Warn(unsafeImputationMessage)
			e.metrics.ObserveUnsafeImputation(string(strategy))
			warnings = append(warnings, domainfeatures.Warning{Column: col, Strategy: strategy, Message: unsafeImputationMessage})
		}
		if strategy == domainfeatures.ImputeDropRow {
			dropCols = append(dropCols, col)
			continue
		}
		f.SetColumn(col, perGroup(f, groups, mustColumn(f, col), fillFunc(strategy)))
	}

	if len(dropCols) == 0 {
		return f, warnings
	}
	return f.Filter(func(i int) bool {
		for _, col := range dropCols {
			if series.IsMissing(f.Value(col, i)) {
				return false
			}
		}
		return true
	}), warnings
}

func fillFunc(strategy domainfeatures.ImputationStrategy) func(local, dst []float64) {
	switch strategy {
	case domainfeatures.ImputeZero:
		return func(local, dst []float64) {
			for k, v := range local {
				if series.IsMissing(v) {
					v = 0
				}
				dst[k] = v
			}
		}
	case domainfeatures.ImputeForwardFill:
		return func(local, dst []float64) {
			last := series.Missing()
			for k, v := range local {
				if series.IsMissing(v) {
					v = last
				} else {
					last = v
				}
				dst[k] = v
			}
		}
	case domainfeatures.ImputeBackwardFill:
		return func(local, dst []float64) {
			next := series.Missing()
			for k := len(local) - 1; k >= 0; k-- {
				v := local[k]
				if series.IsMissing(v) {
					v = next
				} else {
					next = v
				}
				dst[k] = v
			}
		}
	case domainfeatures.ImputeGlobalMean:
		return func(local, dst []float64) {
			mean := series.Missing()
			if obs := nonMissing(local); len(obs) > 0 {
				mean = stat.Mean(obs, nil)
			}
			for k, v := range local {
				if series.IsMissing(v) {
					v = mean
				}
				dst[k] = v
			}
		}
	case domainfeatures.ImputeExpandingMean:
		return func(local, dst []float64) {
			for k, v := range local {
				if series.IsMissing(v) {
					v = series.Missing()
					if obs := nonMissing(pastWindow(local, k, 1, k)); len(obs) > 0 {
						v = stat.Mean(obs, nil)
					}
				}
				dst[k] = v
			}
		}
	}
	panic("features: no fill for imputation strategy " + string(strategy))
}
