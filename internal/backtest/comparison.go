package backtest

import (
	"math"

	"demandcast/domain/backtest"
)

// Baseline model types run alongside the main model.
const (
	BaselineNaive         = "naive"
	BaselineSeasonalNaive = "seasonal_naive"
	DefaultSeasonLength   = 7
)

// DefaultBaselines returns the naive and weekly seasonal-naive baselines.
func DefaultBaselines() []backtest.ModelConfig {
	return []backtest.ModelConfig{
		{Type: BaselineNaive},
		{Type: BaselineSeasonalNaive, Params: map[string]interface{}{"season_length": DefaultSeasonLength}},
	}
}

// Compare reports, per metric and baseline, the main value, the baseline value, the absolute
// delta (main - baseline) and the improvement in percent. Improvement compares magnitudes, so a
// bias closer to zero counts as better; it is 0 when the baseline metric is 0.
func Compare(main backtest.AggregatedModelResult, baselines []backtest.AggregatedModelResult) *backtest.ComparisonSummary {
	summary := &backtest.ComparisonSummary{MainModel: main.ModelType}
	for _, b := range baselines {
		bc := backtest.BaselineComparison{Baseline: b.ModelType}
		for _, name := range backtest.MetricNames {
			mv, bv := main.Mean.Get(name), b.Mean.Get(name)
			bc.Metrics = append(bc.Metrics, backtest.MetricComparison{
				Metric:         name,
				Main:           mv,
				Baseline:       bv,
				AbsoluteDelta:  mv - bv,
				ImprovementPct: improvement(mv, bv),
			})
		}
		summary.Comparisons = append(summary.Comparisons, bc)
	}
	return summary
}

func improvement(main, baseline float64) float64 {
	if baseline == 0 || math.IsInf(baseline, 0) || math.IsNaN(baseline) || math.IsNaN(main) {
		return 0
	}
	return (math.Abs(baseline) - math.Abs(main)) / math.Abs(baseline) * 100
}
