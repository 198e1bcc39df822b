package backtest

import (
	"math"

	"github.com/montanaflynn/stats"

	"demandcast/domain/backtest"
	"demandcast/domain/series"
)

// ComputeMetrics scores predictions against actuals. Pairs where either side is missing are
// skipped; with no usable pair every metric is missing.
//
// Conventions: a point where actual and prediction are both zero contributes 0 to sMAPE; WAPE is
// a ratio, 0 when actual demand and error are both zero and +Inf when only demand is zero; Bias
// is mean(predicted - actual), so a positive bias means over-forecasting.
func ComputeMetrics(actuals, predictions []float64) backtest.Metrics {
	var absErr, smape, signed stats.Float64Data
	sumAbsErr, sumAbsActual := 0.0, 0.0
	for i := range actuals {
		a, p := actuals[i], predictions[i]
		if series.IsMissing(a) || series.IsMissing(p) {
			continue
		}
		e := math.Abs(a - p)
		absErr = append(absErr, e)
		signed = append(signed, p-a)
		if denom := math.Abs(a) + math.Abs(p); denom > 0 {
			smape = append(smape, 200*e/denom)
		} else {
			smape = append(smape, 0)
		}
		sumAbsErr += e
		sumAbsActual += math.Abs(a)
	}
	if len(absErr) == 0 {
		nan := series.Missing()
		return backtest.Metrics{MAE: nan, SMAPE: nan, WAPE: nan, Bias: nan}
	}

	m := backtest.Metrics{
		MAE:   mustMean(absErr),
		SMAPE: mustMean(smape),
		Bias:  mustMean(signed),
	}
	switch {
	case sumAbsActual > 0:
		m.WAPE = sumAbsErr / sumAbsActual
	case sumAbsErr == 0:
		m.WAPE = 0
	default:
		m.WAPE = math.Inf(1)
	}
	return m
}

// Aggregate returns the per-metric mean across folds and the per-metric coefficient of variation
// in percent. Variation uses the population standard deviation over |mean|, and is 0 with a single
// fold or a zero mean.
func Aggregate(folds []backtest.FoldResult) (mean, stability backtest.Metrics) {
	if len(folds) == 0 {
		nan := series.Missing()
		return backtest.Metrics{MAE: nan, SMAPE: nan, WAPE: nan, Bias: nan}, backtest.Metrics{}
	}

	values := make(map[string]float64, len(backtest.MetricNames))
	cvs := make(map[string]float64, len(backtest.MetricNames))
	for _, name := range backtest.MetricNames {
		data := make(stats.Float64Data, len(folds))
		for i, f := range folds {
			data[i] = f.Metrics.Get(name)
		}
		mu := mustMean(data)
		values[name] = mu
		cvs[name] = coefficientOfVariation(data, mu)
	}

	return metricsFrom(values), metricsFrom(cvs)
}

func metricsFrom(values map[string]float64) backtest.Metrics {
	return backtest.Metrics{
		MAE:   values[backtest.MetricMAE],
		SMAPE: values[backtest.MetricSMAPE],
		WAPE:  values[backtest.MetricWAPE],
		Bias:  values[backtest.MetricBias],
	}
}

func coefficientOfVariation(data stats.Float64Data, mean float64) float64 {
	if len(data) < 2 || mean == 0 || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 0
	}
	sd, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return 0
	}
	return sd / math.Abs(mean) * 100
}

// mustMean is the arithmetic mean of a non-empty sample.
func mustMean(data stats.Float64Data) float64 {
	m, err := stats.Mean(data)
	if err != nil {
		return series.Missing()
	}
	return m
}
