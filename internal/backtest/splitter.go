// Package backtest scores forecasting models with rolling-origin cross-validation.
package backtest

import (
	"demandcast/domain/backtest"
	"demandcast/domain/core"
)

// FoldSplitter turns a date range into ordered train/test folds.
type FoldSplitter interface {
	Split(r core.DateRange, cfg backtest.SplitConfig) ([]backtest.Fold, error)
}

// Splitter is the rolling-origin splitter. Test windows are anchored at the end of the range and
// tile backwards, so the last fold always tests the most recent Horizon days. Between training
// and test there are Gap whole days that belong to neither.
type Splitter struct{}

func (Splitter) Split(r core.DateRange, cfg backtest.SplitConfig) ([]backtest.Fold, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	total := r.Days()
	if required := cfg.RequiredDays(); total < required {
		return nil, core.NewInsufficientDataError(total, required)
	}

	folds := make([]backtest.Fold, cfg.NSplits)
	for k := range folds {
		testStart := total - (cfg.NSplits-k)*cfg.Horizon
		testEnd := testStart + cfg.Horizon - 1
		trainEnd := testStart - cfg.Gap - 1
		trainStart := 0
		if cfg.Strategy == backtest.StrategySliding {
			trainStart = trainEnd - cfg.MinTrainSize + 1
		}

		folds[k] = backtest.Fold{
			TrainStart: core.AddDays(r.Start, trainStart),
			TrainEnd:   core.AddDays(r.Start, trainEnd),
			TestStart:  core.AddDays(r.Start, testStart),
			TestEnd:    core.AddDays(r.Start, testEnd),
			TrainSize:  trainEnd - trainStart + 1,
			TestSize:   testEnd - testStart + 1,
		}
	}
	return folds, nil
}
