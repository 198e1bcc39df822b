package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"demandcast/domain/backtest"
	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	internalbacktest "demandcast/internal/backtest"
	"demandcast/ports"
)

// BacktestRequest describes one backtest against loaded series.
type BacktestRequest struct {
	Query        ports.SeriesQuery
	TargetColumn string
	Split        backtest.SplitConfig
	Model        backtest.ModelConfig
	Features     *domainfeatures.FeatureConfig
	Baselines    []backtest.ModelConfig
}

// BacktestService loads series and hands them to the evaluator
type BacktestService struct {
	loader    ports.SeriesLoader
	evaluator *internalbacktest.Evaluator
	log       logrus.FieldLogger
}

func NewBacktestService(loader ports.SeriesLoader, evaluator *internalbacktest.Evaluator, log logrus.FieldLogger) *BacktestService {
	return &BacktestService{
		loader:    loader,
		evaluator: evaluator,
		log:       log.WithField("component", "backtest_service"),
	}
}

// Run loads the requested series and evaluates it. When both query bounds are set they define
// the evaluated range even if the data starts later or ends earlier.
//
// On a leakage failure the result is returned together with the error.
func (s *BacktestService) Run(ctx context.Context, req BacktestRequest) (*backtest.BacktestResult, error) {
	frame, err := s.loader.LoadSeries(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	if frame.Len() == 0 {
		return nil, fmt.Errorf("%w: no rows for %d requested entities", core.ErrNoData, len(req.Query.EntityIDs))
	}

	evalReq := internalbacktest.Request{
		Frame:        frame,
		TargetColumn: req.TargetColumn,
		Split:        req.Split,
		Model:        req.Model,
		Features:     req.Features,
		Baselines:    req.Baselines,
	}
	if req.Query.Start != nil && req.Query.End != nil {
		evalReq.DateRange = &core.DateRange{Start: *req.Query.Start, End: *req.Query.End}
	}

	result, err := s.evaluator.Evaluate(ctx, evalReq)
	if result != nil {
		s.log.WithFields(logrus.Fields{
			"run_id":         result.RunID,
			"model":          result.Main.ModelType,
			"mae":            result.Main.Mean.MAE,
			"leakage_passed": result.LeakageCheckPassed,
		}).Info("Backtest finished")
	}
	return result, err
}
