package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"demandcast/domain/backtest"
	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
	"demandcast/internal/features"
	"demandcast/internal/observability"
	"demandcast/ports"
)

// Config tunes the evaluator.
type Config struct {
	// Parallelism bounds the folds evaluated concurrently. Values below 1 mean sequential.
	Parallelism int
	// Splitter overrides the rolling-origin splitter.
	Splitter FoldSplitter
}

func DefaultConfig() Config {
	return Config{Parallelism: 1, Splitter: Splitter{}}
}

// Request is one evaluation: a series table, how to split it and which models to score.
type Request struct {
	Frame *series.Frame
	// TargetColumn defaults to the feature config's target, then to "quantity".
	TargetColumn string
	// DateRange restricts the evaluation; nil uses the frame's own range.
	DateRange *core.DateRange
	Split     backtest.SplitConfig
	Model     backtest.ModelConfig
	// Features, when set, is computed per fold with cutoff = train end and handed to the model.
	Features  *domainfeatures.FeatureConfig
	Baselines []backtest.ModelConfig
}

// Evaluator runs rolling-origin backtests. It holds no per-request state.
type Evaluator struct {
	log      logrus.FieldLogger
	metrics  *observability.Metrics
	engine   *features.Engine
	factory  ports.ModelFactory
	splitter FoldSplitter
	parallel int
}

func NewEvaluator(factory ports.ModelFactory, engine *features.Engine, log logrus.FieldLogger, metrics *observability.Metrics, cfg Config) *Evaluator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Splitter == nil {
		cfg.Splitter = Splitter{}
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if engine == nil {
		engine = features.NewEngine(log, metrics)
	}
	return &Evaluator{
		log:      log.WithField("component", "evaluator"),
		metrics:  metrics,
		engine:   engine,
		factory:  factory,
		splitter: cfg.Splitter,
		parallel: cfg.Parallelism,
	}
}

// foldRun is the outcome of one fold of one model.
type foldRun struct {
	result  backtest.FoldResult
	leakage error
}

// Evaluate scores the main model and every baseline on identical folds.
//
// A fold that fails the leakage audit is not fitted. The returned result then has
// LeakageCheckPassed=false and is returned together with an error wrapping core.ErrLeakage.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*backtest.BacktestResult, error) {
	if req.Frame == nil || req.Frame.Len() == 0 {
		return nil, e.noData(req)
	}
	if err := req.Split.Validate(); err != nil {
		return nil, err
	}
	target := req.TargetColumn
	if target == "" {
		target = domainfeatures.DefaultTargetColumn
		if req.Features != nil {
			target = req.Features.TargetColumn()
		}
	}
	if !req.Frame.HasColumn(target) {
		return nil, core.NewMissingColumnError(target)
	}

	frame := req.Frame.SortByEntityDate()
	dr, _ := frame.DateRange()
	if req.DateRange != nil {
		dr = core.DateRange{Start: core.TruncateDay(req.DateRange.Start), End: core.TruncateDay(req.DateRange.End)}
		frame = frame.Filter(func(i int) bool { return dr.Contains(frame.Date(i)) })
		if frame.Len() == 0 {
			return nil, core.NewNoDataError(dr.Start, dr.End)
		}
	}

	folds, err := e.splitter.Split(dr, req.Split)
	if err != nil {
		return nil, err
	}

	log := e.log.WithFields(logrus.Fields{
		"entity_count": len(frame.EntityKeys()),
		"folds":        len(folds),
		"model":        req.Model.Type,
	})
	log.Info("Starting backtest")

	main, mainLeaks, err := e.runModel(ctx, frame, folds, req.Model, req.Features, target, req.Split.Gap)
	if err != nil {
		return nil, err
	}
	leaks := mainLeaks

	var baselines []backtest.AggregatedModelResult
	for _, b := range req.Baselines {
		agg, bLeaks, err := e.runModel(ctx, frame, folds, b, nil, target, req.Split.Gap)
		if err != nil {
			return nil, fmt.Errorf("baseline %s: %w", b.Type, err)
		}
		baselines = append(baselines, agg)
		leaks = append(leaks, bLeaks...)
	}

	result := &backtest.BacktestResult{
		RunID:              core.NewRunID(),
		EntityIDs:          sortedEntities(frame),
		DateRange:          dr,
		ConfigHash:         requestHash(req),
		Split:              req.Split,
		Main:               main,
		Baselines:          baselines,
		LeakageCheckPassed: len(leaks) == 0,
		CreatedAt:          core.Now(),
	}
	if len(baselines) > 0 {
		result.Comparison = Compare(main, baselines)
	}

	if len(leaks) > 0 {
		for _, l := range leaks {
			e.metrics.ObserveLeakageFailure()
			log.WithError(l).Error("Leakage audit failed")
		}
		return result, fmt.Errorf("backtest %s: %w", result.RunID, leaks[0])
	}

	log.WithFields(logrus.Fields{
		"run_id": result.RunID.String(),
		"mae":    main.Mean.MAE,
		"wape":   main.Mean.WAPE,
	}).Info("Backtest complete")
	return result, nil
}

func (e *Evaluator) noData(req Request) error {
	if req.DateRange != nil {
		return core.NewNoDataError(req.DateRange.Start, req.DateRange.End)
	}
	return fmt.Errorf("%w: the series table is empty", core.ErrNoData)
}

// runModel evaluates one model on every fold, up to e.parallel folds at a time.
func (e *Evaluator) runModel(ctx context.Context, frame *series.Frame, folds []backtest.Fold, modelCfg backtest.ModelConfig,
	featCfg *domainfeatures.FeatureConfig, target string, gap int) (backtest.AggregatedModelResult, []error, error) {
	runs := make([]foldRun, len(folds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for i, fold := range folds {
		i, fold := i, fold
		g.Go(func() error {
			run, err := e.evaluateFold(gctx, i, fold, frame, modelCfg, featCfg, target, gap)
			if err != nil {
				return fmt.Errorf("fold %d (%s): %w", i, modelCfg.Type, err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return backtest.AggregatedModelResult{}, nil, err
	}

	agg := backtest.AggregatedModelResult{
		ModelType:   modelCfg.Type,
		ConfigHash:  modelCfg.Hash(),
		FoldResults: make([]backtest.FoldResult, len(runs)),
	}
	var leaks []error
	for i, r := range runs {
		agg.FoldResults[i] = r.result
		if r.leakage != nil {
			leaks = append(leaks, r.leakage)
		}
	}
	agg.Mean, agg.Stability = Aggregate(agg.FoldResults)
	return agg, leaks, nil
}

func (e *Evaluator) evaluateFold(ctx context.Context, index int, fold backtest.Fold, frame *series.Frame, modelCfg backtest.ModelConfig,
	featCfg *domainfeatures.FeatureConfig, target string, gap int) (run foldRun, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveFold(modelCfg.Type, err, time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return run, err
	}

	trainRange, testRange := fold.TrainRange(), fold.TestRange()
	train := frame.Filter(func(i int) bool { return trainRange.Contains(frame.Date(i)) })
	test := frame.Filter(func(i int) bool { return testRange.Contains(frame.Date(i)) })

	var feats *domainfeatures.Result
	if featCfg != nil {
		cutoff := fold.TrainEnd
		if feats, err = e.engine.Compute(train, featCfg, &cutoff); err != nil {
			return run, fmt.Errorf("features: %w", err)
		}
	}

	run.result = backtest.FoldResult{FoldIndex: index, Fold: fold, FeatureCutoff: cutoffOf(feats)}
	if run.leakage = auditFold(index, gap, fold, train, feats, featCfg != nil); run.leakage != nil {
		nan := series.Missing()
		run.result.Metrics = backtest.Metrics{MAE: nan, SMAPE: nan, WAPE: nan, Bias: nan}
		return run, nil
	}

	model, err := e.factory.New(modelCfg)
	if err != nil {
		return run, err
	}
	if err := model.Fit(ctx, ports.FitInput{
		History:       train,
		Features:      feats,
		FeatureConfig: featCfg,
		TargetColumn:  target,
		TrainEnd:      fold.TrainEnd,
	}); err != nil {
		return run, fmt.Errorf("fit %s: %w", model.Name(), err)
	}

	actualCol, _ := test.Column(target)
	for _, g := range partitionTest(test) {
		dates := make([]time.Time, len(g))
		for k, i := range g {
			dates[k] = test.Date(i)
		}
		entity := test.Entity(g[0])
		preds, err := model.Predict(ctx, ports.PredictInput{Entity: entity, Dates: dates})
		if err != nil {
			return run, fmt.Errorf("predict %s for %s: %w", model.Name(), entity, err)
		}
		if len(preds) != len(dates) {
			return run, fmt.Errorf("predict %s for %s: %d predictions for %d dates", model.Name(), entity, len(preds), len(dates))
		}
		for k, i := range g {
			a, p := actualCol[i], preds[k]
			if series.IsMissing(a) || series.IsMissing(p) {
				continue
			}
			run.result.Entities = append(run.result.Entities, entity)
			run.result.Dates = append(run.result.Dates, dates[k])
			run.result.Actuals = append(run.result.Actuals, a)
			run.result.Predictions = append(run.result.Predictions, p)
		}
	}
	run.result.Metrics = ComputeMetrics(run.result.Actuals, run.result.Predictions)

	e.log.WithFields(logrus.Fields{
		"fold":   index,
		"model":  modelCfg.Type,
		"points": len(run.result.Actuals),
		"mae":    run.result.Metrics.MAE,
	}).Debug("Fold evaluated")
	return run, nil
}

// partitionTest groups the rows of a frame sorted by entity then date.
func partitionTest(f *series.Frame) [][]int {
	var groups [][]int
	for i := 0; i < f.Len(); i++ {
		if i == 0 || f.Entity(i) != f.Entity(i-1) {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], i)
	}
	return groups
}

func sortedEntities(f *series.Frame) []series.EntityKey {
	keys := f.EntityKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// requestHash identifies an evaluation setup independently of the data.
func requestHash(req Request) core.Hash {
	baselines := make([]string, len(req.Baselines))
	for i, b := range req.Baselines {
		baselines[i] = b.Hash().String()
	}
	m := map[string]interface{}{
		"split":     req.Split,
		"model":     req.Model.Hash().String(),
		"baselines": baselines,
		"target":    req.TargetColumn,
	}
	if req.Features != nil {
		m["features"] = req.Features.Hash().String()
	}
	return core.MustHashCanonical(m)
}
