package ports

import (
	"context"
	"time"

	"demandcast/domain/backtest"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
)

// FitInput is the training slice of one fold.
type FitInput struct {
	// History holds the raw training rows, none dated after TrainEnd.
	History *series.Frame
	// Features is the engine output computed with cutoff TrainEnd, nil when no feature config
	// was supplied.
	Features *domainfeatures.Result
	// FeatureConfig produced Features; models that forecast recursively reuse it.
	FeatureConfig *domainfeatures.FeatureConfig
	TargetColumn  string
	TrainEnd      time.Time
}

// PredictInput asks for one entity's forecasts on the given dates.
type PredictInput struct {
	Entity series.EntityKey
	Dates  []time.Time
}

// Model is a pluggable forecaster. The evaluator creates one instance per fold, so
// implementations need not be reentrant.
type Model interface {
	Name() string
	Fit(ctx context.Context, in FitInput) error
	// Predict returns one value per requested date. Missing values mark dates the model
	// cannot forecast.
	Predict(ctx context.Context, in PredictInput) ([]float64, error)
}

// ModelFactory creates fresh models from their configuration.
type ModelFactory interface {
	New(cfg backtest.ModelConfig) (Model, error)
}
