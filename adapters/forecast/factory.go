package forecast

import (
	"fmt"

	"demandcast/domain/backtest"
	"demandcast/domain/core"
	"demandcast/internal/features"
	"demandcast/ports"
)

// Model types understood by the factory.
const (
	ModelNaive         = "naive"
	ModelSeasonalNaive = "seasonal_naive"
	ModelMovingAverage = "moving_average"
	ModelRidge         = "ridge"
)

// Parameter defaults.
const (
	DefaultSeasonLength = 7
	DefaultWindow       = 7
	DefaultAlpha        = 1.0
)

// Factory builds a fresh model for every request.
type Factory struct {
	engine *features.Engine
}

var _ ports.ModelFactory = (*Factory)(nil)

// NewFactory returns a factory whose feature-based models compute features with engine.
func NewFactory(engine *features.Engine) *Factory {
	return &Factory{engine: engine}
}

func (f *Factory) New(cfg backtest.ModelConfig) (ports.Model, error) {
	switch cfg.Type {
	case ModelNaive:
		return &Naive{}, nil
	case ModelSeasonalNaive:
		season, err := cfg.IntParam("season_length", DefaultSeasonLength)
		if err != nil {
			return nil, err
		}
		m, err := NewSeasonalNaive(season)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ModelMovingAverage:
		window, err := cfg.IntParam("window", DefaultWindow)
		if err != nil {
			return nil, err
		}
		m, err := NewMovingAverage(window)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ModelRidge:
		alpha, err := cfg.FloatParam("alpha", DefaultAlpha)
		if err != nil {
			return nil, err
		}
		if f.engine == nil {
			return nil, fmt.Errorf("%w: ridge requires a feature engine", core.ErrInvalidConfig)
		}
		m, err := NewRidge(alpha, f.engine)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %q", core.ErrUnknownModel, cfg.Type)
}

// Types lists the supported model types.
func Types() []string {
	return []string{ModelNaive, ModelSeasonalNaive, ModelMovingAverage, ModelRidge}
}
