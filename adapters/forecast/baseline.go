package forecast

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"demandcast/domain/core"
	"demandcast/domain/series"
	"demandcast/ports"
)

// Naive repeats the last observed value of each entity.
type Naive struct {
	history map[series.EntityKey]*entityHistory
}

func (m *Naive) Name() string { return ModelNaive }

func (m *Naive) Fit(_ context.Context, in ports.FitInput) error {
	m.history = splitHistory(in.History, in.TargetColumn)
	return nil
}

func (m *Naive) Predict(_ context.Context, in ports.PredictInput) ([]float64, error) {
	h, ok := m.history[in.Entity]
	if !ok {
		return missingSlice(len(in.Dates)), nil
	}
	v := h.lastObserved()
	out := make([]float64, len(in.Dates))
	for i := range out {
		out[i] = v
	}
	return out, nil
}

// SeasonalNaive repeats the value observed a whole number of seasons before each date, using the
// latest such date inside the training history.
type SeasonalNaive struct {
	season  int
	history map[series.EntityKey]*entityHistory
}

func NewSeasonalNaive(season int) (*SeasonalNaive, error) {
	if season < 1 {
		return nil, fmt.Errorf("%w: season_length must be positive, got %d", core.ErrInvalidModelParams, season)
	}
	return &SeasonalNaive{season: season}, nil
}

func (m *SeasonalNaive) Name() string { return ModelSeasonalNaive }

func (m *SeasonalNaive) Fit(_ context.Context, in ports.FitInput) error {
	m.history = splitHistory(in.History, in.TargetColumn)
	return nil
}

func (m *SeasonalNaive) Predict(_ context.Context, in ports.PredictInput) ([]float64, error) {
	out := missingSlice(len(in.Dates))
	h, ok := m.history[in.Entity]
	if !ok {
		return out, nil
	}
	last, _ := h.last()
	for i, d := range in.Dates {
		ahead := core.DaysBetween(last, d)
		if ahead <= 0 {
			continue
		}
		seasons := (ahead + m.season - 1) / m.season
		if v, ok := h.byDate[core.AddDays(d, -seasons*m.season)]; ok {
			out[i] = v
		}
	}
	return out, nil
}

// MovingAverage forecasts the mean of the last window observed values.
type MovingAverage struct {
	window  int
	history map[series.EntityKey]*entityHistory
}

func NewMovingAverage(window int) (*MovingAverage, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: window must be positive, got %d", core.ErrInvalidModelParams, window)
	}
	return &MovingAverage{window: window}, nil
}

func (m *MovingAverage) Name() string { return ModelMovingAverage }

func (m *MovingAverage) Fit(_ context.Context, in ports.FitInput) error {
	m.history = splitHistory(in.History, in.TargetColumn)
	return nil
}

func (m *MovingAverage) Predict(_ context.Context, in ports.PredictInput) ([]float64, error) {
	out := missingSlice(len(in.Dates))
	h, ok := m.history[in.Entity]
	if !ok {
		return out, nil
	}
	var recent []float64
	for i := len(h.values) - 1; i >= 0 && len(recent) < m.window; i-- {
		if v := h.values[i]; !series.IsMissing(v) {
			recent = append(recent, v)
		}
	}
	if len(recent) == 0 {
		return out, nil
	}
	mean := stat.Mean(recent, nil)
	for i := range out {
		out[i] = mean
	}
	return out, nil
}
