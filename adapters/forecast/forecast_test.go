package forecast

import (
	"context"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandcast/domain/backtest"
	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
	"demandcast/internal/features"
	"demandcast/ports"
)

var day0 = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

func history(entity string, values []float64) *series.Frame {
	f := series.NewFrame("quantity", "price")
	for i, v := range values {
		f.AppendRow(series.Row{
			Entity: series.NewEntityKey(entity),
			Date:   core.AddDays(day0, i),
			Values: map[string]float64{"quantity": v, "price": 4.5},
		})
	}
	return f
}

func futureDates(from time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = core.AddDays(from, i+1)
	}
	return out
}

func fitInput(f *series.Frame) ports.FitInput {
	dr, _ := f.DateRange()
	return ports.FitInput{History: f, TargetColumn: "quantity", TrainEnd: dr.End}
}

func TestNaive(t *testing.T) {
	ctx := context.Background()
	f := history("a", []float64{3, 5, 8})
	m := &Naive{}
	require.NoError(t, m.Fit(ctx, fitInput(f)))

	preds, err := m.Predict(ctx, ports.PredictInput{Entity: "a", Dates: futureDates(core.AddDays(day0, 2), 3)})
	require.NoError(t, err)
	assert.Equal(t, []float64{8, 8, 8}, preds)

	unknown, err := m.Predict(ctx, ports.PredictInput{Entity: "zzz", Dates: futureDates(day0, 2)})
	require.NoError(t, err)
	assert.True(t, series.IsMissing(unknown[0]))
}

func TestSeasonalNaive(t *testing.T) {
	ctx := context.Background()
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	f := history("a", values)
	m, err := NewSeasonalNaive(7)
	require.NoError(t, err)
	require.NoError(t, m.Fit(ctx, fitInput(f)))

	last := core.AddDays(day0, 13)
	preds, err := m.Predict(ctx, ports.PredictInput{Entity: "a", Dates: futureDates(last, 9)})
	require.NoError(t, err)
	// one week back for the first seven days, two weeks back after that
	assert.Equal(t, []float64{8, 9, 10, 11, 12, 13, 14, 8, 9}, preds)

	// dates past a gap still map onto the last observed week
	gapped, err := m.Predict(ctx, ports.PredictInput{Entity: "a", Dates: []time.Time{core.AddDays(last, 3)}})
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, gapped)

	_, err = NewSeasonalNaive(0)
	assert.ErrorIs(t, err, core.ErrInvalidModelParams)
}

func TestMovingAverage(t *testing.T) {
	ctx := context.Background()
	m, err := NewMovingAverage(3)
	require.NoError(t, err)
	require.NoError(t, m.Fit(ctx, fitInput(history("a", []float64{100, 1, 2, 3}))))

	preds, err := m.Predict(ctx, ports.PredictInput{Entity: "a", Dates: futureDates(core.AddDays(day0, 3), 2)})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, preds)
}

func TestRidge_RecoversLinearTrend(t *testing.T) {
	ctx := context.Background()
	logger, _ := logtest.NewNullLogger()
	engine := features.NewEngine(logger, nil)

	cfg, err := domainfeatures.FeatureSpec{Lag: &domainfeatures.LagSpec{Lags: []int{1}}}.Build()
	require.NoError(t, err)

	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i + 1)
	}
	f := history("a", values)
	trainEnd := core.AddDays(day0, 29)
	feats, err := engine.Compute(f, cfg, &trainEnd)
	require.NoError(t, err)

	m, err := NewRidge(1e-9, engine)
	require.NoError(t, err)
	require.NoError(t, m.Fit(ctx, ports.FitInput{
		History:       f,
		Features:      feats,
		FeatureConfig: cfg,
		TargetColumn:  "quantity",
		TrainEnd:      trainEnd,
	}))
	require.Len(t, m.coef, 2)
	assert.InDelta(t, 1.0, m.coef[0], 1e-4)
	assert.InDelta(t, 1.0, m.coef[1], 1e-4)

	preds, err := m.Predict(ctx, ports.PredictInput{Entity: "a", Dates: futureDates(trainEnd, 3)})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{31, 32, 33}, preds, 1e-3)
}

func TestRidge_RequiresFeatures(t *testing.T) {
	m, err := NewRidge(1, nil)
	require.NoError(t, err)
	err = m.Fit(context.Background(), fitInput(history("a", []float64{1, 2})))
	assert.True(t, core.IsConfigError(err))

	_, err = NewRidge(-1, nil)
	assert.ErrorIs(t, err, core.ErrInvalidModelParams)
}

func TestFactory(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	factory := NewFactory(features.NewEngine(logger, nil))

	for _, typ := range Types() {
		m, err := factory.New(backtest.ModelConfig{Type: typ})
		require.NoError(t, err, typ)
		assert.Equal(t, typ, m.Name())
	}

	_, err := factory.New(backtest.ModelConfig{Type: "gbm"})
	assert.ErrorIs(t, err, core.ErrUnknownModel)

	_, err = factory.New(backtest.ModelConfig{Type: ModelMovingAverage, Params: map[string]interface{}{"window": "seven"}})
	assert.ErrorIs(t, err, core.ErrInvalidModelParams)

	a, _ := factory.New(backtest.ModelConfig{Type: ModelNaive})
	b, _ := factory.New(backtest.ModelConfig{Type: ModelNaive})
	assert.NotSame(t, a, b, "every call returns a fresh model")
}
