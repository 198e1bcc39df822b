package backtest

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandcast/domain/core"
)

func TestNewSplitConfig_Validation(t *testing.T) {
	_, err := NewSplitConfig(StrategyExpanding, 5, 30, 0, 14)
	require.NoError(t, err)

	tests := []struct {
		name string
		cfg  SplitConfig
	}{
		{"unknown strategy", SplitConfig{Strategy: "blocked", NSplits: 1, MinTrainSize: 1, Horizon: 1}},
		{"zero splits", SplitConfig{Strategy: StrategySliding, NSplits: 0, MinTrainSize: 1, Horizon: 1}},
		{"zero train", SplitConfig{Strategy: StrategySliding, NSplits: 1, MinTrainSize: 0, Horizon: 1}},
		{"negative gap", SplitConfig{Strategy: StrategySliding, NSplits: 1, MinTrainSize: 1, Gap: -1, Horizon: 1}},
		{"zero horizon", SplitConfig{Strategy: StrategySliding, NSplits: 1, MinTrainSize: 1, Horizon: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.True(t, core.IsConfigError(err))
		})
	}
}

func TestModelConfig_HashAndParams(t *testing.T) {
	a := ModelConfig{Type: "ridge", Params: map[string]interface{}{"alpha": 1.0, "window": 7}}
	b := ModelConfig{Type: "ridge", Params: map[string]interface{}{"window": 7, "alpha": 1.0}}
	assert.Equal(t, a.Hash(), b.Hash())

	b.Params["alpha"] = 2.0
	assert.NotEqual(t, a.Hash(), b.Hash())

	w, err := a.IntParam("window", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, w)

	w, err = ModelConfig{Params: map[string]interface{}{"window": 7.0}}.IntParam("window", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, w)

	_, err = ModelConfig{Params: map[string]interface{}{"window": 7.5}}.IntParam("window", 3)
	assert.ErrorIs(t, err, core.ErrInvalidModelParams)

	s, err := a.IntParam("season_length", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, s)
}

func TestMarshalJSON_NonFiniteAsNull(t *testing.T) {
	out, err := json.Marshal(ComparisonSummary{
		MainModel: "ridge",
		Comparisons: []BaselineComparison{{
			Baseline: "naive",
			Metrics:  []MetricComparison{{Metric: MetricWAPE, Main: 0.2, Baseline: math.Inf(1), AbsoluteDelta: math.Inf(-1)}},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"main":0.2,"baseline":null,"absolute_delta":null,"improvement_pct":0`)

	out, err = json.Marshal(Metrics{MAE: 1.5, SMAPE: math.NaN(), WAPE: math.Inf(1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mae":1.5,"smape":null,"wape":null,"bias":0}`, string(out))
}
