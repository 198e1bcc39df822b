// Package backtest holds the value types of rolling-origin evaluation.
package backtest

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"demandcast/domain/core"
	"demandcast/domain/series"
)

// Strategy controls how training windows move between folds.
type Strategy string

const (
	// StrategyExpanding anchors every training window at the start of the range.
	StrategyExpanding Strategy = "expanding"
	// StrategySliding keeps the training window at a constant size.
	StrategySliding Strategy = "sliding"
)

// SplitConfig parameterizes the cross-validation splitter. All sizes are in days.
type SplitConfig struct {
	Strategy Strategy `yaml:"strategy" json:"strategy" default:"expanding"`
	NSplits  int      `yaml:"n_splits" json:"n_splits" default:"5"`
	// MinTrainSize is the minimum training span for expanding folds and the fixed span for sliding folds.
	MinTrainSize int `yaml:"min_train_size" json:"min_train_size" default:"30"`
	Gap          int `yaml:"gap" json:"gap"`
	Horizon      int `yaml:"horizon" json:"horizon" default:"14"`
}

// NewSplitConfig validates a split configuration.
func NewSplitConfig(strategy Strategy, nSplits, minTrainSize, gap, horizon int) (SplitConfig, error) {
	cfg := SplitConfig{Strategy: strategy, NSplits: nSplits, MinTrainSize: minTrainSize, Gap: gap, Horizon: horizon}
	return cfg, cfg.Validate()
}

func (c SplitConfig) Validate() error {
	switch c.Strategy {
	case StrategyExpanding, StrategySliding:
	default:
		return fmt.Errorf("%w: strategy %q", core.ErrUnknownStrategy, c.Strategy)
	}
	switch {
	case c.NSplits < 1:
		return fmt.Errorf("%w: n_splits must be at least 1, got %d", core.ErrInvalidSplitConfig, c.NSplits)
	case c.MinTrainSize < 1:
		return fmt.Errorf("%w: min_train_size must be at least 1, got %d", core.ErrInvalidSplitConfig, c.MinTrainSize)
	case c.Gap < 0:
		return fmt.Errorf("%w: gap cannot be negative, got %d", core.ErrInvalidSplitConfig, c.Gap)
	case c.Horizon < 1:
		return fmt.Errorf("%w: horizon must be at least 1, got %d", core.ErrInvalidSplitConfig, c.Horizon)
	}
	return nil
}

// RequiredDays is the shortest range that yields NSplits folds.
func (c SplitConfig) RequiredDays() int {
	return c.MinTrainSize + c.Gap + c.NSplits*c.Horizon
}

// ModelConfig identifies a pluggable model and its parameters.
type ModelConfig struct {
	Type   string                 `yaml:"type" json:"type"`
	Params map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
}

// Hash is stable under reordering of Params.
func (c ModelConfig) Hash() core.Hash {
	return core.MustHashCanonical(map[string]interface{}{"type": c.Type, "params": c.Params})
}

// IntParam reads an integer parameter, accepting the numeric types decoders produce.
func (c ModelConfig) IntParam(name string, def int) (int, error) {
	v, ok := c.Params[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", core.ErrInvalidModelParams, name, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", core.ErrInvalidModelParams, name, v)
	}
}

// FloatParam reads a floating-point parameter.
func (c ModelConfig) FloatParam(name string, def float64) (float64, error) {
	v, ok := c.Params[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", core.ErrInvalidModelParams, name, v)
	}
}

// Fold is one train/test partition. Dates are inclusive; sizes are in days.
type Fold struct {
	TrainStart time.Time `json:"train_start"`
	TrainEnd   time.Time `json:"train_end"`
	TestStart  time.Time `json:"test_start"`
	TestEnd    time.Time `json:"test_end"`
	TrainSize  int       `json:"train_size"`
	TestSize   int       `json:"test_size"`
}

// GapStart is the first date after training, where the (gap + test) window begins.
func (f Fold) GapStart() time.Time { return core.AddDays(f.TrainEnd, 1) }

func (f Fold) TrainRange() core.DateRange {
	return core.DateRange{Start: f.TrainStart, End: f.TrainEnd}
}

func (f Fold) TestRange() core.DateRange {
	return core.DateRange{Start: f.TestStart, End: f.TestEnd}
}

// Metric names, in report order.
const (
	MetricMAE   = "mae"
	MetricSMAPE = "smape"
	MetricWAPE  = "wape"
	MetricBias  = "bias"
)

var MetricNames = []string{MetricMAE, MetricSMAPE, MetricWAPE, MetricBias}

// Metrics are the accuracy measures of one fold. Bias is mean(predicted - actual):
// positive means over-forecast.
type Metrics struct {
	MAE   float64 `json:"mae"`
	SMAPE float64 `json:"smape"`
	WAPE  float64 `json:"wape"`
	Bias  float64 `json:"bias"`
}

// MarshalJSON writes non-finite values (an undefined metric, WAPE over zero demand) as null.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]*float64{
		MetricMAE:   finite(m.MAE),
		MetricSMAPE: finite(m.SMAPE),
		MetricWAPE:  finite(m.WAPE),
		MetricBias:  finite(m.Bias),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Get returns a metric by name.
func (m Metrics) Get(name string) float64 {
	switch name {
	case MetricMAE:
		return m.MAE
	case MetricSMAPE:
		return m.SMAPE
	case MetricWAPE:
		return m.WAPE
	case MetricBias:
		return m.Bias
	}
	panic(fmt.Sprintf("backtest: unknown metric %q", name))
}

// FoldResult holds the predictions and metrics of one fold. Entities, Dates, Actuals and
// Predictions are parallel.
type FoldResult struct {
	FoldIndex   int                `json:"fold_index"`
	Fold        Fold               `json:"fold"`
	Entities    []series.EntityKey `json:"entities"`
	Dates       []time.Time        `json:"dates"`
	Actuals     []float64          `json:"actuals"`
	Predictions []float64          `json:"predictions"`
	Metrics     Metrics            `json:"metrics"`
	// FeatureCutoff is the cutoff the feature engine ran with, nil when no features were built.
	FeatureCutoff *time.Time `json:"feature_cutoff,omitempty"`
}

// AggregatedModelResult summarizes one model over all folds.
type AggregatedModelResult struct {
	ModelType   string       `json:"model_type"`
	ConfigHash  core.Hash    `json:"config_hash"`
	FoldResults []FoldResult `json:"fold_results"`
	// Mean is the per-metric mean across folds.
	Mean Metrics `json:"mean"`
	// Stability is the per-metric coefficient of variation across folds, in percent.
	Stability Metrics `json:"stability"`
}

// MetricComparison compares the main model with one baseline on one metric.
type MetricComparison struct {
	Metric        string  `json:"metric"`
	Main          float64 `json:"main"`
	Baseline      float64 `json:"baseline"`
	AbsoluteDelta float64 `json:"absolute_delta"`
	// ImprovementPct is positive when the main model is better.
	ImprovementPct float64 `json:"improvement_pct"`
}

// MarshalJSON writes non-finite values as null, like Metrics.
func (c MetricComparison) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Metric         string   `json:"metric"`
		Main           *float64 `json:"main"`
		Baseline       *float64 `json:"baseline"`
		AbsoluteDelta  *float64 `json:"absolute_delta"`
		ImprovementPct *float64 `json:"improvement_pct"`
	}{c.Metric, finite(c.Main), finite(c.Baseline), finite(c.AbsoluteDelta), finite(c.ImprovementPct)})
}

// BaselineComparison is the main model against one baseline.
type BaselineComparison struct {
	Baseline string             `json:"baseline"`
	Metrics  []MetricComparison `json:"metrics"`
}

// ComparisonSummary collects the main model against every baseline.
type ComparisonSummary struct {
	MainModel   string               `json:"main_model"`
	Comparisons []BaselineComparison `json:"comparisons"`
}

// BacktestResult is the immutable outcome of one evaluation request.
type BacktestResult struct {
	RunID              core.RunID              `json:"run_id"`
	EntityIDs          []series.EntityKey      `json:"entity_ids"`
	DateRange          core.DateRange          `json:"date_range"`
	ConfigHash         core.Hash               `json:"config_hash"`
	Split              SplitConfig             `json:"split"`
	Main               AggregatedModelResult   `json:"main"`
	Baselines          []AggregatedModelResult `json:"baselines,omitempty"`
	Comparison         *ComparisonSummary      `json:"comparison,omitempty"`
	LeakageCheckPassed bool                    `json:"leakage_check_passed"`
	CreatedAt          core.Timestamp          `json:"created_at"`
}
