package features

import (
	"fmt"

	"demandcast/domain/core"
)

// LagSpec describes lag features of the target column.
type LagSpec struct {
	Lags         []int    `yaml:"lags" json:"lags"`
	TargetColumn string   `yaml:"target_column" json:"target_column" default:"quantity"`
	FillValue    *float64 `yaml:"fill_value,omitempty" json:"fill_value,omitempty"`
}

// LagConfig is a validated LagSpec. Every lag is strictly positive: a zero lag would read the
// current row.
type LagConfig struct {
	lags   []int
	target string
	fill   *float64
}

func NewLagConfig(spec LagSpec) (*LagConfig, error) {
	lags, err := canonicalOffsets(spec.Lags, core.ErrNonPositiveLag)
	if err != nil {
		return nil, fmt.Errorf("lag config: %w", err)
	}
	cfg := &LagConfig{lags: lags, target: spec.TargetColumn}
	if cfg.target == "" {
		cfg.target = DefaultTargetColumn
	}
	if spec.FillValue != nil {
		v := *spec.FillValue
		cfg.fill = &v
	}
	return cfg, nil
}

func (c *LagConfig) Lags() []int          { return append([]int(nil), c.lags...) }
func (c *LagConfig) TargetColumn() string { return c.target }

// FillValue returns the replacement for undefined lags, if one is configured.
func (c *LagConfig) FillValue() (float64, bool) {
	if c.fill == nil {
		return 0, false
	}
	return *c.fill, true
}

// ColumnNames returns the generated column names in lag order.
func (c *LagConfig) ColumnNames() []string {
	names := make([]string, len(c.lags))
	for i, l := range c.lags {
		names[i] = LagColumn(l)
	}
	return names
}

func (c *LagConfig) Hash() core.Hash { return core.MustHashCanonical(c.canonical()) }

func (c *LagConfig) canonical() map[string]interface{} {
	m := map[string]interface{}{"lags": c.lags, "target_column": c.target, "fill_value": nil}
	if c.fill != nil {
		m["fill_value"] = *c.fill
	}
	return m
}

func LagColumn(lag int) string { return fmt.Sprintf("lag_%d", lag) }
