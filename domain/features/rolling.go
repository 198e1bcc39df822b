package features

import (
	"fmt"

	"demandcast/domain/core"
)

// Aggregation is a rolling-window reducer.
type Aggregation string

const (
	AggMean Aggregation = "mean"
	AggStd  Aggregation = "std"
	AggMin  Aggregation = "min"
	AggMax  Aggregation = "max"
	AggSum  Aggregation = "sum"
)

// aggregationOrder fixes the canonical order of aggregations in configs and column lists.
var aggregationOrder = []Aggregation{AggMean, AggStd, AggMin, AggMax, AggSum}

func (a Aggregation) Valid() bool {
	for _, known := range aggregationOrder {
		if a == known {
			return true
		}
	}
	return false
}

// RollingSpec describes trailing-window statistics of the target column.
type RollingSpec struct {
	Windows      []int         `yaml:"windows" json:"windows"`
	Aggregations []Aggregation `yaml:"aggregations" json:"aggregations"`
	TargetColumn string        `yaml:"target_column" json:"target_column" default:"quantity"`
	// MinPeriods defaults to each window's own size.
	MinPeriods *int `yaml:"min_periods,omitempty" json:"min_periods,omitempty"`
}

type RollingConfig struct {
	windows      []int
	aggregations []Aggregation
	target       string
	minPeriods   *int
}

func NewRollingConfig(spec RollingSpec) (*RollingConfig, error) {
	windows, err := canonicalOffsets(spec.Windows, core.ErrNonPositiveWindow)
	if err != nil {
		return nil, fmt.Errorf("rolling config: %w", err)
	}

	requested := make(map[Aggregation]bool, len(spec.Aggregations))
	for _, a := range spec.Aggregations {
		if !a.Valid() {
			return nil, fmt.Errorf("rolling config: %w: %q", core.ErrUnknownAggregation, a)
		}
		requested[a] = true
	}
	if len(requested) == 0 {
		requested[AggMean] = true
	}
	var aggs []Aggregation
	for _, a := range aggregationOrder {
		if requested[a] {
			aggs = append(aggs, a)
		}
	}

	cfg := &RollingConfig{windows: windows, aggregations: aggs, target: spec.TargetColumn}
	if cfg.target == "" {
		cfg.target = DefaultTargetColumn
	}
	if spec.MinPeriods != nil {
		mp := *spec.MinPeriods
		if mp < 1 || mp > windows[0] {
			return nil, fmt.Errorf("rolling config: %w: %d must be between 1 and the smallest window %d",
				core.ErrInvalidMinPeriods, mp, windows[0])
		}
		cfg.minPeriods = &mp
	}
	return cfg, nil
}

func (c *RollingConfig) Windows() []int       { return append([]int(nil), c.windows...) }
func (c *RollingConfig) TargetColumn() string { return c.target }

func (c *RollingConfig) Aggregations() []Aggregation {
	return append([]Aggregation(nil), c.aggregations...)
}

// MinPeriods returns the number of prior observations a window of the given size needs.
func (c *RollingConfig) MinPeriods(window int) int {
	if c.minPeriods == nil {
		return window
	}
	return *c.minPeriods
}

// ColumnNames lists rolling_<agg>_<window> for every window then aggregation.
func (c *RollingConfig) ColumnNames() []string {
	names := make([]string, 0, len(c.windows)*len(c.aggregations))
	for _, w := range c.windows {
		for _, a := range c.aggregations {
			names = append(names, RollingColumn(a, w))
		}
	}
	return names
}

func (c *RollingConfig) Hash() core.Hash { return core.MustHashCanonical(c.canonical()) }

func (c *RollingConfig) canonical() map[string]interface{} {
	m := map[string]interface{}{
		"windows":       c.windows,
		"aggregations":  c.aggregations,
		"target_column": c.target,
		"min_periods":   nil,
	}
	if c.minPeriods != nil {
		m["min_periods"] = *c.minPeriods
	}
	return m
}

func RollingColumn(agg Aggregation, window int) string {
	return fmt.Sprintf("rolling_%s_%d", agg, window)
}
