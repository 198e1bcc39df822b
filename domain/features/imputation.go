package features

import (
	"fmt"
	"sort"

	"demandcast/domain/core"
)

// ImputationStrategy fills or removes missing values of one column.
type ImputationStrategy string

const (
	ImputeZero          ImputationStrategy = "zero"
	ImputeForwardFill   ImputationStrategy = "forward_fill"
	ImputeBackwardFill  ImputationStrategy = "backward_fill"
	ImputeGlobalMean    ImputationStrategy = "mean"
	ImputeExpandingMean ImputationStrategy = "expanding_mean"
	ImputeDropRow       ImputationStrategy = "drop"
)

func (s ImputationStrategy) Valid() bool {
	switch s {
	case ImputeZero, ImputeForwardFill, ImputeBackwardFill, ImputeGlobalMean, ImputeExpandingMean, ImputeDropRow:
		return true
	}
	return false
}

// LeakageSafe reports whether the strategy only reads the current or earlier rows.
// backward_fill and mean read later rows and exist for offline analysis only.
func (s ImputationStrategy) LeakageSafe() bool {
	return s != ImputeBackwardFill && s != ImputeGlobalMean
}

// ImputationSpec maps column name to strategy.
type ImputationSpec struct {
	Strategies map[string]ImputationStrategy `yaml:"strategies" json:"strategies"`
}

type ImputationConfig struct {
	strategies map[string]ImputationStrategy
}

func NewImputationConfig(spec ImputationSpec) (*ImputationConfig, error) {
	cfg := &ImputationConfig{strategies: make(map[string]ImputationStrategy, len(spec.Strategies))}
	for col, s := range spec.Strategies {
		if col == "" {
			return nil, core.NewValidationError("imputation", "column name cannot be empty")
		}
		if !s.Valid() {
			return nil, fmt.Errorf("imputation config: %w: %q for column %s", core.ErrUnknownStrategy, s, col)
		}
		cfg.strategies[col] = s
	}
	return cfg, nil
}

// Columns returns the imputed columns, sorted.
func (c *ImputationConfig) Columns() []string {
	cols := make([]string, 0, len(c.strategies))
	for col := range c.strategies {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func (c *ImputationConfig) Strategy(column string) (ImputationStrategy, bool) {
	s, ok := c.strategies[column]
	return s, ok
}

func (c *ImputationConfig) Hash() core.Hash { return core.MustHashCanonical(c.canonical()) }

func (c *ImputationConfig) canonical() map[string]interface{} {
	m := make(map[string]interface{}, len(c.strategies))
	for col, s := range c.strategies {
		m[col] = string(s)
	}
	return m
}
