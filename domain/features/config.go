// Package features describes which feature families to compute and with which parameters.
//
// Specs (LagSpec, RollingSpec, ...) are plain input structs that decode from YAML or JSON.
// Build validates a spec tree and returns an immutable FeatureConfig: all fields are
// unexported and getters hand out copies. A built configuration is safe for concurrent use.
package features

import (
	"sort"

	"demandcast/domain/core"
)

const (
	// DefaultTargetColumn is the demand column forecast by default.
	DefaultTargetColumn = "quantity"
	// DefaultVersion is the schema version stamped on configs that do not set one.
	DefaultVersion = "1.0"
)

// FeatureSpec is the decodable description of a feature configuration. A nil family is disabled.
type FeatureSpec struct {
	Name       string          `yaml:"name" json:"name"`
	Version    string          `yaml:"version" json:"version" default:"1.0"`
	Lag        *LagSpec        `yaml:"lag,omitempty" json:"lag,omitempty"`
	Rolling    *RollingSpec    `yaml:"rolling,omitempty" json:"rolling,omitempty"`
	Calendar   *CalendarSpec   `yaml:"calendar,omitempty" json:"calendar,omitempty"`
	Exogenous  *ExogenousSpec  `yaml:"exogenous,omitempty" json:"exogenous,omitempty"`
	Imputation *ImputationSpec `yaml:"imputation,omitempty" json:"imputation,omitempty"`
}

// FeatureConfig is the validated, frozen configuration tree.
type FeatureConfig struct {
	name       string
	version    string
	lag        *LagConfig
	rolling    *RollingConfig
	calendar   *CalendarConfig
	exogenous  *ExogenousConfig
	imputation *ImputationConfig
	hash       core.Hash
}

// Build validates the spec and freezes it.
func (s FeatureSpec) Build() (*FeatureConfig, error) {
	cfg := &FeatureConfig{name: s.Name, version: s.Version}
	if cfg.version == "" {
		cfg.version = DefaultVersion
	}

	var err error
	if s.Lag != nil {
		if cfg.lag, err = NewLagConfig(*s.Lag); err != nil {
			return nil, err
		}
	}
	if s.Rolling != nil {
		if cfg.rolling, err = NewRollingConfig(*s.Rolling); err != nil {
			return nil, err
		}
	}
	if s.Calendar != nil {
		if cfg.calendar, err = NewCalendarConfig(*s.Calendar); err != nil {
			return nil, err
		}
	}
	if s.Exogenous != nil {
		if cfg.exogenous, err = NewExogenousConfig(*s.Exogenous); err != nil {
			return nil, err
		}
	}
	if s.Imputation != nil {
		if cfg.imputation, err = NewImputationConfig(*s.Imputation); err != nil {
			return nil, err
		}
	}

	cfg.hash = core.MustHashCanonical(cfg.canonical())
	return cfg, nil
}

func (c *FeatureConfig) Name() string    { return c.name }
func (c *FeatureConfig) Version() string { return c.version }

// Lag returns the lag family, nil when disabled. The same holds for the other families.
func (c *FeatureConfig) Lag() *LagConfig               { return c.lag }
func (c *FeatureConfig) Rolling() *RollingConfig       { return c.rolling }
func (c *FeatureConfig) Calendar() *CalendarConfig     { return c.calendar }
func (c *FeatureConfig) Exogenous() *ExogenousConfig   { return c.exogenous }
func (c *FeatureConfig) Imputation() *ImputationConfig { return c.imputation }

// Hash is the deterministic content hash of the whole tree.
func (c *FeatureConfig) Hash() core.Hash { return c.hash }

// TargetColumn is the column lag features read, falling back to rolling, then the default.
func (c *FeatureConfig) TargetColumn() string {
	switch {
	case c.lag != nil:
		return c.lag.target
	case c.rolling != nil:
		return c.rolling.target
	default:
		return DefaultTargetColumn
	}
}

// RequiredColumns lists the input columns the enabled families read, sorted.
func (c *FeatureConfig) RequiredColumns() []string {
	set := make(map[string]bool)
	if c.lag != nil {
		set[c.lag.target] = true
	}
	if c.rolling != nil {
		set[c.rolling.target] = true
	}
	if c.exogenous != nil {
		for _, col := range c.exogenous.inputColumns() {
			set[col] = true
		}
	}
	if c.imputation != nil {
		for _, col := range c.imputation.Columns() {
			set[col] = true
		}
	}
	cols := make([]string, 0, len(set))
	for col := range set {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func (c *FeatureConfig) canonical() map[string]interface{} {
	m := map[string]interface{}{
		"name":    c.name,
		"version": c.version,
	}
	if c.lag != nil {
		m["lag"] = c.lag.canonical()
	}
	if c.rolling != nil {
		m["rolling"] = c.rolling.canonical()
	}
	if c.calendar != nil {
		m["calendar"] = c.calendar.canonical()
	}
	if c.exogenous != nil {
		m["exogenous"] = c.exogenous.canonical()
	}
	if c.imputation != nil {
		m["imputation"] = c.imputation.canonical()
	}
	return m
}

// canonicalOffsets validates a set of positive offsets and returns it sorted without duplicates.
func canonicalOffsets(offsets []int, errNonPositive error) ([]int, error) {
	if len(offsets) == 0 {
		return nil, core.ErrEmptyOffsets
	}
	seen := make(map[int]bool, len(offsets))
	out := make([]int, 0, len(offsets))
	for _, o := range offsets {
		if o <= 0 {
			return nil, errNonPositive
		}
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	sort.Ints(out)
	return out, nil
}
