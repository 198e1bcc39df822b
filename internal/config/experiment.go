package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"demandcast/domain/backtest"
	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
	internalbacktest "demandcast/internal/backtest"
	"demandcast/internal/errors"
	"demandcast/ports"
)

// Source kinds.
const (
	SourceFile = "file"
	SourceSQL  = "sql"
)

// SourceConfig says where an experiment reads its series from.
type SourceConfig struct {
	Kind string `yaml:"kind" default:"file"`
	// Path is the .csv/.xlsx file for file sources.
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet" default:"Sheet1"`
	// Table is the SQL table for sql sources.
	Table         string   `yaml:"table" default:"daily_sales"`
	EntityColumns []string `yaml:"entity_columns"`
	DateColumn    string   `yaml:"date_column"`
	ValueColumns  []string `yaml:"value_columns,omitempty"`
}

// Identity names the data the source reads, for keying derived results.
func (s SourceConfig) Identity() string {
	if s.Kind == SourceSQL {
		return s.Kind + ":" + s.Table
	}
	path := s.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return s.Kind + ":" + path + ":" + s.Sheet
}

// Experiment is a backtest described in YAML.
type Experiment struct {
	Name     string       `yaml:"name" default:"experiment"`
	Source   SourceConfig `yaml:"source"`
	Target   string       `yaml:"target" default:"quantity"`
	Entities []string     `yaml:"entities,omitempty"`
	// Start and End restrict the evaluated range (YYYY-MM-DD, inclusive).
	Start    string                      `yaml:"start,omitempty"`
	End      string                      `yaml:"end,omitempty"`
	Features *domainfeatures.FeatureSpec `yaml:"features,omitempty"`
	Split    backtest.SplitConfig        `yaml:"split"`
	Model    backtest.ModelConfig        `yaml:"model"`
	// Baselines defaults to naive and seasonal_naive when omitted; an empty list disables them.
	Baselines []backtest.ModelConfig `yaml:"baselines"`
	// Report is an optional HTML report path.
	Report string `yaml:"report,omitempty"`
}

// LoadExperiment reads and validates an experiment file.
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided experiment path
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read experiment %s", path)
	}
	exp, err := ParseExperiment(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid experiment %s", path)
	}
	return exp, nil
}

// ParseExperiment decodes YAML, applies defaults and validates the result.
func ParseExperiment(data []byte) (*Experiment, error) {
	exp := &Experiment{}
	if err := defaults.Set(exp); err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, exp); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	// Nested sections decoded from YAML start empty, so fill their defaults now.
	if err := defaults.Set(exp); err != nil {
		return nil, err
	}
	if exp.Baselines == nil {
		exp.Baselines = internalbacktest.DefaultBaselines()
	}
	if err := exp.Validate(); err != nil {
		return nil, errors.FromDomain(err)
	}
	return exp, nil
}

// Validate checks every section so errors surface before any data is loaded.
func (e *Experiment) Validate() error {
	switch e.Source.Kind {
	case SourceFile:
		if e.Source.Path == "" {
			return core.NewValidationError("source.path", "required for file sources")
		}
	case SourceSQL:
	default:
		return core.NewValidationError("source.kind", fmt.Sprintf("unknown kind %q", e.Source.Kind))
	}
	if _, _, err := e.DateRange(); err != nil {
		return err
	}
	if err := e.Split.Validate(); err != nil {
		return err
	}
	if e.Model.Type == "" {
		return core.NewValidationError("model.type", "required")
	}
	if _, err := e.FeatureConfig(); err != nil {
		return err
	}
	return nil
}

// FeatureConfig builds the feature tree, nil when the experiment has none.
func (e *Experiment) FeatureConfig() (*domainfeatures.FeatureConfig, error) {
	if e.Features == nil {
		return nil, nil
	}
	return e.Features.Build()
}

// DateRange returns the Start/End bounds; either may be nil.
func (e *Experiment) DateRange() (start, end *time.Time, err error) {
	parse := func(field, s string) (*time.Time, error) {
		if s == "" {
			return nil, nil
		}
		t, err := core.ParseDate(s)
		if err != nil {
			return nil, core.NewValidationError(field, err.Error())
		}
		return &t, nil
	}
	if start, err = parse("start", e.Start); err != nil {
		return nil, nil, err
	}
	if end, err = parse("end", e.End); err != nil {
		return nil, nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, core.NewValidationError("end", "before start")
	}
	return start, end, nil
}

// Query turns the entity and date filters into a loader query.
func (e *Experiment) Query() (ports.SeriesQuery, error) {
	start, end, err := e.DateRange()
	if err != nil {
		return ports.SeriesQuery{}, err
	}
	q := ports.SeriesQuery{Start: start, End: end}
	for _, id := range e.Entities {
		q.EntityIDs = append(q.EntityIDs, series.EntityKey(id))
	}
	return q, nil
}
