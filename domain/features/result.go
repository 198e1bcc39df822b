package features

import (
	"time"

	"demandcast/domain/core"
	"demandcast/domain/series"
)

// Stats summarizes one computation.
type Stats struct {
	InputRows  int            `json:"input_rows"`
	OutputRows int            `json:"output_rows"`
	NullCounts map[string]int `json:"null_counts"`
}

// Warning is a non-fatal diagnostic attached to a feature result.
type Warning struct {
	Column   string             `json:"column"`
	Strategy ImputationStrategy `json:"strategy"`
	Message  string             `json:"message"`
}

// Result is the feature table plus the metadata needed to audit and cache it.
type Result struct {
	Frame          *series.Frame `json:"-"`
	FeatureColumns []string      `json:"feature_columns"`
	ConfigHash     core.Hash     `json:"config_hash"`
	// Cutoff is the last date admitted into the computation, nil when none was given.
	Cutoff   *time.Time `json:"cutoff,omitempty"`
	Stats    Stats      `json:"stats"`
	Warnings []Warning  `json:"warnings,omitempty"`
}

// MaxDate returns the latest date in the feature table.
func (r *Result) MaxDate() (time.Time, bool) {
	dr, ok := r.Frame.DateRange()
	return dr.End, ok
}
