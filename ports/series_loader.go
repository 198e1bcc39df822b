package ports

import (
	"context"
	"time"

	"demandcast/domain/series"
)

// SeriesQuery selects the observations to load. Empty EntityIDs means every entity; nil dates
// leave the range open on that side.
type SeriesQuery struct {
	EntityIDs []series.EntityKey
	Start     *time.Time
	End       *time.Time
}

// SeriesLoader supplies per-(entity, date) observations ordered by entity then date.
type SeriesLoader interface {
	LoadSeries(ctx context.Context, q SeriesQuery) (*series.Frame, error)
}

// SourceVersioner is implemented by loaders that can tell when their underlying data changed.
// The version is opaque and differs whenever a reload could return different rows.
type SourceVersioner interface {
	SourceVersion(ctx context.Context) (string, error)
}
