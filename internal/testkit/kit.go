package testkit

import (
	"context"
	"sync"

	"demandcast/domain/core"
	"demandcast/domain/series"
	"demandcast/ports"
)

// TestKit provides a generated sales history behind an in-memory series loader
type TestKit struct {
	config RetailGeneratorConfig

	once  sync.Once
	frame *series.Frame
}

// NewTestKit creates a kit over the default retail configuration
func NewTestKit() *TestKit {
	return NewTestKitWithConfig(DefaultRetailConfig())
}

func NewTestKitWithConfig(config RetailGeneratorConfig) *TestKit {
	return &TestKit{config: config}
}

// Frame returns the generated history. It is generated once and must not be modified.
func (k *TestKit) Frame() *series.Frame {
	k.once.Do(func() {
		k.frame = NewRetailGenerator(k.config).Generate()
	})
	return k.frame
}

// Loader serves Frame through the SeriesLoader port.
func (k *TestKit) Loader() ports.SeriesLoader {
	return &MemoryLoader{frame: k.Frame()}
}

// MemoryLoader is a SeriesLoader over a frame held in memory
type MemoryLoader struct {
	frame *series.Frame
}

func NewMemoryLoader(frame *series.Frame) *MemoryLoader {
	return &MemoryLoader{frame: frame}
}

// LoadSeries applies the query filters and returns a copy sorted by entity then date.
func (l *MemoryLoader) LoadSeries(ctx context.Context, q ports.SeriesQuery) (*series.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[series.EntityKey]bool, len(q.EntityIDs))
	for _, id := range q.EntityIDs {
		want[id] = true
	}
	f := l.frame
	return f.Filter(func(i int) bool {
		if len(want) > 0 && !want[f.Entity(i)] {
			return false
		}
		d := f.Date(i)
		if q.Start != nil && d.Before(core.TruncateDay(*q.Start)) {
			return false
		}
		return q.End == nil || !d.After(core.TruncateDay(*q.End))
	}).SortByEntityDate(), nil
}
