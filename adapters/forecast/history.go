// Package forecast provides the pluggable models scored by the backtest evaluator.
package forecast

import (
	"sort"
	"time"

	"demandcast/domain/series"
)

// entityHistory is one entity's training rows in date order.
type entityHistory struct {
	dates  []time.Time
	values []float64
	byDate map[time.Time]float64
}

func (h *entityHistory) last() (time.Time, bool) {
	if len(h.dates) == 0 {
		return time.Time{}, false
	}
	return h.dates[len(h.dates)-1], true
}

// lastObserved returns the most recent present value.
func (h *entityHistory) lastObserved() float64 {
	for i := len(h.values) - 1; i >= 0; i-- {
		if !series.IsMissing(h.values[i]) {
			return h.values[i]
		}
	}
	return series.Missing()
}

// splitHistory groups the target column of a frame by entity.
func splitHistory(f *series.Frame, target string) map[series.EntityKey]*entityHistory {
	out := make(map[series.EntityKey]*entityHistory)
	col, ok := f.Column(target)
	if !ok {
		return out
	}
	idx := make([]int, f.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return f.Date(idx[a]).Before(f.Date(idx[b])) })

	for _, i := range idx {
		e := f.Entity(i)
		h, ok := out[e]
		if !ok {
			h = &entityHistory{byDate: make(map[time.Time]float64)}
			out[e] = h
		}
		h.dates = append(h.dates, f.Date(i))
		h.values = append(h.values, col[i])
		h.byDate[f.Date(i)] = col[i]
	}
	return out
}

func missingSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = series.Missing()
	}
	return out
}
