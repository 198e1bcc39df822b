package features

import (
	"fmt"

	"demandcast/domain/series"
)

// pastWindow returns the values at positions [i-offset-size+1, i-offset] of one entity's ordered
// values, clipped at the start of the series. offset must be at least 1, so position i and every
// later position are unreachable. Every family that reads history goes through this function.
func pastWindow(values []float64, i, offset, size int) []float64 {
	if offset < 1 {
		panic(fmt.Sprintf("features: pastWindow offset must be positive, got %d", offset))
	}
	end := i - offset
	if end < 0 || size < 1 {
		return nil
	}
	start := end - size + 1
	if start < 0 {
		start = 0
	}
	return values[start : end+1]
}

// pastValue is the single value offset positions back, missing when it does not exist.
func pastValue(values []float64, i, offset int) float64 {
	w := pastWindow(values, i, offset, 1)
	if len(w) == 0 {
		return series.Missing()
	}
	return w[0]
}

// nonMissing copies the present values of w.
func nonMissing(w []float64) []float64 {
	out := make([]float64, 0, len(w))
	for _, v := range w {
		if !series.IsMissing(v) {
			out = append(out, v)
		}
	}
	return out
}

// partitionByEntity splits a frame sorted by entity then date into contiguous row-index groups,
// one per entity. Groups never share rows.
func partitionByEntity(f *series.Frame) [][]int {
	var groups [][]int
	for i := 0; i < f.Len(); i++ {
		if i == 0 || f.Entity(i) != f.Entity(i-1) {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], i)
	}
	return groups
}

// gather copies the column values of one group into a group-local slice.
func gather(col []float64, group []int) []float64 {
	out := make([]float64, len(group))
	for k, i := range group {
		out[k] = col[i]
	}
	return out
}

// perGroup builds a new column by running fn over each entity's local values. fn writes
// dst[k] for local position k.
func perGroup(f *series.Frame, groups [][]int, src []float64, fn func(local, dst []float64)) []float64 {
	out := make([]float64, f.Len())
	for _, g := range groups {
		local := gather(src, g)
		dst := make([]float64, len(g))
		fn(local, dst)
		for k, i := range g {
			out[i] = dst[k]
		}
	}
	return out
}

func mustColumn(f *series.Frame, name string) []float64 {
	col, ok := f.Column(name)
	if !ok {
		panic(fmt.Sprintf("features: column %q vanished after validation", name))
	}
	return col
}
