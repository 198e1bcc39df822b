// Package series holds the in-memory table the loaders produce and the feature engine consumes.
package series

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"demandcast/domain/core"
)

// EntityKey identifies one independent series, e.g. store+product.
type EntityKey string

const keySep = "|"

// NewEntityKey joins the identifying column values of an entity.
func NewEntityKey(parts ...string) EntityKey {
	return EntityKey(strings.Join(parts, keySep))
}

// Parts splits the key back into its identifying values.
func (k EntityKey) Parts() []string {
	return strings.Split(string(k), keySep)
}

func (k EntityKey) String() string { return string(k) }

// Missing is the null marker for numeric columns.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the null marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Row is the row-oriented view used by loaders and tests. Columns absent from Values are missing.
type Row struct {
	Entity EntityKey
	Date   time.Time
	Values map[string]float64
}

// Frame is a columnar table of (entity, date, numeric columns).
type Frame struct {
	entities []EntityKey
	dates    []time.Time
	names    []string
	columns  map[string][]float64
}

// NewFrame creates an empty frame with the given value columns.
func NewFrame(columns ...string) *Frame {
	f := &Frame{columns: make(map[string][]float64, len(columns))}
	for _, c := range columns {
		if _, ok := f.columns[c]; ok {
			continue
		}
		f.names = append(f.names, c)
		f.columns[c] = nil
	}
	return f
}

// FromRows builds a frame from row-oriented data.
func FromRows(columns []string, rows []Row) *Frame {
	f := NewFrame(columns...)
	for _, r := range rows {
		f.AppendRow(r)
	}
	return f
}

// AppendRow adds one row. Dates are normalized to midnight UTC.
func (f *Frame) AppendRow(r Row) {
	f.entities = append(f.entities, r.Entity)
	f.dates = append(f.dates, core.TruncateDay(r.Date))
	for _, name := range f.names {
		v, ok := r.Values[name]
		if !ok {
			v = Missing()
		}
		f.columns[name] = append(f.columns[name], v)
	}
}

func (f *Frame) Len() int { return len(f.dates) }

func (f *Frame) Entity(i int) EntityKey { return f.entities[i] }

func (f *Frame) Date(i int) time.Time { return f.dates[i] }

// Dates returns the date column. Callers must not modify it.
func (f *Frame) Dates() []time.Time { return f.dates }

// ColumnNames returns value columns in insertion order.
func (f *Frame) ColumnNames() []string {
	return append([]string(nil), f.names...)
}

func (f *Frame) HasColumn(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Column returns the values of a column. Callers must not modify the returned slice.
func (f *Frame) Column(name string) ([]float64, bool) {
	v, ok := f.columns[name]
	return v, ok
}

// Value returns one cell, missing when the column does not exist.
func (f *Frame) Value(name string, i int) float64 {
	col, ok := f.columns[name]
	if !ok {
		return Missing()
	}
	return col[i]
}

// SetColumn adds or replaces a column. The frame takes ownership of values.
func (f *Frame) SetColumn(name string, values []float64) {
	if len(values) != f.Len() {
		panic(fmt.Sprintf("series: column %q has %d values, frame has %d rows", name, len(values), f.Len()))
	}
	if _, ok := f.columns[name]; !ok {
		f.names = append(f.names, name)
	}
	f.columns[name] = values
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		entities: append([]EntityKey(nil), f.entities...),
		dates:    append([]time.Time(nil), f.dates...),
		names:    append([]string(nil), f.names...),
		columns:  make(map[string][]float64, len(f.columns)),
	}
	for name, col := range f.columns {
		out.columns[name] = append([]float64(nil), col...)
	}
	return out
}

// Take returns a new frame holding the given rows in the given order.
func (f *Frame) Take(idx []int) *Frame {
	out := &Frame{
		entities: make([]EntityKey, len(idx)),
		dates:    make([]time.Time, len(idx)),
		names:    append([]string(nil), f.names...),
		columns:  make(map[string][]float64, len(f.columns)),
	}
	for j, i := range idx {
		out.entities[j] = f.entities[i]
		out.dates[j] = f.dates[i]
	}
	for name, col := range f.columns {
		vals := make([]float64, len(idx))
		for j, i := range idx {
			vals[j] = col[i]
		}
		out.columns[name] = vals
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (f *Frame) Filter(keep func(i int) bool) *Frame {
	idx := make([]int, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return f.Take(idx)
}

// SortByEntityDate returns a copy ordered by entity key then date ascending.
func (f *Frame) SortByEntityDate() *Frame {
	idx := make([]int, f.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ea, eb := f.entities[idx[a]], f.entities[idx[b]]
		if ea != eb {
			return ea < eb
		}
		return f.dates[idx[a]].Before(f.dates[idx[b]])
	})
	return f.Take(idx)
}

// EntityKeys returns the distinct entities in first-seen order.
func (f *Frame) EntityKeys() []EntityKey {
	seen := make(map[EntityKey]bool)
	var keys []EntityKey
	for _, e := range f.entities {
		if !seen[e] {
			seen[e] = true
			keys = append(keys, e)
		}
	}
	return keys
}

// DateRange returns the smallest and largest date; ok is false for an empty frame.
func (f *Frame) DateRange() (core.DateRange, bool) {
	if f.Len() == 0 {
		return core.DateRange{}, false
	}
	r := core.DateRange{Start: f.dates[0], End: f.dates[0]}
	for _, d := range f.dates[1:] {
		if d.Before(r.Start) {
			r.Start = d
		}
		if d.After(r.End) {
			r.End = d
		}
	}
	return r, true
}

// Rows returns the row-oriented view of the frame.
func (f *Frame) Rows() []Row {
	rows := make([]Row, f.Len())
	for i := range rows {
		values := make(map[string]float64, len(f.names))
		for _, name := range f.names {
			values[name] = f.columns[name][i]
		}
		rows[i] = Row{Entity: f.entities[i], Date: f.dates[i], Values: values}
	}
	return rows
}
