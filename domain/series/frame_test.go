package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestFromRows_MissingValuesBecomeNaN(t *testing.T) {
	f := FromRows([]string{"quantity", "price"}, []Row{
		{Entity: "a", Date: day(0), Values: map[string]float64{"quantity": 1, "price": 2}},
		{Entity: "a", Date: day(1).Add(13 * time.Hour), Values: map[string]float64{"quantity": 3}},
	})

	require.Equal(t, 2, f.Len())
	assert.True(t, IsMissing(f.Value("price", 1)))
	assert.Equal(t, day(1), f.Date(1), "dates are truncated to midnight")
	assert.True(t, IsMissing(f.Value("unknown", 0)))
}

func TestSortByEntityDate(t *testing.T) {
	f := FromRows([]string{"quantity"}, []Row{
		{Entity: "b", Date: day(1), Values: map[string]float64{"quantity": 4}},
		{Entity: "a", Date: day(2), Values: map[string]float64{"quantity": 2}},
		{Entity: "b", Date: day(0), Values: map[string]float64{"quantity": 3}},
		{Entity: "a", Date: day(1), Values: map[string]float64{"quantity": 1}},
	})

	sorted := f.SortByEntityDate()
	q, _ := sorted.Column("quantity")
	assert.Equal(t, []float64{1, 2, 3, 4}, q)
	assert.Equal(t, []EntityKey{"a", "b"}, sorted.EntityKeys())

	orig, _ := f.Column("quantity")
	assert.Equal(t, []float64{4, 2, 3, 1}, orig, "input frame must be left untouched")
}

func TestSetColumnLengthMismatchPanics(t *testing.T) {
	f := NewFrame("quantity")
	f.AppendRow(Row{Entity: "a", Date: day(0)})
	assert.Panics(t, func() { f.SetColumn("lag_1", []float64{1, 2}) })
}

func TestDateRangeAndEntityKey(t *testing.T) {
	f := NewFrame()
	_, ok := f.DateRange()
	assert.False(t, ok)

	key := NewEntityKey("store-1", "sku-9")
	f.AppendRow(Row{Entity: key, Date: day(5)})
	f.AppendRow(Row{Entity: key, Date: day(2)})

	r, ok := f.DateRange()
	require.True(t, ok)
	assert.Equal(t, day(2), r.Start)
	assert.Equal(t, day(5), r.End)
	assert.Equal(t, []string{"store-1", "sku-9"}, key.Parts())
}
