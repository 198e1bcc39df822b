package postgres

import (
	"context"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandcast/domain/core"
	"demandcast/domain/series"
	"demandcast/ports"
)

func TestSeriesWriter_UpsertsAndLoadsBack(t *testing.T) {
	db := newTestDB(t)
	logger, _ := logtest.NewNullLogger()
	writer, err := NewSeriesWriter(db, DefaultSeriesTable(), logger)
	require.NoError(t, err)

	d1, _ := core.ParseDate("2024-03-01")
	d2, _ := core.ParseDate("2024-03-02")
	f := series.NewFrame("quantity", "price")
	f.AppendRow(series.Row{Entity: "s1|A", Date: d1, Values: map[string]float64{"quantity": 3, "price": 1.5}})
	f.AppendRow(series.Row{Entity: "s1|A", Date: d2, Values: map[string]float64{"price": 1.5}})

	n, err := writer.SaveSeries(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	update := series.NewFrame("quantity")
	update.AppendRow(series.Row{Entity: "s1|A", Date: d1, Values: map[string]float64{"quantity": 9}})
	_, err = writer.SaveSeries(context.Background(), update)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM daily_sales"))
	assert.Equal(t, 2, count, "conflicting rows are updated in place")

	loaded, err := newTestLoader(t, db).LoadSeries(context.Background(), ports.SeriesQuery{})
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, 9.0, loaded.Value("quantity", 0))
	assert.True(t, series.IsMissing(loaded.Value("price", 0)), "columns absent from the update become NULL")
	assert.True(t, series.IsMissing(loaded.Value("quantity", 1)))
	assert.Equal(t, 1.5, loaded.Value("price", 1))
}

func TestSeriesWriter_RejectsMismatchedEntity(t *testing.T) {
	db := newTestDB(t)
	logger, _ := logtest.NewNullLogger()
	writer, err := NewSeriesWriter(db, DefaultSeriesTable(), logger)
	require.NoError(t, err)

	d, _ := core.ParseDate("2024-03-01")
	f := series.NewFrame("quantity")
	f.AppendRow(series.Row{Entity: "only-one-part", Date: d, Values: map[string]float64{"quantity": 1}})

	_, err = writer.SaveSeries(context.Background(), f)
	assert.ErrorIs(t, err, core.ErrData)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM daily_sales"))
	assert.Zero(t, count)
}
