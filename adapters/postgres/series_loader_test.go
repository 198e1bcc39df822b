package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandcast/adapters/db/postgres/migrations"
	"demandcast/domain/core"
	"demandcast/domain/series"
	"demandcast/ports"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger, _ := logtest.NewNullLogger()
	applied, err := migrations.NewMigrator(db, logger).Up(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"001"}, applied)
	return db
}

func insertSale(t *testing.T, db *sqlx.DB, store, sku, date string, qty, price interface{}) {
	t.Helper()
	_, err := db.Exec(db.Rebind(`INSERT INTO daily_sales (store_id, sku, sale_date, quantity, price, on_promotion, inventory)
		VALUES (?, ?, ?, ?, ?, 0, 50)`), store, sku, date, qty, price)
	require.NoError(t, err)
}

func newTestLoader(t *testing.T, db *sqlx.DB) ports.SeriesLoader {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	loader, err := NewSeriesLoader(db, DefaultSeriesTable(), logger)
	require.NoError(t, err)
	return loader
}

func TestSeriesLoader_LoadsOrderedFrame(t *testing.T) {
	db := newTestDB(t)
	insertSale(t, db, "s2", "A", "2024-01-01", 4.0, 2.5)
	insertSale(t, db, "s1", "A", "2024-01-02", 7.0, 2.5)
	insertSale(t, db, "s1", "A", "2024-01-01", nil, 2.5)
	insertSale(t, db, "s1", "B", "2024-01-01", 1.0, nil)

	frame, err := newTestLoader(t, db).LoadSeries(context.Background(), ports.SeriesQuery{})
	require.NoError(t, err)
	require.Equal(t, 4, frame.Len())

	assert.Equal(t, []series.EntityKey{"s1|A", "s1|B", "s2|A"}, frame.EntityKeys())
	assert.Equal(t, series.EntityKey("s1|A"), frame.Entity(0))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), frame.Date(0))
	assert.True(t, series.IsMissing(frame.Value("quantity", 0)), "NULL quantity is missing")
	assert.Equal(t, 7.0, frame.Value("quantity", 1))
	assert.True(t, series.IsMissing(frame.Value("price", 2)))
	assert.Equal(t, 50.0, frame.Value("inventory", 3))
}

func TestSeriesLoader_Filters(t *testing.T) {
	db := newTestDB(t)
	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"} {
		insertSale(t, db, "s1", "A", d, 1.0, 1.0)
		insertSale(t, db, "s2", "A", d, 2.0, 1.0)
		insertSale(t, db, "s3", "A", d, 3.0, 1.0)
	}
	loader := newTestLoader(t, db)

	start, _ := core.ParseDate("2024-01-02")
	end, _ := core.ParseDate("2024-01-03")
	frame, err := loader.LoadSeries(context.Background(), ports.SeriesQuery{
		EntityIDs: []series.EntityKey{"s1|A", "s3|A"},
		Start:     &start,
		End:       &end,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, frame.Len())
	assert.Equal(t, []series.EntityKey{"s1|A", "s3|A"}, frame.EntityKeys())
	dr, ok := frame.DateRange()
	require.True(t, ok)
	assert.Equal(t, core.DateRange{Start: start, End: end}, dr)

	empty, err := loader.LoadSeries(context.Background(), ports.SeriesQuery{EntityIDs: []series.EntityKey{"nope"}})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestNewSeriesLoader_RejectsBadIdentifiers(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	table := DefaultSeriesTable()
	table.Name = "daily_sales; DROP TABLE x"
	_, err := NewSeriesLoader(nil, table, logger)
	assert.True(t, core.IsConfigError(err))

	table = DefaultSeriesTable()
	table.EntityColumns = nil
	_, err = NewSeriesLoader(nil, table, logger)
	assert.True(t, core.IsConfigError(err))
}

func TestSQLDate_Scan(t *testing.T) {
	var d sqlDate
	require.NoError(t, d.Scan("2024-02-29"))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d.Time)

	require.NoError(t, d.Scan([]byte("2024-03-01T00:00:00Z")))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d.Time)

	require.NoError(t, d.Scan(time.Date(2024, 3, 2, 0, 0, 0, 0, time.FixedZone("", 0))))
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), d.Time)

	assert.Error(t, d.Scan(nil))
	assert.Error(t, d.Scan(42))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "root@/sales")
	assert.ErrorContains(t, err, `unsupported database driver "mysql"`)
}
