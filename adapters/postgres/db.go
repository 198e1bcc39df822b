package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to url and pings it. SQLite databases are limited to one connection so that
// ":memory:" stays a single database.
func Open(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
		db, err := sqlx.ConnectContext(ctx, DriverPostgres, url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return db, nil
	case DriverSQLite:
		raw, err := sql.Open(DriverSQLite, url)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		raw.SetMaxOpenConns(1)
		// sqlx picks the bindvar style from the driver name
		db := sqlx.NewDb(raw, "sqlite3")
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
