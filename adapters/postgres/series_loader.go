package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"demandcast/domain/core"
	"demandcast/domain/series"
	"demandcast/ports"
)

// SeriesTable describes where daily observations live. Identifiers are validated before they are
// interpolated into SQL.
type SeriesTable struct {
	Name          string
	EntityColumns []string
	DateColumn    string
	ValueColumns  []string
}

// DefaultSeriesTable is the daily_sales table created by the migrations.
func DefaultSeriesTable() SeriesTable {
	return SeriesTable{
		Name:          "daily_sales",
		EntityColumns: []string{"store_id", "sku"},
		DateColumn:    "sale_date",
		ValueColumns:  []string{"quantity", "price", "on_promotion", "inventory"},
	}
}

func (t SeriesTable) validate() error {
	if len(t.EntityColumns) == 0 {
		return core.NewValidationError("series table", "at least one entity column is required")
	}
	idents := append([]string{t.Name, t.DateColumn}, t.EntityColumns...)
	for _, id := range append(idents, t.ValueColumns...) {
		if !isIdentifier(id) {
			return core.NewValidationError("series table", fmt.Sprintf("invalid identifier %q", id))
		}
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// seriesLoader reads a SeriesTable through sqlx. It works against PostgreSQL (lib/pq) and SQLite.
type seriesLoader struct {
	db    *sqlx.DB
	table SeriesTable
	log   logrus.FieldLogger
}

// NewSeriesLoader creates a SQL-backed series loader.
func NewSeriesLoader(db *sqlx.DB, table SeriesTable, log logrus.FieldLogger) (ports.SeriesLoader, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	return &seriesLoader{db: db, table: table, log: log.WithField("component", "series_loader")}, nil
}

func (l *seriesLoader) LoadSeries(ctx context.Context, q ports.SeriesQuery) (*series.Frame, error) {
	query, args, err := l.buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	frame := series.NewFrame(l.table.ValueColumns...)
	nEntity := len(l.table.EntityColumns)
	for rows.Next() {
		parts := make([]sql.NullString, nEntity)
		var date sqlDate
		values := make([]sql.NullFloat64, len(l.table.ValueColumns))

		dest := make([]interface{}, 0, nEntity+1+len(values))
		for i := range parts {
			dest = append(dest, &parts[i])
		}
		dest = append(dest, &date)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}

		keyParts := make([]string, nEntity)
		for i, p := range parts {
			keyParts[i] = p.String
		}
		row := series.Row{
			Entity: series.NewEntityKey(keyParts...),
			Date:   date.Time,
			Values: make(map[string]float64, len(values)),
		}
		for i, v := range values {
			if v.Valid {
				row.Values[l.table.ValueColumns[i]] = v.Float64
			}
		}
		frame.AppendRow(row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate series rows: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"rows":         frame.Len(),
		"entity_count": len(frame.EntityKeys()),
	}).Debug("Loaded series")
	return frame, nil
}

func (l *seriesLoader) buildQuery(q ports.SeriesQuery) (string, []interface{}, error) {
	t := l.table
	cols := append(append(append([]string{}, t.EntityColumns...), t.DateColumn), t.ValueColumns...)

	var where []string
	var args []interface{}
	if len(q.EntityIDs) > 0 {
		keys := make([]string, len(q.EntityIDs))
		for i, k := range q.EntityIDs {
			keys[i] = k.String()
		}
		where = append(where, fmt.Sprintf("(%s) IN (?)", strings.Join(t.EntityColumns, " || '|' || ")))
		args = append(args, keys)
	}
	if q.Start != nil {
		where = append(where, t.DateColumn+" >= ?")
		args = append(args, core.FormatDate(*q.Start))
	}
	if q.End != nil {
		where = append(where, t.DateColumn+" <= ?")
		args = append(args, core.FormatDate(*q.End))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), t.Name)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s, %s", strings.Join(t.EntityColumns, ", "), t.DateColumn)

	if len(q.EntityIDs) > 0 {
		var err error
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return "", nil, fmt.Errorf("failed to expand entity filter: %w", err)
		}
	}
	return l.db.Rebind(query), args, nil
}

// sqlDate accepts the date representations drivers return for DATE columns.
type sqlDate struct {
	time.Time
}

func (d *sqlDate) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = core.TruncateDay(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		return fmt.Errorf("%w: null date", core.ErrData)
	}
	return fmt.Errorf("cannot scan %T into a date", src)
}

func (d *sqlDate) parse(s string) error {
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	t, err := core.ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
