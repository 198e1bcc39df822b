package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"demandcast/domain/core"
	"demandcast/domain/series"
)

// SeriesWriter upserts frames into a SeriesTable keyed by entity columns and date.
type SeriesWriter struct {
	db    *sqlx.DB
	table SeriesTable
	log   logrus.FieldLogger
}

func NewSeriesWriter(db *sqlx.DB, table SeriesTable, log logrus.FieldLogger) (*SeriesWriter, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	return &SeriesWriter{db: db, table: table, log: log.WithField("component", "series_writer")}, nil
}

// SaveSeries writes every row of f in one transaction. Value columns the frame lacks are
// stored as NULL. It returns the number of rows written.
func (w *SeriesWriter) SaveSeries(ctx context.Context, f *series.Frame) (int, error) {
	t := w.table
	query := w.db.Rebind(w.upsertQuery())

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < f.Len(); i++ {
		parts := f.Entity(i).Parts()
		if len(parts) != len(t.EntityColumns) {
			return 0, fmt.Errorf("%w: entity %q does not have %d parts", core.ErrData, f.Entity(i), len(t.EntityColumns))
		}
		args := make([]interface{}, 0, len(parts)+1+len(t.ValueColumns))
		for _, p := range parts {
			args = append(args, p)
		}
		args = append(args, core.FormatDate(f.Date(i)))
		for _, c := range t.ValueColumns {
			if v := f.Value(c, i); !series.IsMissing(v) {
				args = append(args, v)
			} else {
				args = append(args, nil)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("failed to write %s %s: %w", f.Entity(i), core.FormatDate(f.Date(i)), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit series: %w", err)
	}
	w.log.WithField("rows", f.Len()).Info("Saved series")
	return f.Len(), nil
}

func (w *SeriesWriter) upsertQuery() string {
	t := w.table
	key := append(append([]string{}, t.EntityColumns...), t.DateColumn)
	cols := append(append([]string{}, key...), t.ValueColumns...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		t.Name, strings.Join(cols, ", "), marks, strings.Join(key, ", "))
	if len(t.ValueColumns) == 0 {
		return query + " DO NOTHING"
	}
	sets := make([]string, len(t.ValueColumns))
	for i, c := range t.ValueColumns {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
	}
	return query + " DO UPDATE SET " + strings.Join(sets, ", ")
}
