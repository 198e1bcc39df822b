package migrations

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

//go:embed *.sql
var schemaFiles embed.FS

// Migrator applies the embedded schema files in version order.
type Migrator struct {
	db  *sqlx.DB
	fs  fs.FS
	log logrus.FieldLogger
}

// NewMigrator creates a migrator over the embedded schema.
func NewMigrator(db *sqlx.DB, log logrus.FieldLogger) *Migrator {
	return &Migrator{db: db, fs: schemaFiles, log: log.WithField("component", "migrator")}
}

// MigrationFile is one versioned schema file, e.g. 001_daily_sales.sql.
type MigrationFile struct {
	Version string
	Name    string
}

// MigrationStatus reports whether a file has been applied.
type MigrationStatus struct {
	MigrationFile
	Applied  bool
	Checksum string
}

// Up executes all pending migrations. It returns the versions it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := m.findMigrationFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}

	var done []string
	for _, file := range files {
		if _, ok := applied[file.Version]; ok {
			continue
		}
		if err := m.applyMigration(ctx, file); err != nil {
			return done, fmt.Errorf("failed to apply migration %s: %w", file.Version, err)
		}
		m.log.WithField("version", file.Version).Info("Applied migration")
		done = append(done, file.Version)
	}
	return done, nil
}

// Status lists every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := m.findMigrationFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}

	out := make([]MigrationStatus, len(files))
	for i, file := range files {
		sum, ok := applied[file.Version]
		out[i] = MigrationStatus{MigrationFile: file, Applied: ok, Checksum: sum}
	}
	return out, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// getAppliedMigrations maps applied versions to their checksums.
func (m *Migrator) getAppliedMigrations(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Version  string `db:"version"`
		Checksum string `db:"checksum"`
	}
	if err := m.db.SelectContext(ctx, &rows, "SELECT version, checksum FROM schema_migrations"); err != nil {
		return nil, err
	}
	applied := make(map[string]string, len(rows))
	for _, r := range rows {
		applied[r.Version] = r.Checksum
	}
	return applied, nil
}

func calculateChecksum(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func (m *Migrator) findMigrationFiles() ([]MigrationFile, error) {
	names, err := fs.Glob(m.fs, "*.sql")
	if err != nil {
		return nil, err
	}

	var files []MigrationFile
	for _, name := range names {
		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}
		files = append(files, MigrationFile{Version: parts[0], Name: name})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func (m *Migrator) applyMigration(ctx context.Context, file MigrationFile) error {
	body, err := fs.ReadFile(m.fs, file.Name)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)"),
		file.Version, calculateChecksum(body))
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
