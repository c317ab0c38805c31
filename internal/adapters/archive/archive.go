// Package archive journals scored reports in SQLite so the in-memory boards
// can be rebuilt after a restart.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/sweeply/tidyboard/internal/domain/model"
	"github.com/sweeply/tidyboard/pkg/logger"
	"github.com/sweeply/tidyboard/pkg/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// defaultBusyTimeout bounds how long a write waits on a locked database.
const defaultBusyTimeout = 5 * time.Second

// SQLiteArchive is an append-only report journal backed by SQLite.
// Rows carry the points computed at processing time, so replay restores
// exact tallies without re-scoring.
type SQLiteArchive struct {
	db          *sql.DB
	busyTimeout time.Duration

	reports atomic.Int64

	// Logging
	logger logger.Logger
}

// Open opens (or creates) the journal at path and applies pending migrations.
func Open(path string, opts ...Option) (*SQLiteArchive, error) {
	a := &SQLiteArchive{
		busyTimeout: defaultBusyTimeout,
		logger:      logger.Get().Named("archive"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(a)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	// Single writer; replay runs before the workers start consuming.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", a.busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	a.db = db

	var count int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM reports`).Scan(&count); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("count archived reports: %w", err)
	}
	a.reports.Store(count)
	metrics.SetArchiveReports(int(count))

	return a, nil
}

// runMigrations applies the embedded migrations to the open database.
func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Append journals one scored report. Appending the same report id again is a
// no-op, which keeps retried and replayed appends idempotent.
func (a *SQLiteArchive) Append(ctx context.Context, r model.Report, points float64) error {
	query := `INSERT OR IGNORE INTO reports (
		report_id, device_id, area, kind, severity, latitude, longitude, reported_at, points
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	args := []any{r.ReportID, r.DeviceID, r.Area, r.Kind, r.Severity, r.Latitude, r.Longitude, formatTime(r.TS), points}

	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		metrics.IncArchiveAppendError()
		metrics.IncComponentError("archive", "append_error")
		return fmt.Errorf("append report %s: %w", r.ReportID, err)
	}

	if affected, _ := res.RowsAffected(); affected == 1 {
		metrics.IncArchiveAppend()
		metrics.SetArchiveReports(int(a.reports.Add(1)))
	}
	return nil
}

// Replay streams the journal in insertion order, oldest first. The points
// handed to fn are the points computed when the report was first processed;
// callers must not re-score.
func (a *SQLiteArchive) Replay(ctx context.Context, fn func(r model.Report, points float64) error) error {
	start := time.Now()
	defer func() {
		metrics.ObserveArchiveReplay(float64(time.Since(start).Milliseconds()))
	}()

	query := `SELECT report_id, device_id, area, kind, severity, latitude, longitude, reported_at, points
		FROM reports ORDER BY seq ASC`
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("replay query: %w", err)
	}
	defer rows.Close()

	replayed := 0
	for rows.Next() {
		var (
			r          model.Report
			reportedAt string
			points     float64
		)
		if err := rows.Scan(&r.ReportID, &r.DeviceID, &r.Area, &r.Kind, &r.Severity, &r.Latitude, &r.Longitude, &reportedAt, &points); err != nil {
			return fmt.Errorf("replay scan: %w", err)
		}

		ts, err := parseTime(reportedAt)
		if err != nil {
			return fmt.Errorf("replay report %s: %w", r.ReportID, err)
		}
		r.TS = ts

		if err := fn(r, points); err != nil {
			return fmt.Errorf("replay report %s: %w", r.ReportID, err)
		}
		replayed++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("replay rows: %w", err)
	}

	a.logger.Info(ctx, "journal replayed", logger.Int("reports", replayed))
	return nil
}

// Count returns the number of journaled reports.
func (a *SQLiteArchive) Count(ctx context.Context) (int, error) {
	var count int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count archived reports: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

// formatTime renders a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a stored timestamp back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
