package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned for an unknown run id
var ErrRunNotFound = errors.New("run not found")

// CreateRun registers a new import and returns it with a fresh id
func (d *DB) CreateRun(kind, source string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}

	_, err := d.conn.Exec(`
		INSERT INTO runs (id, kind, source, created_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Kind, nullString(run.Source), run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// GetRun returns a run by id
func (d *DB) GetRun(id string) (*Run, error) {
	rows, err := d.conn.Query(`
		SELECT id, kind, source, created_at
		FROM runs WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return runs[0], nil
}

// ListRuns returns the most recent runs first, optionally of one kind only
func (d *DB) ListRuns(kind string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(`
		SELECT id, kind, source, created_at
		FROM runs
		WHERE ? = '' OR kind = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, kind, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// DeleteRunsBefore removes runs, and their records, older than the cutoff
func (d *DB) DeleteRunsBefore(cutoff time.Time) (int64, error) {
	result, err := d.conn.Exec(`DELETE FROM runs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	return result.RowsAffected()
}

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		var run Run
		var source sql.NullString

		if err := rows.Scan(&run.ID, &run.Kind, &source, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Source = source.String

		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
