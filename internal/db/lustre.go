package db

import (
	"database/sql"
	"fmt"

	"github.com/LenBoer/distributed-storage-visualization/internal/export"
	"github.com/LenBoer/distributed-storage-visualization/internal/lustre"
)

// jsonColumn renders one *_json column value per item before a transaction
// starts, so an encoding failure never reaches a NOT NULL column
func jsonColumn[T any](items []T, value func(T) any) ([]string, error) {
	docs := make([]string, len(items))
	for i, item := range items {
		b, err := export.Marshal(value(item))
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		docs[i] = string(b)
	}
	return docs, nil
}

// SaveUsage stores the target rows and filesystem summaries of an lfs df run
func (d *DB) SaveUsage(runID string, usage *lustre.Usage) error {
	err := d.withTx(func(tx *sql.Tx) error {
		err := insertEach(tx, `
			INSERT INTO usage_rows (
				run_id, position, target, storage_type, blocks, used, available,
				use_percent, mounted_on, partition_name
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, len(usage.Rows), func(i int) []any {
			r := usage.Rows[i]
			return []any{
				runID, i, r.ID, string(r.Kind), r.Blocks, r.Used, r.Available,
				r.UsePercent, r.MountPoint, r.Partition,
			}
		})
		if err != nil {
			return fmt.Errorf("usage rows: %w", err)
		}

		return insertEach(tx, `
			INSERT INTO fs_summaries (run_id, position, name, blocks, used, available, use_percent)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, len(usage.Summaries), func(i int) []any {
			s := usage.Summaries[i]
			return []any{runID, i, s.Name, s.Blocks, s.Used, s.Available, s.UsePercent}
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save usage: %w", err)
	}
	return nil
}

// GetUsage loads the lfs df records of a run in report order
func (d *DB) GetUsage(runID string) (*lustre.Usage, error) {
	usage := &lustre.Usage{}

	rows, err := d.conn.Query(`
		SELECT target, storage_type, blocks, used, available, use_percent, mounted_on, partition_name
		FROM usage_rows
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r lustre.UsageRow
		var kind string
		if err := rows.Scan(&r.ID, &kind, &r.Blocks, &r.Used, &r.Available, &r.UsePercent, &r.MountPoint, &r.Partition); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		r.Kind = lustre.StorageKind(kind)
		usage.Rows = append(usage.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sums, err := d.conn.Query(`
		SELECT name, blocks, used, available, use_percent
		FROM fs_summaries
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer sums.Close()

	for sums.Next() {
		var s lustre.FilesystemSummary
		if err := sums.Scan(&s.Name, &s.Blocks, &s.Used, &s.Available, &s.UsePercent); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		usage.Summaries = append(usage.Summaries, s)
	}
	return usage, sums.Err()
}

// SaveLayouts stores one JSON document per stripe layout
func (d *DB) SaveLayouts(runID string, layouts []*lustre.StripeLayout) error {
	docs, err := jsonColumn(layouts, func(l *lustre.StripeLayout) any { return l })
	if err != nil {
		return fmt.Errorf("failed to encode layouts: %w", err)
	}

	err = d.withTx(func(tx *sql.Tx) error {
		return insertEach(tx, `
			INSERT INTO stripe_layouts (run_id, position, filename, progressive, layout_json)
			VALUES (?, ?, ?, ?, ?)
		`, len(layouts), func(i int) []any {
			l := layouts[i]
			progressive := 0
			if l.Progressive {
				progressive = 1
			}
			return []any{runID, i, nullString(l.Filename), progressive, docs[i]}
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save layouts: %w", err)
	}
	return nil
}

// GetLayouts loads the stripe layouts of a run in the order they were saved
func (d *DB) GetLayouts(runID string) ([]*lustre.StripeLayout, error) {
	rows, err := d.conn.Query(`
		SELECT layout_json FROM stripe_layouts
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query layouts: %w", err)
	}
	defer rows.Close()

	var layouts []*lustre.StripeLayout
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan layout: %w", err)
		}
		var l lustre.StripeLayout
		if err := export.Unmarshal([]byte(doc), &l); err != nil {
			return nil, fmt.Errorf("failed to decode layout: %w", err)
		}
		layouts = append(layouts, &l)
	}
	return layouts, rows.Err()
}
