package db

import (
	"database/sql"
	"fmt"

	"github.com/LenBoer/distributed-storage-visualization/internal/fsstat"
)

// SaveFileStats stores the walker output of a run
func (d *DB) SaveFileStats(runID string, stats []fsstat.FileStat) error {
	err := d.withTx(func(tx *sql.Tx) error {
		return insertEach(tx, `
			INSERT INTO file_stats (run_id, path, size, links, uid, gid, atime, mtime, ctime, device)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, len(stats), func(i int) []any {
			s := stats[i]
			return []any{
				runID, s.Path, s.Size, s.Links, s.UID, s.GID,
				s.Atime.UTC(), s.Mtime.UTC(), s.Ctime.UTC(), int64(s.Device),
			}
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save file stats: %w", err)
	}
	return nil
}

// GetFileStats returns the file records of a run ordered by path
func (d *DB) GetFileStats(runID string) ([]fsstat.FileStat, error) {
	rows, err := d.conn.Query(`
		SELECT path, size, links, uid, gid, atime, mtime, ctime, device
		FROM file_stats
		WHERE run_id = ?
		ORDER BY path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query file stats: %w", err)
	}
	defer rows.Close()

	var stats []fsstat.FileStat
	for rows.Next() {
		var s fsstat.FileStat
		var device int64
		err := rows.Scan(&s.Path, &s.Size, &s.Links, &s.UID, &s.GID, &s.Atime, &s.Mtime, &s.Ctime, &device)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file stat: %w", err)
		}
		s.Device = uint64(device)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
