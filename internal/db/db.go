package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultPath is the default database location
const DefaultPath = "/var/lib/iobat/reports.db"

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	path string
}

// New opens or creates the SQLite database at the given path
func New(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys are per connection in SQLite
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	db := &DB{conn: conn, path: path}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// migrate runs the database schema migrations
func (d *DB) migrate() error {
	_, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	var version int
	err = d.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return err
	}

	migrations := []string{
		migrationV1,
		migrationV2,
	}

	for i, migration := range migrations {
		v := i + 1
		if v <= version {
			continue
		}

		tx, err := d.conn.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(migration); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d failed: %w", v, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// withTx runs fn in a transaction, rolled back when fn fails
func (d *DB) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// insertEach prepares query once and executes it with the args of every row
func insertEach(tx *sql.Tx, query string, n int, args func(i int) []any) error {
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range n {
		if _, err := stmt.Exec(args(i)...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// migrationV1 creates the runs table and the ceph record tables
const migrationV1 = `
-- One row per imported report
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    source TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_time ON runs(created_at);

-- CRUSH hierarchy, in report order
CREATE TABLE IF NOT EXISTS crush_nodes (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    node_id TEXT NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    bucket_type TEXT,
    device_class TEXT,
    parent_id TEXT,
    weight REAL NOT NULL,
    residual REAL,
    status TEXT,
    reweight REAL,
    primary_affinity REAL,
    PRIMARY KEY (run_id, node_id)
);

CREATE TABLE IF NOT EXISTS placement_groups (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    pgid TEXT NOT NULL,
    pool TEXT NOT NULL,
    pg_num INTEGER NOT NULL,
    objects INTEGER,
    bytes INTEGER,
    disk_log INTEGER,
    state TEXT,
    up_json TEXT,
    up_primary INTEGER,
    PRIMARY KEY (run_id, pgid)
);

CREATE INDEX IF NOT EXISTS idx_pgs_pool ON placement_groups(run_id, pool);

CREATE TABLE IF NOT EXISTS pools (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    pool_id INTEGER NOT NULL,
    objects INTEGER,
    bytes INTEGER,
    omap_bytes INTEGER,
    omap_keys INTEGER,
    log INTEGER,
    disk_log INTEGER,
    PRIMARY KEY (run_id, pool_id)
);

CREATE TABLE IF NOT EXISTS osds (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    osd_id INTEGER NOT NULL,
    used REAL,
    available REAL,
    total REAL,
    hb_peers_json TEXT,
    pg_sum INTEGER,
    primary_pg_sum INTEGER,
    PRIMARY KEY (run_id, osd_id)
);
`

// migrationV2 adds the lustre and file metadata tables
const migrationV2 = `
CREATE TABLE IF NOT EXISTS usage_rows (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    target TEXT NOT NULL,
    storage_type TEXT NOT NULL,
    blocks INTEGER,
    used INTEGER,
    available INTEGER,
    use_percent INTEGER,
    mounted_on TEXT,
    partition_name TEXT,
    PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_usage_partition ON usage_rows(run_id, partition_name);

CREATE TABLE IF NOT EXISTS fs_summaries (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    blocks INTEGER,
    used INTEGER,
    available INTEGER,
    use_percent INTEGER,
    PRIMARY KEY (run_id, position)
);

-- Layouts are stored as the JSON document the CLI prints
CREATE TABLE IF NOT EXISTS stripe_layouts (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    filename TEXT,
    progressive INTEGER DEFAULT 0,
    layout_json TEXT NOT NULL,
    PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_layouts_file ON stripe_layouts(filename);

CREATE TABLE IF NOT EXISTS file_stats (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    path TEXT NOT NULL,
    size INTEGER,
    links INTEGER,
    uid INTEGER,
    gid INTEGER,
    atime TIMESTAMP,
    mtime TIMESTAMP,
    ctime TIMESTAMP,
    device INTEGER,
    PRIMARY KEY (run_id, path)
);
`

// Run is one imported report
type Run struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Run kinds
const (
	KindCephTree   = "ceph-tree"
	KindCephPGDump = "ceph-pgdump"
	KindLustreDF   = "lustre-df"
	KindLustreFile = "lustre-getstripe"
	KindWalk       = "walk"
	KindCollect    = "collect"
)
