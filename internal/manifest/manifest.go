// Package manifest persists extraction results to a SQLite database so
// successive runs can be inspected outside Studio.
package manifest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"rbxtract/internal/cas"
	"rbxtract/internal/extract"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source      TEXT    NOT NULL,
	script_count INTEGER NOT NULL,
	digest      TEXT    NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scripts (
	run_id         INTEGER NOT NULL REFERENCES runs(id),
	path           TEXT    NOT NULL,
	logical_path   TEXT    NOT NULL,
	class          TEXT    NOT NULL,
	service        TEXT    NOT NULL,
	content_digest TEXT    NOT NULL,
	size           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scripts_run ON scripts(run_id);
`

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
}

// Run is one recorded extraction run.
type Run struct {
	ID          int64
	Source      string
	ScriptCount int
	Digest      string
	CreatedAt   int64
}

// Open opens or creates the manifest database at the given path, creating
// parent directories as needed.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating manifest directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening manifest database: %w", err)
	}

	// Fail early if connection is bad
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping manifest db: %w", err)
	}

	// Enable WAL mode
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Wait up to 5s on lock instead of failing immediately
	conn.Exec("PRAGMA busy_timeout=5000")

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying manifest schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// RecordRun inserts one run row plus one row per extracted script, all in a
// single transaction, and returns the run ID. The run digest covers the
// ordered content digests of the scripts.
func (db *DB) RecordRun(source string, records []extract.Record) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	digests := make([]string, len(records))
	for i, rec := range records {
		digests[i] = rec.Digest
	}

	result, err := tx.Exec(
		"INSERT INTO runs (source, script_count, digest, created_at) VALUES (?, ?, ?, ?)",
		source, len(records), cas.RunDigest(digests), cas.NowMs(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO scripts (run_id, path, logical_path, class, service, content_digest, size) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return 0, fmt.Errorf("preparing script insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(runID, rec.Path, rec.LogicalPath, rec.Class, rec.Service, rec.Digest, rec.Size); err != nil {
			return 0, fmt.Errorf("inserting script %s: %w", rec.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// LastRun returns the most recent run, or nil when the manifest is empty.
func (db *DB) LastRun() (*Run, error) {
	row := db.conn.QueryRow(
		"SELECT id, source, script_count, digest, created_at FROM runs ORDER BY id DESC LIMIT 1",
	)
	var r Run
	if err := row.Scan(&r.ID, &r.Source, &r.ScriptCount, &r.Digest, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last run: %w", err)
	}
	return &r, nil
}

// ScriptCount returns the number of scripts recorded for a run.
func (db *DB) ScriptCount(runID int64) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM scripts WHERE run_id = ?", runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting scripts: %w", err)
	}
	return n, nil
}
