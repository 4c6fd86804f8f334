// Package snapshot persists and restores full orchestration state: the
// notebook, the roadmap, and the worker pool, keyed by run and phase.
// The backing store is SQLite (project-local .planweave/state.db).
package snapshot

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSnapshotNotFound indicates the requested snapshot id does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store wraps an SQLite database holding immutable snapshots.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultPath returns the project-local database path.
func DefaultPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".planweave", "state.db")
}

// Open opens the snapshot database at the given path, creating parent
// directories if needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

// migrate applies all pending schema migrations.
func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Snapshots},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Snapshots = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	phase TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	schema_version INTEGER NOT NULL,
	payload BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_run_id ON snapshots(run_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
`

// Meta describes a stored snapshot without its payload.
type Meta struct {
	ID            string
	RunID         string
	Phase         Phase
	CreatedAt     time.Time
	SchemaVersion int
}

// Put stores an immutable snapshot record. Snapshots are never updated.
func (s *Store) Put(meta Meta, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		INSERT INTO snapshots (id, run_id, phase, created_at, schema_version, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, meta.ID, meta.RunID, string(meta.Phase), formatTime(meta.CreatedAt), meta.SchemaVersion, payload)
	if err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// Get retrieves a snapshot record by id.
func (s *Store) Get(id string) (Meta, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.conn.QueryRow(`
		SELECT id, run_id, phase, created_at, schema_version, payload
		FROM snapshots WHERE id = ?
	`, id)

	var meta Meta
	var createdAt string
	var payload []byte
	err := row.Scan(&meta.ID, &meta.RunID, (*string)(&meta.Phase), &createdAt, &meta.SchemaVersion, &payload)
	if err == sql.ErrNoRows {
		return Meta{}, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return Meta{}, nil, fmt.Errorf("get snapshot: %w", err)
	}

	meta.CreatedAt, _ = parseTime(createdAt)
	return meta, payload, nil
}

// ListByRun lists snapshot metadata for a run, oldest first.
func (s *Store) ListByRun(runID string) ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`
		SELECT id, run_id, phase, created_at, schema_version
		FROM snapshots WHERE run_id = ? ORDER BY created_at, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	return scanMetas(rows)
}

// ListRuns lists the most recent snapshot for each known run, newest first.
func (s *Store) ListRuns() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`
		SELECT id, run_id, phase, MAX(created_at) AS created_at, schema_version
		FROM snapshots GROUP BY run_id ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	return scanMetas(rows)
}

// Latest returns the most recent snapshot metadata for a run.
func (s *Store) Latest(runID string) (Meta, error) {
	metas, err := s.ListByRun(runID)
	if err != nil {
		return Meta{}, err
	}
	if len(metas) == 0 {
		return Meta{}, fmt.Errorf("%w: no snapshots for run %s", ErrSnapshotNotFound, runID)
	}
	return metas[len(metas)-1], nil
}

// PurgeOldSnapshots deletes snapshots older than the given duration.
// Returns the number of snapshots deleted.
func (s *Store) PurgeOldSnapshots(olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := s.conn.Exec("DELETE FROM snapshots WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old snapshots: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

func scanMetas(rows *sql.Rows) ([]Meta, error) {
	var metas []Meta
	for rows.Next() {
		var meta Meta
		var createdAt string
		if err := rows.Scan(&meta.ID, &meta.RunID, (*string)(&meta.Phase), &createdAt, &meta.SchemaVersion); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		meta.CreatedAt, _ = parseTime(createdAt)
		metas = append(metas, meta)
	}
	return metas, nil
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
