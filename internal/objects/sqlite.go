package objects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
	project    TEXT PRIMARY KEY,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS project_objects (
	project  TEXT NOT NULL REFERENCES projects(project) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	object   TEXT NOT NULL,
	PRIMARY KEY (project, position)
);
`

// SQLiteStore persists lists in .rvmbridge/state/objects.db so edits survive
// between runs.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens (and migrates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("objects: ensure state dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("objects: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("objects: busy_timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("objects: migrate %s: %w", path, err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, projectCode string) (List, bool, error) {
	key := projectKey(projectCode)
	var updated string
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM projects WHERE project = ?`, key).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("objects: load %s: %w", key, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT object FROM project_objects WHERE project = ? ORDER BY position`, key)
	if err != nil {
		return nil, false, fmt.Errorf("objects: load %s: %w", key, err)
	}
	defer rows.Close()

	list := List{}
	for rows.Next() {
		var obj string
		if err := rows.Scan(&obj); err != nil {
			return nil, false, fmt.Errorf("objects: scan %s: %w", key, err)
		}
		list = append(list, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("objects: load %s: %w", key, err)
	}
	return list, true, nil
}

// Set implements Store. The previous list is replaced atomically.
func (s *SQLiteStore) Set(ctx context.Context, projectCode string, list List) (err error) {
	key := projectKey(projectCode)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("objects: begin %s: %w", key, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stamp := s.now().UTC().Format(time.RFC3339)
	if _, err = tx.ExecContext(ctx, `INSERT INTO projects (project, updated_at) VALUES (?, ?)
		ON CONFLICT(project) DO UPDATE SET updated_at = excluded.updated_at`, key, stamp); err != nil {
		return fmt.Errorf("objects: save %s: %w", key, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM project_objects WHERE project = ?`, key); err != nil {
		return fmt.Errorf("objects: save %s: %w", key, err)
	}
	for i, obj := range list {
		if _, err = tx.ExecContext(ctx, `INSERT INTO project_objects (project, position, object) VALUES (?, ?, ?)`, key, i, obj); err != nil {
			return fmt.Errorf("objects: save %s: %w", key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("objects: commit %s: %w", key, err)
	}
	return nil
}
