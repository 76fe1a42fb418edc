// Package history keeps a SQLite log of per-database extraction outcomes so
// past runs can be listed with "schemadoc history".
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	engine        TEXT NOT NULL,
	host          TEXT,
	database_name TEXT NOT NULL,
	status        TEXT NOT NULL,
	executed_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
	duration_ms   INTEGER,
	object_count  INTEGER,
	output_dir    TEXT,
	message       TEXT
)`

// Entry is the recorded outcome of one database in one run.
type Entry struct {
	ID           int64
	Engine       string
	Host         string
	DatabaseName string
	Status       string
	ExecutedAt   time.Time
	DurationMS   int64
	ObjectCount  int64
	OutputDir    string
	Message      string
}

// History provides SQLite-backed run history storage.
type History struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and ensures the
// schema exists.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}

	return &History{db: db}, nil
}

// Add inserts a new history entry. A zero ExecutedAt records the current
// time. Calling Add on a nil History is a no-op.
func (h *History) Add(entry Entry) error {
	if h == nil {
		return nil
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now().UTC()
	}
	_, err := h.db.Exec(
		`INSERT INTO runs (engine, host, database_name, status, executed_at, duration_ms, object_count, output_dir, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Engine,
		entry.Host,
		entry.DatabaseName,
		entry.Status,
		entry.ExecutedAt,
		entry.DurationMS,
		entry.ObjectCount,
		entry.OutputDir,
		entry.Message,
	)
	if err != nil {
		return fmt.Errorf("history add: %w", err)
	}
	return nil
}

// Search returns entries whose database name matches the given pattern
// using SQL LIKE. Results are ordered by most recent first, limited to limit
// rows.
func (h *History) Search(pattern string, limit int) ([]Entry, error) {
	rows, err := h.db.Query(
		`SELECT id, engine, host, database_name, status, executed_at, duration_ms, object_count, output_dir, message
		 FROM runs
		 WHERE database_name LIKE ?
		 ORDER BY executed_at DESC, id DESC
		 LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the most recent entries, limited to limit rows.
func (h *History) Recent(limit int) ([]Entry, error) {
	rows, err := h.db.Query(
		`SELECT id, engine, host, database_name, status, executed_at, duration_ms, object_count, output_dir, message
		 FROM runs
		 ORDER BY executed_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Clear deletes all entries.
func (h *History) Clear() error {
	if _, err := h.db.Exec(`DELETE FROM runs`); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection. Calling Close on a nil
// History is a no-op.
func (h *History) Close() error {
	if h == nil {
		return nil
	}
	return h.db.Close()
}

// scanEntries reads all rows from the result set into a slice of Entry.
func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e                        Entry
			host, outputDir, message sql.NullString
		)
		if err := rows.Scan(
			&e.ID,
			&e.Engine,
			&host,
			&e.DatabaseName,
			&e.Status,
			&e.ExecutedAt,
			&e.DurationMS,
			&e.ObjectCount,
			&outputDir,
			&message,
		); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		e.Host = host.String
		e.OutputDir = outputDir.String
		e.Message = message.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return entries, nil
}
