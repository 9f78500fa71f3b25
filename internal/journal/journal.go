// Package journal persists invocation outcomes to SQLite. It exists for
// operators, not for correctness: the server runs identically with the
// journal disabled, and a write failure never reaches the caller.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/solvergate/solvergate/internal/governor"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id  TEXT NOT NULL,
	tool        TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations(tool);
CREATE INDEX IF NOT EXISTS idx_invocations_created ON invocations(created_at);
`

// Entry is one journaled invocation.
type Entry struct {
	ID         int64  `json:"id"`
	RequestID  string `json:"request_id"`
	Tool       string `json:"tool"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

// Journal is a SQLite-backed outcome log.
type Journal struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates (or reuses) the journal database at path.
func Open(path string, log *zap.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	// modernc sqlite serializes per connection; a single connection
	// sidesteps table-lock contention between recorder goroutines.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &Journal{db: db, log: log}, nil
}

// Record implements governor.Recorder. Failures are logged and dropped.
func (j *Journal) Record(o governor.Outcome) {
	detail := ""
	switch {
	case o.Err != nil:
		detail = o.Err.Error()
	case o.Reason != "":
		detail = string(o.Reason)
	}
	_, err := j.db.Exec(
		`INSERT INTO invocations (request_id, tool, outcome, detail, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		o.RequestID, o.Tool, o.Label(), detail, o.Duration.Milliseconds(),
	)
	if err != nil {
		j.log.Warn("journal write failed", zap.Error(err))
	}
}

// Recent returns the newest n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	rows, err := j.db.Query(
		`SELECT id, request_id, tool, outcome, detail, duration_ms, created_at
		 FROM invocations ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Tool, &e.Outcome, &e.Detail, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
