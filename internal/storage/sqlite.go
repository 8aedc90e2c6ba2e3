package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rlmlabs/rlm/internal/policy"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	component  TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	subject    TEXT NOT NULL,
	actor      TEXT NOT NULL,
	reason     TEXT,
	pattern    TEXT
);

CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);
`

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStorage keeps audit records in a SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at path and runs migrations.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Several hook processes can write at once.
	if _, err := db.Exec("PRAGMA busy_timeout=2000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Append inserts rec.
func (s *SQLiteStorage) Append(rec Record) error {
	_, err := s.db.Exec(
		`INSERT INTO decisions (id, created_at, component, outcome, subject, actor, reason, pattern)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Time.UTC().Format(timeLayout), rec.Component, string(rec.Outcome),
		rec.Subject, rec.Actor, rec.Reason, rec.Pattern,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first.
func (s *SQLiteStorage) List(limit int) ([]Record, error) {
	query := `SELECT id, created_at, component, outcome, subject, actor, reason, pattern
		FROM decisions ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec             Record
			createdAt       string
			outcome         string
			reason, pattern sql.NullString
		)
		if err := rows.Scan(&rec.ID, &createdAt, &rec.Component, &outcome, &rec.Subject, &rec.Actor, &reason, &pattern); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Time, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		rec.Outcome = policy.Outcome(outcome)
		rec.Reason = reason.String
		rec.Pattern = pattern.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
