// Package store provides SQLite persistence for sessions, transcripts,
// and the records attached to them.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database shared by all repositories.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS clients (
	client_id         TEXT PRIMARY KEY,
	customer_id       TEXT NOT NULL,
	name              TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	unique_identifier TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_clients_customer ON clients(customer_id);

CREATE TABLE IF NOT EXISTS sessions (
	session_id       TEXT PRIMARY KEY,
	customer_id      TEXT NOT NULL,
	client_id        TEXT NOT NULL DEFAULT '',
	title            TEXT NOT NULL DEFAULT '',
	session_date     TIMESTAMP,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	audio_path       TEXT NOT NULL DEFAULT '',
	audio_format     TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'pending',
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sessions_customer ON sessions(customer_id);

CREATE TABLE IF NOT EXISTS transcripts (
	session_id       TEXT PRIMARY KEY REFERENCES sessions(session_id) ON DELETE CASCADE,
	content          TEXT NOT NULL DEFAULT '',
	file_reference   TEXT NOT NULL DEFAULT '',
	language         TEXT NOT NULL DEFAULT 'en',
	confidence_score REAL NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS notes (
	note_id    TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	content    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_notes_session ON notes(session_id);

CREATE TABLE IF NOT EXISTS issues (
	issue_id   TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	title      TEXT NOT NULL DEFAULT '',
	severity   TEXT NOT NULL DEFAULT 'medium',
	status     TEXT NOT NULL DEFAULT 'open',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_issues_session ON issues(session_id);

CREATE TABLE IF NOT EXISTS followups (
	followup_id TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	description TEXT NOT NULL DEFAULT '',
	due_date    TIMESTAMP,
	completed   INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_followups_session ON followups(session_id);
`

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
