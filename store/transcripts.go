package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sessionscribe/sessionscribe/domain"
)

// UpsertTranscript writes the transcript for a session, replacing any
// previous one. Re-transcription overwrites rather than duplicates.
func (s *Store) UpsertTranscript(t *domain.Transcript) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO transcripts (session_id, content, file_reference, language, confidence_score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			content = excluded.content,
			file_reference = excluded.file_reference,
			language = excluded.language,
			confidence_score = excluded.confidence_score,
			updated_at = excluded.updated_at
	`, t.SessionID, t.Content, t.FileReference, t.Language, t.ConfidenceScore, now, now)
	if err != nil {
		return fmt.Errorf("upsert transcript: %w", err)
	}
	return nil
}

// GetTranscript returns the transcript for a session owned by customerID.
func (s *Store) GetTranscript(sessionID, customerID string) (*domain.Transcript, error) {
	row := s.db.QueryRow(`
		SELECT t.session_id, t.content, t.file_reference, t.language,
			t.confidence_score, t.created_at, t.updated_at
		FROM transcripts t
		JOIN sessions s ON s.session_id = t.session_id
		WHERE t.session_id = ? AND s.customer_id = ?
	`, sessionID, customerID)

	var t domain.Transcript
	err := row.Scan(&t.SessionID, &t.Content, &t.FileReference, &t.Language,
		&t.ConfidenceScore, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return &t, nil
}

// UpdateTranscriptContent replaces the transcript text after a manual edit.
func (s *Store) UpdateTranscriptContent(sessionID, customerID, content string) (*domain.Transcript, error) {
	res, err := s.db.Exec(`
		UPDATE transcripts
		SET content = ?, updated_at = ?
		WHERE session_id = ?
		  AND session_id IN (SELECT session_id FROM sessions WHERE customer_id = ?)
	`, content, time.Now().UTC(), sessionID, customerID)
	if err != nil {
		return nil, fmt.Errorf("update transcript: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrNotFound
	}
	return s.GetTranscript(sessionID, customerID)
}

// HasTranscript reports whether a transcript row exists for the session.
func (s *Store) HasTranscript(sessionID string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM transcripts WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count transcripts: %w", err)
	}
	return n > 0, nil
}
