package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sessionscribe/sessionscribe/domain"
)

const sessionColumns = `session_id, customer_id, client_id, title, session_date,
	duration_seconds, audio_path, audio_format, status, created_at, updated_at`

// CreateSession inserts a new session. A missing session ID is generated.
func (s *Store) CreateSession(sess *domain.Session) error {
	if sess.SessionID == "" {
		sess.SessionID = uuid.NewString()
	}
	if sess.Status == "" {
		sess.Status = domain.StatusPending
	}
	if !domain.ValidStatus(sess.Status) {
		return domain.ErrInvalidStatus
	}

	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO sessions (session_id, customer_id, client_id, title, session_date,
			duration_seconds, audio_path, audio_format, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.SessionID, sess.CustomerID, sess.ClientID, sess.Title, sess.SessionDate,
		sess.DurationSeconds, sess.AudioPath, sess.AudioFormat, string(sess.Status),
		sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns the session owned by customerID, or domain.ErrNotFound.
func (s *Store) GetSession(sessionID, customerID string) (*domain.Session, error) {
	row := s.db.QueryRow(`
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE session_id = ? AND customer_id = ?
	`, sessionID, customerID)
	return scanSession(row)
}

// ListSessions returns sessions for a customer, optionally filtered by
// client and status, newest session date first.
func (s *Store) ListSessions(customerID, clientID string, status domain.SessionStatus, limit, offset int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE customer_id = ?`
	args := []any{customerID}
	if clientID != "" {
		query += ` AND client_id = ?`
		args = append(args, clientID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY session_date DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// SessionUpdate lists the mutable session fields; nil means leave as is.
type SessionUpdate struct {
	Title           *string
	SessionDate     *time.Time
	DurationSeconds *int
	AudioPath       *string
	AudioFormat     *string
	Status          *domain.SessionStatus
}

// UpdateSession applies a partial update to a session owned by customerID.
// The transcribing status is pipeline-owned and cannot be set here.
func (s *Store) UpdateSession(sessionID, customerID string, upd SessionUpdate) (*domain.Session, error) {
	if upd.Status != nil {
		if !domain.ValidStatus(*upd.Status) || *upd.Status == domain.StatusTranscribing {
			return nil, domain.ErrInvalidStatus
		}
	}

	var sets []string
	var args []any
	appendSet := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.Title != nil {
		appendSet("title", *upd.Title)
	}
	if upd.SessionDate != nil {
		appendSet("session_date", *upd.SessionDate)
	}
	if upd.DurationSeconds != nil {
		appendSet("duration_seconds", *upd.DurationSeconds)
	}
	if upd.AudioPath != nil {
		appendSet("audio_path", *upd.AudioPath)
	}
	if upd.AudioFormat != nil {
		appendSet("audio_format", *upd.AudioFormat)
	}
	if upd.Status != nil {
		appendSet("status", string(*upd.Status))
	}
	if len(sets) == 0 {
		return s.GetSession(sessionID, customerID)
	}
	appendSet("updated_at", time.Now().UTC())
	args = append(args, sessionID, customerID)

	res, err := s.db.Exec(
		`UPDATE sessions SET `+strings.Join(sets, ", ")+` WHERE session_id = ? AND customer_id = ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrNotFound
	}
	return s.GetSession(sessionID, customerID)
}

// DeleteSession removes a session owned by customerID.
func (s *Store) DeleteSession(sessionID, customerID string) error {
	res, err := s.db.Exec(
		`DELETE FROM sessions WHERE session_id = ? AND customer_id = ?`,
		sessionID, customerID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetSessionStatus unconditionally sets the status. Pipeline use only;
// collaborators go through UpdateSession which refuses transcribing.
func (s *Store) SetSessionStatus(sessionID string, status domain.SessionStatus) error {
	if !domain.ValidStatus(status) {
		return domain.ErrInvalidStatus
	}
	res, err := s.db.Exec(
		`UPDATE sessions SET status = ?, updated_at = ? WHERE session_id = ?`,
		string(status), time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CompareAndSwapStatus sets the status to "to" only if the current status
// is one of "from". Returns false when no row matched, which callers treat
// as a lost race or a missing session.
func (s *Store) CompareAndSwapStatus(sessionID string, from []domain.SessionStatus, to domain.SessionStatus) (bool, error) {
	if !domain.ValidStatus(to) {
		return false, domain.ErrInvalidStatus
	}

	placeholders := make([]string, len(from))
	args := []any{string(to), time.Now().UTC(), sessionID}
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, string(st))
	}

	res, err := s.db.Exec(
		`UPDATE sessions SET status = ?, updated_at = ?
		 WHERE session_id = ? AND status IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	if err != nil {
		return false, fmt.Errorf("cas session status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cas session status: %w", err)
	}
	return n > 0, nil
}

// SessionAudio returns the audio path and recorded duration in seconds,
// ignoring ownership. Used by the pipeline to size engine timeouts.
func (s *Store) SessionAudio(sessionID string) (string, int, error) {
	var path string
	var duration int
	err := s.db.QueryRow(
		`SELECT audio_path, duration_seconds FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&path, &duration)
	if err == sql.ErrNoRows {
		return "", 0, domain.ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("query session audio: %w", err)
	}
	return path, duration, nil
}

// SessionStatus returns just the status of a session, ignoring ownership.
func (s *Store) SessionStatus(sessionID string) (domain.SessionStatus, error) {
	var status string
	err := s.db.QueryRow(
		`SELECT status FROM sessions WHERE session_id = ?`, sessionID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query session status: %w", err)
	}
	return domain.SessionStatus(status), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var status string
	var sessionDate sql.NullTime
	err := row.Scan(&sess.SessionID, &sess.CustomerID, &sess.ClientID, &sess.Title,
		&sessionDate, &sess.DurationSeconds, &sess.AudioPath, &sess.AudioFormat,
		&status, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.Status = domain.SessionStatus(status)
	if sessionDate.Valid {
		sess.SessionDate = sessionDate.Time
	}
	return &sess, nil
}
