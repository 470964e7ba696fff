package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sessionscribe/sessionscribe/domain"
)

// sessionOwned verifies that a session exists and belongs to customerID.
func (s *Store) sessionOwned(sessionID, customerID string) error {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM sessions WHERE session_id = ? AND customer_id = ?`,
		sessionID, customerID).Scan(&n)
	if err != nil {
		return fmt.Errorf("check session ownership: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateNote attaches a note to a session owned by customerID.
func (s *Store) CreateNote(sessionID, customerID, content string) (*domain.Note, error) {
	if err := s.sessionOwned(sessionID, customerID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	note := &domain.Note{
		NoteID:    uuid.NewString(),
		SessionID: sessionID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(`
		INSERT INTO notes (note_id, session_id, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, note.NoteID, note.SessionID, note.Content, note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return note, nil
}

// ListNotes returns all notes for a session owned by customerID.
func (s *Store) ListNotes(sessionID, customerID string) ([]domain.Note, error) {
	if err := s.sessionOwned(sessionID, customerID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT note_id, session_id, content, created_at, updated_at
		FROM notes WHERE session_id = ? ORDER BY created_at DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.NoteID, &n.SessionID, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// CreateIssue records a key issue against a session owned by customerID.
func (s *Store) CreateIssue(sessionID, customerID, title, severity string) (*domain.Issue, error) {
	if err := s.sessionOwned(sessionID, customerID); err != nil {
		return nil, err
	}
	if severity == "" {
		severity = "medium"
	}
	now := time.Now().UTC()
	issue := &domain.Issue{
		IssueID:   uuid.NewString(),
		SessionID: sessionID,
		Title:     title,
		Severity:  severity,
		Status:    "open",
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(`
		INSERT INTO issues (issue_id, session_id, title, severity, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, issue.IssueID, issue.SessionID, issue.Title, issue.Severity, issue.Status,
		issue.CreatedAt, issue.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert issue: %w", err)
	}
	return issue, nil
}

// ListIssues returns all issues for a session owned by customerID.
func (s *Store) ListIssues(sessionID, customerID string) ([]domain.Issue, error) {
	if err := s.sessionOwned(sessionID, customerID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT issue_id, session_id, title, severity, status, created_at, updated_at
		FROM issues WHERE session_id = ? ORDER BY created_at DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	var issues []domain.Issue
	for rows.Next() {
		var i domain.Issue
		if err := rows.Scan(&i.IssueID, &i.SessionID, &i.Title, &i.Severity, &i.Status,
			&i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

// CreateFollowUp records a follow-up item for a session owned by customerID.
func (s *Store) CreateFollowUp(sessionID, customerID, description string, dueDate *time.Time) (*domain.FollowUp, error) {
	if err := s.sessionOwned(sessionID, customerID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	fu := &domain.FollowUp{
		FollowUpID:  uuid.NewString(),
		SessionID:   sessionID,
		Description: description,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.Exec(`
		INSERT INTO followups (followup_id, session_id, description, due_date, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, fu.FollowUpID, fu.SessionID, fu.Description, fu.DueDate, fu.CreatedAt, fu.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert followup: %w", err)
	}
	return fu, nil
}

// ListFollowUps returns all follow-ups for a session owned by customerID.
func (s *Store) ListFollowUps(sessionID, customerID string) ([]domain.FollowUp, error) {
	if err := s.sessionOwned(sessionID, customerID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT followup_id, session_id, description, due_date, completed, created_at, updated_at
		FROM followups WHERE session_id = ? ORDER BY created_at DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query followups: %w", err)
	}
	defer rows.Close()

	var followups []domain.FollowUp
	for rows.Next() {
		var f domain.FollowUp
		var due sql.NullTime
		if err := rows.Scan(&f.FollowUpID, &f.SessionID, &f.Description, &due,
			&f.Completed, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan followup: %w", err)
		}
		if due.Valid {
			t := due.Time
			f.DueDate = &t
		}
		followups = append(followups, f)
	}
	return followups, rows.Err()
}

// CompleteFollowUp marks a follow-up as done.
func (s *Store) CompleteFollowUp(followupID, customerID string) error {
	res, err := s.db.Exec(`
		UPDATE followups SET completed = 1, updated_at = ?
		WHERE followup_id = ?
		  AND session_id IN (SELECT session_id FROM sessions WHERE customer_id = ?)
	`, time.Now().UTC(), followupID, customerID)
	if err != nil {
		return fmt.Errorf("complete followup: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
