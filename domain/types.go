// Package domain holds the shared types for sessions, transcripts, and
// the records a therapist attaches to a session.
package domain

import "time"

// SessionStatus tracks where a session sits in the transcription lifecycle.
type SessionStatus string

const (
	StatusPending      SessionStatus = "pending"
	StatusTranscribing SessionStatus = "transcribing"
	StatusCompleted    SessionStatus = "completed"
)

// ValidStatus reports whether s is one of the three allowed session states.
func ValidStatus(s SessionStatus) bool {
	switch s {
	case StatusPending, StatusTranscribing, StatusCompleted:
		return true
	default:
		return false
	}
}

// Client is a person the therapist sees. Sessions are recorded against a
// client and both are scoped to the owning customer.
type Client struct {
	ClientID         string    `json:"client_id"`
	CustomerID       string    `json:"customer_id"`
	Name             string    `json:"name"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	UniqueIdentifier string    `json:"unique_identifier,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Session is one recorded therapy session and its processing status.
type Session struct {
	SessionID       string        `json:"session_id"`
	CustomerID      string        `json:"customer_id"`
	ClientID        string        `json:"client_id"`
	Title           string        `json:"title"`
	SessionDate     time.Time     `json:"session_date"`
	DurationSeconds int           `json:"duration_seconds"`
	AudioPath       string        `json:"audio_path,omitempty"`
	AudioFormat     string        `json:"audio_format,omitempty"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Transcript is the text produced for a session. Either Content or
// FileReference is populated depending on the storage mode.
type Transcript struct {
	SessionID       string    `json:"session_id"`
	Content         string    `json:"content,omitempty"`
	FileReference   string    `json:"file_reference,omitempty"`
	Language        string    `json:"language"`
	ConfidenceScore float64   `json:"confidence_score"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Note is free-form session commentary written by the therapist.
type Note struct {
	NoteID    string    `json:"note_id"`
	SessionID string    `json:"session_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Issue is a key concern surfaced during a session.
type Issue struct {
	IssueID   string    `json:"issue_id"`
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FollowUp is an action item attached to a session.
type FollowUp struct {
	FollowUpID  string     `json:"followup_id"`
	SessionID   string     `json:"session_id"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
