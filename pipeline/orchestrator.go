// Package pipeline ties queue enqueue, session status transitions, and
// transcript persistence into one protocol. The status state machine is
// pending -> transcribing -> completed, with transcribing -> pending on
// exhausted retries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sessionscribe/sessionscribe/domain"
	"github.com/sessionscribe/sessionscribe/engine"
	"github.com/sessionscribe/sessionscribe/events"
	"github.com/sessionscribe/sessionscribe/queue"
)

// ErrAlreadyTranscribing is returned when a trigger races a job that is
// already in flight for the same session.
var ErrAlreadyTranscribing = errors.New("session is already transcribing")

// ErrDuplicateDelivery is returned when a redelivered copy of a job
// arrives while the original claim is still executing. The worker leaves
// such a job to the broker's lease instead of acking or nacking it.
var ErrDuplicateDelivery = errors.New("job already executing")

// SessionStore is the session-status surface the orchestrator drives.
type SessionStore interface {
	GetSession(sessionID, customerID string) (*domain.Session, error)
	CompareAndSwapStatus(sessionID string, from []domain.SessionStatus, to domain.SessionStatus) (bool, error)
	SetSessionStatus(sessionID string, status domain.SessionStatus) error
	SessionAudio(sessionID string) (string, int, error)
}

// TranscriptStore persists produced transcripts.
type TranscriptStore interface {
	UpsertTranscript(t *domain.Transcript) error
}

// JobQueue is the enqueue side of the broker.
type JobQueue interface {
	Enqueue(sessionID, audioRef string, opts queue.Options) (string, error)
}

// Config tunes orchestrator behavior.
type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
	// Engine wall-clock budget: 3x known audio duration, clamped to
	// [TimeoutMin, TimeoutMax]; unknown duration gets TimeoutMax.
	TimeoutMin time.Duration
	TimeoutMax time.Duration
	// TranscriptToFile additionally writes the transcript text next to
	// the audio file and records the path as the file reference.
	TranscriptToFile bool
}

// Orchestrator owns the pipeline state machine.
type Orchestrator struct {
	sessions    SessionStore
	transcripts TranscriptStore
	jobs        JobQueue
	engine      engine.Engine
	bus         *events.Bus
	cfg         Config

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New wires an orchestrator. bus may be nil.
func New(sessions SessionStore, transcripts TranscriptStore, jobs JobQueue, eng engine.Engine, bus *events.Bus, cfg Config) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.TimeoutMin <= 0 {
		cfg.TimeoutMin = 2 * time.Minute
	}
	if cfg.TimeoutMax <= 0 {
		cfg.TimeoutMax = 30 * time.Minute
	}
	return &Orchestrator{
		sessions:    sessions,
		transcripts: transcripts,
		jobs:        jobs,
		engine:      eng,
		bus:         bus,
		cfg:         cfg,
		inFlight:    make(map[string]struct{}),
	}
}

// Trigger starts transcription for a session. The conditional status
// update is the enforcement point for the single-active-job invariant:
// only a session currently pending or completed can move to transcribing,
// so a racing second trigger loses the swap and gets a conflict.
func (o *Orchestrator) Trigger(ctx context.Context, sessionID, customerID string) (string, error) {
	sess, err := o.sessions.GetSession(sessionID, customerID)
	if err != nil {
		return "", err
	}
	if sess.AudioPath == "" {
		return "", domain.ErrNoAudio
	}

	swapped, err := o.sessions.CompareAndSwapStatus(sessionID,
		[]domain.SessionStatus{domain.StatusPending, domain.StatusCompleted},
		domain.StatusTranscribing)
	if err != nil {
		return "", err
	}
	if !swapped {
		return "", ErrAlreadyTranscribing
	}

	jobID, err := o.jobs.Enqueue(sessionID, sess.AudioPath, queue.Options{
		MaxAttempts: o.cfg.MaxAttempts,
		BackoffBase: o.cfg.BackoffBase,
	})
	if err != nil {
		// Roll the status back so a transcribing session without a real
		// job cannot outlive a broker outage.
		if rbErr := o.sessions.SetSessionStatus(sessionID, sess.Status); rbErr != nil {
			log.Printf("pipeline: rollback status for session %s: %v", sessionID, rbErr)
		}
		return "", fmt.Errorf("enqueue transcription: %w", err)
	}

	o.publish(events.Event{Type: events.TypeEnqueued, JobID: jobID, SessionID: sessionID})
	return jobID, nil
}

// Execute runs one claimed job end to end. A nil return means the
// transcript is durably written and the session is completed; the caller
// acks afterwards. Any error return is a failed attempt the caller nacks.
func (o *Orchestrator) Execute(ctx context.Context, job *queue.Job) error {
	o.mu.Lock()
	if _, busy := o.inFlight[job.ID]; busy {
		o.mu.Unlock()
		return ErrDuplicateDelivery
	}
	o.inFlight[job.ID] = struct{}{}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.inFlight, job.ID)
		o.mu.Unlock()
	}()

	attempt := job.AttemptCount + 1
	o.publish(events.Event{Type: events.TypeStarted, JobID: job.ID, SessionID: job.SessionID, Attempt: attempt})

	engineCtx, cancel := context.WithTimeout(ctx, o.engineTimeout(job.SessionID))
	defer cancel()

	// The engine call runs outside any lock or transaction.
	result, err := o.engine.Transcribe(engineCtx, job.AudioRef)
	if err != nil {
		o.publish(events.Event{
			Type: events.TypeAttemptFailed, JobID: job.ID, SessionID: job.SessionID,
			Attempt: attempt, Message: err.Error(),
		})
		return err
	}

	transcript := &domain.Transcript{
		SessionID:       job.SessionID,
		Content:         result.Text,
		Language:        result.Language,
		ConfidenceScore: result.Confidence,
	}
	if o.cfg.TranscriptToFile {
		ref, err := o.writeTranscriptFile(job.AudioRef, result.Text)
		if err != nil {
			return err
		}
		transcript.FileReference = ref
	}

	// Transcript first, status second: a crash between the two leaves the
	// session transcribing and the job unacked, which is safely retryable.
	// The reverse order could leave a completed session with no transcript.
	if err := o.transcripts.UpsertTranscript(transcript); err != nil {
		return err
	}
	if err := o.sessions.SetSessionStatus(job.SessionID, domain.StatusCompleted); err != nil {
		return err
	}

	o.publish(events.Event{Type: events.TypeCompleted, JobID: job.ID, SessionID: job.SessionID, Attempt: attempt})
	return nil
}

// HandleExhausted reverts the session to pending after the final failed
// attempt, before the job is nacked terminal, so a crash in between
// leaves a transcribing session for reconciliation rather than a pending
// session with a live job.
func (o *Orchestrator) HandleExhausted(job *queue.Job, cause error) {
	if err := o.sessions.SetSessionStatus(job.SessionID, domain.StatusPending); err != nil {
		log.Printf("pipeline: reset session %s to pending: %v", job.SessionID, err)
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	o.publish(events.Event{
		Type: events.TypeFailed, JobID: job.ID, SessionID: job.SessionID,
		Attempt: job.AttemptCount + 1, Message: msg,
	})
}

// engineTimeout sizes the per-job wall clock from the recorded audio
// duration, clamped to the configured window.
func (o *Orchestrator) engineTimeout(sessionID string) time.Duration {
	_, seconds, err := o.sessions.SessionAudio(sessionID)
	if err != nil || seconds <= 0 {
		return o.cfg.TimeoutMax
	}
	timeout := 3 * time.Duration(seconds) * time.Second
	if timeout < o.cfg.TimeoutMin {
		return o.cfg.TimeoutMin
	}
	if timeout > o.cfg.TimeoutMax {
		return o.cfg.TimeoutMax
	}
	return timeout
}

// writeTranscriptFile stores the text next to the session audio.
func (o *Orchestrator) writeTranscriptFile(audioRef, text string) (string, error) {
	path := filepath.Join(filepath.Dir(audioRef), "transcript.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write transcript file: %w", err)
	}
	return path, nil
}

func (o *Orchestrator) publish(event events.Event) {
	if o.bus != nil {
		o.bus.Publish(event)
	}
}
