// Package queue implements the in-process job broker for transcription
// work: at-least-once delivery with claim leases, exponential backoff on
// failure, and bounded retention of terminal jobs.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned when enqueueing on a shut-down broker. The HTTP
// layer reports it as queue unavailability.
var ErrClosed = errors.New("queue: broker closed")

// ErrUnknownJob is returned for ack/nack of a job the broker is not
// holding a claim for.
var ErrUnknownJob = errors.New("queue: unknown job")

// JobState tracks a job through the broker.
type JobState string

const (
	StatePending   JobState = "pending"
	StateClaimed   JobState = "claimed"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
)

// Job is one queued unit of transcription work for a session.
type Job struct {
	ID        string `json:"job_id"`
	SessionID string `json:"session_id"`
	AudioRef  string `json:"audio_ref"`
	// AttemptCount is the number of executed attempts, settled on ack or
	// nack. While a job is claimed it still shows the prior count.
	AttemptCount int           `json:"attempt_count"`
	MaxAttempts  int           `json:"max_attempts"`
	BackoffBase  time.Duration `json:"backoff_base"`
	EnqueuedAt   time.Time     `json:"enqueued_at"`
	State        JobState      `json:"state"`
	ClaimedBy    string        `json:"claimed_by,omitempty"`
	LeaseUntil   time.Time     `json:"lease_until,omitempty"`
	NotBefore    time.Time     `json:"not_before,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	FinishedAt   time.Time     `json:"finished_at,omitempty"`
}

// Options tune retry behavior for one enqueued job.
type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// Config tunes broker-wide behavior.
type Config struct {
	// ClaimLease is how long a claimed job stays invisible before an
	// unacknowledged claim is considered abandoned and redelivered.
	ClaimLease time.Duration
	// Retention bounds for terminal jobs. Observability only.
	KeepSucceeded int
	KeepFailed    int
	// PollInterval is how often blocked Claim calls re-check for work.
	PollInterval time.Duration
}

// Broker holds pending, claimed, and recently finished jobs. All methods
// are safe for concurrent use; a single mutex serializes claim/ack/nack.
type Broker struct {
	mu        sync.Mutex
	pending   []*Job
	claimed   map[string]*Job
	succeeded []*Job
	failed    []*Job
	closed    bool

	lease         time.Duration
	keepSucceeded int
	keepFailed    int
	pollInterval  time.Duration
	now           func() time.Time
}

// NewBroker creates an empty broker.
func NewBroker(cfg Config) *Broker {
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 5 * time.Minute
	}
	if cfg.KeepSucceeded <= 0 {
		cfg.KeepSucceeded = 100
	}
	if cfg.KeepFailed <= 0 {
		cfg.KeepFailed = 500
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	return &Broker{
		claimed:       make(map[string]*Job),
		lease:         cfg.ClaimLease,
		keepSucceeded: cfg.KeepSucceeded,
		keepFailed:    cfg.KeepFailed,
		pollInterval:  cfg.PollInterval,
		now:           time.Now,
	}
}

// Enqueue adds a job for a session and returns the broker-assigned job ID.
func (b *Broker) Enqueue(sessionID, audioRef string, opts Options) (string, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrClosed
	}

	job := &Job{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		AudioRef:    audioRef,
		MaxAttempts: opts.MaxAttempts,
		BackoffBase: opts.BackoffBase,
		EnqueuedAt:  b.now().UTC(),
		State:       StatePending,
	}
	b.pending = append(b.pending, job)
	return job.ID, nil
}

// Claim blocks until a job is ready, the context is cancelled, or the
// broker is closed. Returns nil, nil on shutdown. The returned job is a
// copy; the broker holds the claim under a lease until Ack or Nack.
func (b *Broker) Claim(ctx context.Context, workerID string) (*Job, error) {
	for {
		if job := b.tryClaim(workerID); job != nil {
			return job, nil
		}

		b.mu.Lock()
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(b.pollInterval):
		}
	}
}

// tryClaim reclaims expired leases and hands out the first ready job.
func (b *Broker) tryClaim(workerID string) *Job {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	// Abandoned claims go back to pending without consuming an attempt.
	for id, job := range b.claimed {
		if now.After(job.LeaseUntil) {
			job.State = StatePending
			job.ClaimedBy = ""
			job.LeaseUntil = time.Time{}
			b.pending = append(b.pending, job)
			delete(b.claimed, id)
		}
	}

	for i, job := range b.pending {
		if job.NotBefore.After(now) {
			continue
		}
		b.pending = append(b.pending[:i], b.pending[i+1:]...)
		job.State = StateClaimed
		job.ClaimedBy = workerID
		job.LeaseUntil = now.Add(b.lease)
		b.claimed[job.ID] = job
		cp := *job
		return &cp
	}
	return nil
}

// Ack marks a job terminal-success. Idempotent: acking a job that already
// reached a terminal state is a no-op.
func (b *Broker) Ack(jobID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.claimed[jobID]
	if !ok {
		if b.isTerminal(jobID) {
			return nil
		}
		return ErrUnknownJob
	}
	delete(b.claimed, jobID)
	job.AttemptCount++
	job.State = StateSucceeded
	job.ClaimedBy = ""
	job.FinishedAt = b.now().UTC()
	b.succeeded = appendBounded(b.succeeded, job, b.keepSucceeded)
	return nil
}

// Nack records a failed attempt. While attempts remain the job is
// rescheduled after base * 2^(attempt-1); otherwise it is marked
// terminal-failure. Returns whether a retry was scheduled.
func (b *Broker) Nack(jobID string, cause error) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.claimed[jobID]
	if !ok {
		if b.isTerminal(jobID) {
			return false, nil
		}
		return false, ErrUnknownJob
	}
	delete(b.claimed, jobID)

	job.AttemptCount++
	job.ClaimedBy = ""
	job.LeaseUntil = time.Time{}
	if cause != nil {
		job.LastError = cause.Error()
	}

	if job.AttemptCount < job.MaxAttempts {
		delay := job.BackoffBase << (job.AttemptCount - 1)
		job.State = StatePending
		job.NotBefore = b.now().Add(delay)
		b.pending = append(b.pending, job)
		return true, nil
	}

	job.State = StateFailed
	job.FinishedAt = b.now().UTC()
	b.failed = appendBounded(b.failed, job, b.keepFailed)
	return false, nil
}

// ActiveJobs returns copies of all non-terminal jobs.
func (b *Broker) ActiveJobs() []Job {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Job, 0, len(b.pending)+len(b.claimed))
	for _, job := range b.pending {
		out = append(out, *job)
	}
	for _, job := range b.claimed {
		out = append(out, *job)
	}
	return out
}

// TerminalJobs returns copies of retained finished jobs.
func (b *Broker) TerminalJobs() []Job {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Job, 0, len(b.succeeded)+len(b.failed))
	for _, job := range b.succeeded {
		out = append(out, *job)
	}
	for _, job := range b.failed {
		out = append(out, *job)
	}
	return out
}

// Close stops the broker. Blocked Claim calls return nil.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *Broker) isTerminal(jobID string) bool {
	for _, job := range b.succeeded {
		if job.ID == jobID {
			return true
		}
	}
	for _, job := range b.failed {
		if job.ID == jobID {
			return true
		}
	}
	return false
}

// appendBounded appends and trims from the front past the retention bound.
func appendBounded(jobs []*Job, job *Job, max int) []*Job {
	jobs = append(jobs, job)
	if len(jobs) > max {
		trim := len(jobs) - max
		jobs = append([]*Job(nil), jobs[trim:]...)
	}
	return jobs
}
