// Package workers runs a fixed-size pool of job executors over the
// broker, with a shared rate limit on job starts.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sessionscribe/sessionscribe/pipeline"
	"github.com/sessionscribe/sessionscribe/queue"
)

// Executor runs one claimed job end to end.
type Executor interface {
	Execute(ctx context.Context, job *queue.Job) error
	HandleExhausted(job *queue.Job, cause error)
}

// Pool owns all worker state: the workers, the shared limiter, and the
// shutdown signal. Nothing here is package-global, so independent pools
// can coexist in tests.
type Pool struct {
	queue    *queue.Broker
	exec     Executor
	limiter  *SlidingWindow
	workers  int
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewPool builds a pool of n workers draining the broker through exec.
func NewPool(n int, broker *queue.Broker, exec Executor, limiter *SlidingWindow) *Pool {
	if n <= 0 {
		n = 5
	}
	if limiter == nil {
		limiter = NewSlidingWindow(10, time.Minute)
	}
	return &Pool{
		queue:   broker,
		exec:    exec,
		limiter: limiter,
		workers: n,
	}
}

// Start launches the worker loops.
func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for i := 0; i < p.workers; i++ {
		workerID := fmt.Sprintf("worker-%d", i+1)
		p.wg.Add(1)
		go p.run(ctx, workerID)
	}
}

// Stop tells workers to stop claiming and waits for in-flight jobs up to
// the deadline on ctx. Jobs that cannot finish in time are abandoned to
// the broker's lease redelivery.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool: drain timed out: %w", ctx.Err())
	}
}

// run is one worker loop: rate limit, claim, execute, ack/nack.
func (p *Pool) run(ctx context.Context, workerID string) {
	defer p.wg.Done()

	for {
		// Acquire before claim so the limiter bounds drain rate, not
		// just concurrency. A token acquired before a long-idle Claim can
		// outlive its window, so after a quiet stretch at most one extra
		// start per worker lands inside a window on top of the limit.
		if err := p.limiter.Acquire(ctx); err != nil {
			return
		}

		job, err := p.queue.Claim(ctx, workerID)
		if err != nil {
			log.Printf("%s: claim: %v", workerID, err)
			continue
		}
		if job == nil {
			// Shutdown.
			return
		}

		// Execution is deliberately not tied to the claim context:
		// shutdown stops new claims but lets in-flight jobs run out
		// their own engine timeout.
		p.handle(context.Background(), workerID, job)
	}
}

// handle executes one claimed job and settles it with the broker.
func (p *Pool) handle(ctx context.Context, workerID string, job *queue.Job) {
	err := p.exec.Execute(ctx, job)
	if err == nil {
		if ackErr := p.queue.Ack(job.ID); ackErr != nil {
			log.Printf("%s: ack job %s: %v", workerID, job.ID, ackErr)
		}
		return
	}

	if errors.Is(err, pipeline.ErrDuplicateDelivery) {
		// The original claim is still running; let its lease settle the
		// redelivered copy.
		log.Printf("%s: job %s redelivered while executing, skipping", workerID, job.ID)
		return
	}

	// The session must be reverted before the terminal nack so a crash in
	// between cannot leave a pending session with a live job.
	final := job.AttemptCount+1 >= job.MaxAttempts
	if final {
		p.exec.HandleExhausted(job, err)
	}

	retrying, nackErr := p.queue.Nack(job.ID, err)
	if nackErr != nil {
		log.Printf("%s: nack job %s: %v", workerID, job.ID, nackErr)
		return
	}
	if retrying {
		log.Printf("%s: job %s attempt %d failed, retrying: %v", workerID, job.ID, job.AttemptCount+1, err)
	} else {
		log.Printf("%s: job %s failed permanently: %v", workerID, job.ID, err)
	}
}
