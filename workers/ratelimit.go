package workers

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow limits job starts across all workers: at most max starts
// per window, independent of how many workers are busy. Workers block on
// Acquire before claiming, which bounds the queue drain rate.
type SlidingWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	starts []time.Time
	now    func() time.Time
}

// NewSlidingWindow creates a limiter allowing max starts per window.
func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindow{max: max, window: window, now: time.Now}
}

// Acquire blocks until a start slot is available or ctx is cancelled.
func (w *SlidingWindow) Acquire(ctx context.Context) error {
	for {
		wait, ok := w.tryAcquire()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// tryAcquire records a start if under the limit, otherwise returns how
// long until the oldest start falls out of the window.
func (w *SlidingWindow) tryAcquire() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)
	kept := w.starts[:0]
	for _, t := range w.starts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.starts = kept

	if len(w.starts) < w.max {
		w.starts = append(w.starts, now)
		return 0, true
	}
	return w.starts[0].Sub(cutoff), false
}
