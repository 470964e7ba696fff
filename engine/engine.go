// Package engine adapts external speech-to-text backends behind a single
// contract: given an audio reference, produce text with language and
// confidence, or fail in a way the retry path can act on.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Result is a normalized transcription outcome.
type Result struct {
	Text       string
	Language   string
	Duration   time.Duration
	Confidence float64
}

// Engine invokes one speech-to-text backend. Implementations must honor
// context cancellation and must not leak spawned processes on timeout.
type Engine interface {
	Transcribe(ctx context.Context, audioRef string) (Result, error)
}

// EngineError wraps any backend failure, timeouts included. The pipeline
// retries these up to the job's attempt budget.
type EngineError struct {
	Backend string
	Detail  string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine %s: %s: %v", e.Backend, e.Detail, e.Err)
	}
	return fmt.Sprintf("engine %s: %s", e.Backend, e.Detail)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Settings carries backend construction parameters.
type Settings struct {
	Python   string
	Script   string
	Model    string
	Language string
	APIKey   string
}

// Factory builds an engine from settings.
type Factory func(Settings) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under name. Called from init.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// New constructs the named backend.
func New(name string, s Settings) (Engine, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown engine backend %q (have %v)", name, Backends())
	}
	return f(s)
}

// Backends lists registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
