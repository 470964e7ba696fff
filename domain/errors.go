package domain

import "errors"

// ErrNotFound is returned when a row does not exist or belongs to a
// different customer.
var ErrNotFound = errors.New("not found")

// ErrInvalidStatus is returned for a status value outside the allowed set,
// or for an attempt to set a pipeline-owned status directly.
var ErrInvalidStatus = errors.New("invalid session status")

// ErrNoAudio is returned when transcription is requested for a session
// that has no audio attached.
var ErrNoAudio = errors.New("session has no audio attached")
