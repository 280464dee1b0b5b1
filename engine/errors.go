package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when engine state is used before
	// Initialize.
	ErrNotInitialized = errors.New("engine: not initialized")

	// ErrAlreadyInitialized is returned by a nested Initialize.
	ErrAlreadyInitialized = errors.New("engine: already initialized")

	// ErrFinalized is returned when engine state is used after Finalize.
	ErrFinalized = errors.New("engine: already finalized")

	// ErrLiveContexts is returned by Finalize while solver contexts are
	// still alive.
	ErrLiveContexts = errors.New("engine: solver contexts still alive")

	// ErrNoOperators is returned when a solve or retrieval is attempted
	// before any operator has been registered.
	ErrNoOperators = errors.New("engine: no operators registered")

	// ErrNotSolved is returned when eigenpairs are requested before a solve
	// has completed.
	ErrNotSolved = errors.New("engine: solve has not completed")

	// ErrContextDestroyed is returned when a destroyed solver context is
	// used.
	ErrContextDestroyed = errors.New("engine: solver context destroyed")
)

// ErrIndexOutOfRange indicates an eigenpair index at or beyond the converged
// count.
type ErrIndexOutOfRange struct {
	Index     int
	Converged int
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("engine: eigenpair index %d out of range [0, %d)", e.Index, e.Converged)
}

// ErrLayoutMismatch indicates operators or vectors whose distributions
// disagree.
type ErrLayoutMismatch struct {
	Context string
}

func (e *ErrLayoutMismatch) Error() string {
	return fmt.Sprintf("engine: distributed layout mismatch: %s", e.Context)
}
