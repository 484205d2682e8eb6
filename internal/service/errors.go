package service

import "fmt"

// ConfigurationError marks an operation invoked before its dependency was
// configured. It is always raised synchronously, before any generation or
// persistence attempt.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return e.Reason
}

// ErrNoContextStore is returned when a retrieval operation is invoked and no
// context store has been set.
var ErrNoContextStore = &ConfigurationError{Reason: "context store is not configured"}

// GenerationError wraps a failure of the generation backend. When it occurs
// mid-stream, the text accumulated before the failure has already been
// persisted by the time the caller observes this error.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// StoreError wraps a checkpoint store failure. It is surfaced distinctly
// from GenerationError: generation may have succeeded while the turn's text
// was lost.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("checkpoint store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
