package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable marks failures reaching the embedding service or evidence store.
	ErrStoreUnavailable = errors.New("evidence store unavailable")
	// ErrGenerationFailed marks model transport errors and timeouts.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrNotFound is returned when a workspace or source does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError rejects a request before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StoreError represents a failure of the retrieval side (embedding or search).
type StoreError struct {
	Op  string // "embed", "search", "append"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStoreUnavailable) hold for every StoreError.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// GenerationError represents a failure of the language model call.
type GenerationError struct {
	Op  string // "generate", "stream"
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation error: %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrGenerationFailed) hold for every GenerationError.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}
