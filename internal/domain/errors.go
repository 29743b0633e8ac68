package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals malformed input rejected before any mutation.
	ErrValidation = errors.New("validation error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrProvider signals an embedding or generation provider failure.
	ErrProvider = errors.New("provider error")
	// ErrRetryExhausted marks a provider failure that survived every retry attempt.
	ErrRetryExhausted = errors.New("retries exhausted")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrProviderRejected signals a non-transient provider rejection (4xx other than 429).
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrIndexCorruption signals persisted index state that failed its integrity check.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrRoutingFallback records that the router degraded to the default decision.
	// It is attached to the decision, never returned to callers.
	ErrRoutingFallback = errors.New("routing fallback")

	// ErrUnknownStrategy signals a generation strategy name outside the registry.
	ErrUnknownStrategy = errors.New("unknown generation strategy")
)

// ValidationError names the offending field of a rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for the given field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ProviderError wraps a failed embedding or chat call.
type ProviderError struct {
	Op             string // embed, chat
	Attempts       int
	RetryExhausted bool
	Err            error
}

func (e *ProviderError) Error() string {
	if e.RetryExhausted {
		return fmt.Sprintf("%s: %s failed after %d attempts: %v", ErrProvider.Error(), e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrProvider.Error(), e.Op, e.Err)
}

// Is matches ErrProvider always and ErrRetryExhausted when the retry budget was spent.
func (e *ProviderError) Is(target error) bool {
	if target == ErrProvider {
		return true
	}
	return target == ErrRetryExhausted && e.RetryExhausted
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IndexCorruptionError describes a persisted index that cannot be trusted.
type IndexCorruptionError struct {
	Path   string
	Reason string
}

func (e *IndexCorruptionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrIndexCorruption.Error(), e.Path, e.Reason)
}

func (e *IndexCorruptionError) Unwrap() error { return ErrIndexCorruption }

// BatchError reports a failed ingestion batch by its position in the input.
type BatchError struct {
	Batch int
	First string // first doc_id in the batch
	Size  int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (%d docs from %q): %v", e.Batch, e.Size, e.First, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
