package crawl

import (
	"errors"
	"fmt"
)

// FailureKind tags a source failure with how the worker should react.
type FailureKind int

const (
	// FailureFatal marks an unexpected error; the target is abandoned
	// without retry so the run keeps making progress.
	FailureFatal FailureKind = iota
	// FailureInvalid marks a permanently inaccessible target
	// (not found, forbidden, redirected); it is skipped for the run.
	FailureInvalid
	// FailureRetryable marks a transient failure (timeout, rate limit,
	// server error) worth retrying with backoff during validation.
	FailureRetryable
)

// SourceError wraps a source failure together with its classification.
type SourceError struct {
	Kind FailureKind
	Err  error
}

func (e *SourceError) Error() string {
	switch e.Kind {
	case FailureInvalid:
		return fmt.Sprintf("invalid target: %v", e.Err)
	case FailureRetryable:
		return fmt.Sprintf("transient failure: %v", e.Err)
	default:
		return fmt.Sprintf("fetch failed: %v", e.Err)
	}
}

func (e *SourceError) Unwrap() error { return e.Err }

// Invalid wraps err as a permanent target failure.
func Invalid(err error) error {
	return &SourceError{Kind: FailureInvalid, Err: err}
}

// Retryable wraps err as a transient failure.
func Retryable(err error) error {
	return &SourceError{Kind: FailureRetryable, Err: err}
}

// Fatal wraps err as an unexpected, target-fatal failure.
func Fatal(err error) error {
	return &SourceError{Kind: FailureFatal, Err: err}
}

// KindOf returns the classification of err. Unclassified errors are
// conservatively treated as fatal.
func KindOf(err error) FailureKind {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return FailureFatal
}

// IsInvalid reports whether err marks a permanently inaccessible target.
func IsInvalid(err error) bool { return KindOf(err) == FailureInvalid }

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool { return KindOf(err) == FailureRetryable }
