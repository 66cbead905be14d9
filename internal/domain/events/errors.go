package events

import (
	"errors"
	"fmt"
)

// FailureKind classifies a consume-side processing failure so the transport
// can decide whether to commit the message's offset without inspecting
// concrete error types.
type FailureKind int

const (
	// FailureRetryable indicates a transient failure. The offset must not be
	// committed so the broker redelivers the message.
	FailureRetryable FailureKind = iota

	// FailureSkip indicates a terminal per-message failure (e.g. a malformed
	// payload). The offset is committed to avoid a poison-message loop.
	FailureSkip

	// FailureFatal indicates the consumer itself can no longer make progress
	// and should stop.
	FailureFatal
)

func (k FailureKind) String() string {
	switch k {
	case FailureRetryable:
		return "retryable"
	case FailureSkip:
		return "skip"
	case FailureFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ConsumeError wraps a processing error with its failure kind.
type ConsumeError struct {
	Kind FailureKind
	Err  error
}

func (e *ConsumeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ConsumeError) Unwrap() error { return e.Err }

// NewRetryableError marks err as transient; the message will be redelivered.
func NewRetryableError(err error) *ConsumeError {
	return &ConsumeError{Kind: FailureRetryable, Err: err}
}

// NewSkipError marks err as terminal for the message; it will be skipped and
// its offset committed.
func NewSkipError(err error) *ConsumeError {
	return &ConsumeError{Kind: FailureSkip, Err: err}
}

// NewFatalError marks err as unrecoverable for the consumer.
func NewFatalError(err error) *ConsumeError {
	return &ConsumeError{Kind: FailureFatal, Err: err}
}

// KindOf extracts the failure kind from err. Untyped errors default to
// retryable, which under at-least-once delivery means the message is
// redelivered rather than silently lost.
func KindOf(err error) FailureKind {
	var ce *ConsumeError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return FailureRetryable
}
