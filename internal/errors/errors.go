package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"
)

// domainMarker is implemented by all domain-layer error types so callers can
// classify them without a type switch per concrete type.
type domainMarker interface {
	error
	isDomain()
}

// ConfigError indicates a misconfigured option (e.g. empty serialization
// format, no inputs/outputs for rewrite). Some configuration errors are
// fatal (rewrite with no inputs, record open with no format); others are
// reported-and-continued (negative delay). The caller decides which.
type ConfigError struct {
	Op  string // e.g. "record.open", "play.delay", "rewrite.inputs"
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("config error: %s", e.Op)
	}
	return fmt.Sprintf("config error: %s: %v", e.Op, e.Err)
}
func (e *ConfigError) Unwrap() error { return e.Err }
func (e *ConfigError) isDomain()     {}

// StorageError wraps a failure surfaced from a Reader or Writer (open, seek,
// read_next, write, create_topic, ...). Player.play() catches these at loop
// scope, logs, clears readiness, and returns without aborting the process.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage error: %s", e.Op)
	}
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}
func (e *StorageError) Unwrap() error { return e.Err }
func (e *StorageError) isDomain()     {}

// TopicError indicates a publisher/subscription setup failure for a single
// topic (unknown message type, QoS incompatibility at creation time). These
// are always logged and skipped, never propagated to the caller.
type TopicError struct {
	Topic string
	Op    string
	Err   error
}

func (e *TopicError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("topic error: %s (%s)", e.Op, e.Topic)
	}
	return fmt.Sprintf("topic error: %s (%s): %v", e.Op, e.Topic, e.Err)
}
func (e *TopicError) Unwrap() error { return e.Err }
func (e *TopicError) isDomain()     {}

// TimeoutError indicates an operation exceeded a deadline or idle timeout.
type TimeoutError struct {
	Op       string
	Duration time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (after %s)", e.Op, e.Duration)
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}
func (e *TimeoutError) Unwrap() error { return e.Err }

// IsTimeout returns true if err is (or wraps) a TimeoutError, a context
// deadline exceeded, or any error type that exposes Timeout() bool and
// returns true.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if stdErrors.As(err, &te) {
		return true
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var toErr interface{ Timeout() bool }
	if stdErrors.As(err, &toErr) && toErr.Timeout() {
		return true
	}
	return false
}

// IsDomainError returns true if the error chain contains any domain-layer
// error (ConfigError, StorageError, TopicError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}
	var dm domainMarker
	return stdErrors.As(err, &dm)
}

// Constructors (encourage contextual wrapping with %w when used by callers).
func NewConfigError(op string, cause error) error  { return &ConfigError{Op: op, Err: cause} }
func NewStorageError(op string, cause error) error { return &StorageError{Op: op, Err: cause} }
func NewTopicError(topic, op string, cause error) error {
	return &TopicError{Topic: topic, Op: op, Err: cause}
}
func NewTimeoutError(op string, d time.Duration, cause error) error {
	return &TimeoutError{Op: op, Duration: d, Err: cause}
}

// Usage pattern example:
//  if err := writer.Write(msg); err != nil {
//      return NewStorageError("write", fmt.Errorf("writer: %w", err))
//  }
// Keep layering context with fmt.Errorf("...: %w", err).
