package services

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure by how the scheduler must react to it.
type Kind string

const (
	// KindFatal marks unexpected response shapes and invariant violations.
	KindFatal Kind = "fatal"
	// KindRetry marks transient failures that may be retried on the next pass.
	KindRetry Kind = "retry"
	// KindRetryDelayed marks platform throttling; the event waits before retrying.
	KindRetryDelayed Kind = "retry_delayed"
	// KindTimeout marks an attempt that ran out of wall-clock budget with progress checkpointed.
	KindTimeout Kind = "timeout"
)

// Error is the classified error value propagated out of adapters.
type Error struct {
	Kind      Kind
	Platform  string
	Operation string
	URL       string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 4)
	if p := strings.TrimSpace(e.Platform); p != "" {
		parts = append(parts, p)
	}
	if op := strings.TrimSpace(e.Operation); op != "" {
		parts = append(parts, op)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if len(parts) == 0 {
		parts = append(parts, "pipeline failure")
	}
	detail := fmt.Sprintf("%s: %s", e.Kind, strings.Join(parts, ": "))
	if e.URL != "" {
		detail += " (" + e.URL + ")"
	}
	if e.Err != nil {
		detail += ": " + e.Err.Error()
	}
	return detail
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds a classified error. An empty kind is treated as fatal.
func Wrap(kind Kind, platform, operation, message string, err error) *Error {
	if kind == "" {
		kind = KindFatal
	}
	return &Error{Kind: kind, Platform: platform, Operation: operation, Message: message, Err: err}
}

// Fatal builds a non-retryable error.
func Fatal(operation, message string, err error) *Error {
	return Wrap(KindFatal, "", operation, message, err)
}

// Retry builds an error that puts the event back on the queue immediately.
func Retry(operation, message string, err error) *Error {
	return Wrap(KindRetry, "", operation, message, err)
}

// Delayed builds an error that defers the event's next attempt.
func Delayed(operation, message string, err error) *Error {
	return Wrap(KindRetryDelayed, "", operation, message, err)
}

// Timeout builds an error reporting an exhausted attempt deadline.
func Timeout(operation, message string) *Error {
	return Wrap(KindTimeout, "", operation, message, nil)
}

// WithURL records the remote URL involved in the failure.
func (e *Error) WithURL(url string) *Error {
	e.URL = url
	return e
}

// WithPlatform records the platform when the constructor did not.
func (e *Error) WithPlatform(platform string) *Error {
	if e.Platform == "" {
		e.Platform = platform
	}
	return e
}

// KindOf reports the classification of err. Unclassified errors are fatal so
// that unknown failures never loop silently.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindFatal
}

// Details extracts the classified error from err, synthesizing a fatal one
// for plain errors.
func Details(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return &Error{Kind: KindFatal, Message: err.Error()}
}
