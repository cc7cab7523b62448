package services

import "time"

// Outcome is the queue transition a failure kind maps to.
type Outcome struct {
	// EventStatus is the scraped event status after the attempt ends.
	EventStatus string
	// NotBefore delays the next attempt when non-zero.
	NotBefore time.Duration
	// Alert requests an operator notification.
	Alert bool
}

const (
	eventStatusNotStarted = "not_started"
	eventStatusError      = "error"
)

// Policy maps a failure kind to its queue transition. delayed is the wait
// applied to throttled attempts.
func Policy(kind Kind, delayed time.Duration) Outcome {
	switch kind {
	case KindRetry, KindTimeout:
		return Outcome{EventStatus: eventStatusNotStarted}
	case KindRetryDelayed:
		return Outcome{EventStatus: eventStatusNotStarted, NotBefore: delayed, Alert: true}
	default:
		return Outcome{EventStatus: eventStatusError, Alert: true}
	}
}
