package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a scraped event.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

var allStatuses = []Status{
	StatusNotStarted,
	StatusInProgress,
	StatusSuccess,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Outcome records how a download attempt finished.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeFatal        Outcome = "fatal"
	OutcomeRetry        Outcome = "retry"
	OutcomeRetryDelayed Outcome = "retry_delayed"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeKilled       Outcome = "killed"
)

// KilledMessage is stored on attempts force-finished by the reaper.
const KilledMessage = "killed as running too long"

// maxErrorLength bounds the error text persisted on attempts.
const maxErrorLength = 1000

// ScrapedEvent is one planned ingestion unit.
type ScrapedEvent struct {
	ID       int64
	Platform string
	URL      string
	SeriesID string
	EventID  string
	// CanonicalEventID links to an already-known canonical event; zero when unknown.
	CanonicalEventID int64
	// EventDate is the platform's declared start date, used for the settling window.
	EventDate      *time.Time
	Status         Status
	NotBefore      *time.Time
	LastFinishedAt *time.Time
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Attempt is one execution of a scraped event.
type Attempt struct {
	ID             int64
	ScrapedEventID int64
	Platform       string
	CorrelationID  string
	StartedAt      time.Time
	FinishedAt     *time.Time
	Outcome        Outcome
	ErrorMessage   string
}

// Running reports whether the attempt has not finished yet.
func (a Attempt) Running() bool {
	return a.FinishedAt == nil
}

// NewEventParams describes a scraped event to enqueue.
type NewEventParams struct {
	Platform         string
	URL              string
	SeriesID         string
	EventID          string
	CanonicalEventID int64
	EventDate        *time.Time
}

// ListFilter narrows List results; zero values match everything.
type ListFilter struct {
	Statuses []Status
	Platform string
	Limit    int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalEvents      int
	RunningAttempts  int
	Error            string
}

// HealthSummary describes aggregated queue counts per status.
type HealthSummary struct {
	Total      int
	NotStarted int
	InProgress int
	Success    int
	Error      int
	Deferred   int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

func truncateError(message string) string {
	message = strings.TrimSpace(message)
	if len(message) <= maxErrorLength {
		return message
	}
	return message[:maxErrorLength-3] + "..."
}
