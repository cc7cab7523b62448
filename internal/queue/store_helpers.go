package queue

import (
	"database/sql"
	"errors"
	"time"
)

const eventColumns = "id, platform, url, series_id, event_id, canonical_event_id, event_date, status, not_before, last_finished_at, error_message, created_at, updated_at"

const attemptColumns = "id, scraped_event_id, platform, correlation_id, started_at, finished_at, outcome, error_message"

type rowScanner interface{ Scan(dest ...any) error }

func scanEvent(scanner rowScanner) (*ScrapedEvent, error) {
	var (
		event         ScrapedEvent
		statusStr     string
		canonicalID   sql.NullInt64
		eventDateRaw  sql.NullString
		notBeforeRaw  sql.NullString
		lastFinishRaw sql.NullString
		errorMessage  sql.NullString
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&event.ID,
		&event.Platform,
		&event.URL,
		&event.SeriesID,
		&event.EventID,
		&canonicalID,
		&eventDateRaw,
		&statusStr,
		&notBeforeRaw,
		&lastFinishRaw,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	event.Status = Status(statusStr)
	event.CanonicalEventID = canonicalID.Int64
	event.ErrorMessage = errorMessage.String
	event.EventDate = parseNullableTime(eventDateRaw)
	event.NotBefore = parseNullableTime(notBeforeRaw)
	event.LastFinishedAt = parseNullableTime(lastFinishRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		event.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		event.UpdatedAt = updated
	}
	return &event, nil
}

func scanAttempt(scanner rowScanner) (*Attempt, error) {
	var (
		attempt       Attempt
		correlationID sql.NullString
		startedRaw    string
		finishedRaw   sql.NullString
		outcome       sql.NullString
		errorMessage  sql.NullString
	)
	if err := scanner.Scan(
		&attempt.ID,
		&attempt.ScrapedEventID,
		&attempt.Platform,
		&correlationID,
		&startedRaw,
		&finishedRaw,
		&outcome,
		&errorMessage,
	); err != nil {
		return nil, err
	}
	attempt.CorrelationID = correlationID.String
	attempt.Outcome = Outcome(outcome.String)
	attempt.ErrorMessage = errorMessage.String
	attempt.FinishedAt = parseNullableTime(finishedRaw)
	if started, err := parseTimeString(startedRaw); err == nil {
		attempt.StartedAt = started
	}
	return &attempt, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Parse(time.DateTime, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
