package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewEvent enqueues a scraped event. Enqueuing an event that already exists
// for the platform returns the existing row unchanged.
func (s *Store) NewEvent(ctx context.Context, params NewEventParams) (*ScrapedEvent, error) {
	platform := strings.ToLower(strings.TrimSpace(params.Platform))
	if platform == "" {
		return nil, errors.New("platform is required")
	}
	if strings.TrimSpace(params.URL) == "" {
		return nil, errors.New("url is required")
	}
	eventID := strings.TrimSpace(params.EventID)
	if eventID == "" {
		return nil, errors.New("event id is required")
	}
	seriesID := strings.TrimSpace(params.SeriesID)

	timestamp := formatTime(s.now())
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO scraped_events (
            platform, url, series_id, event_id, canonical_event_id, event_date,
            status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (platform, series_id, event_id) DO NOTHING`,
		platform,
		strings.TrimSpace(params.URL),
		seriesID,
		eventID,
		nullableInt64(params.CanonicalEventID),
		nullableTime(params.EventDate),
		StatusNotStarted,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert scraped event: %w", err)
	}
	return s.FindByRemoteID(ctx, platform, seriesID, eventID)
}

// GetByID fetches a scraped event by identifier. A missing row yields nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*ScrapedEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM scraped_events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scraped event: %w", err)
	}
	return event, nil
}

// FindByRemoteID returns the scraped event for a platform's series/event ids.
func (s *Store) FindByRemoteID(ctx context.Context, platform, seriesID, eventID string) (*ScrapedEvent, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+eventColumns+` FROM scraped_events WHERE platform = ? AND series_id = ? AND event_id = ?`,
		strings.ToLower(strings.TrimSpace(platform)),
		strings.TrimSpace(seriesID),
		strings.TrimSpace(eventID),
	)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find scraped event: %w", err)
	}
	return event, nil
}

// List returns scraped events matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*ScrapedEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM scraped_events`
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if p := strings.ToLower(strings.TrimSpace(filter.Platform)); p != "" {
		clauses = append(clauses, "platform = ?")
		args = append(args, p)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scraped events: %w", err)
	}
	defer rows.Close()

	var events []*ScrapedEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scraped event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// SetCanonicalEvent links a scraped event to its canonical event.
func (s *Store) SetCanonicalEvent(ctx context.Context, id, canonicalEventID int64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE scraped_events SET canonical_event_id = ?, updated_at = ? WHERE id = ?`,
		nullableInt64(canonicalEventID),
		formatTime(s.now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set canonical event: %w", err)
	}
	return nil
}

// RetryErrored moves the given events from error back to not_started and
// clears their not-before marker. It returns how many rows changed.
func (s *Store) RetryErrored(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{StatusNotStarted, formatTime(s.now())}
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusError)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scraped_events
         SET status = ?, not_before = NULL, error_message = NULL, updated_at = ?
         WHERE id IN (`+makePlaceholders(len(ids))+`) AND status = ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry errored events: %w", err)
	}
	return res.RowsAffected()
}

// NextCandidate returns the oldest eligible not_started event for platform:
// its not-before marker has elapsed and its event date is older than the
// settling window. Events never attempted come first, then the least recently
// finished. It returns nil when nothing is eligible.
func (s *Store) NextCandidate(ctx context.Context, platform string, settling time.Duration) (*ScrapedEvent, error) {
	now := s.now()
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+eventColumns+` FROM scraped_events
         WHERE platform = ? AND status = ?
           AND (not_before IS NULL OR not_before <= ?)
           AND COALESCE(event_date, created_at) <= ?
         ORDER BY last_finished_at IS NOT NULL, last_finished_at, id
         LIMIT 1`,
		strings.ToLower(strings.TrimSpace(platform)),
		StatusNotStarted,
		formatTime(now),
		formatTime(now.Add(-settling)),
	)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next candidate: %w", err)
	}
	return event, nil
}
