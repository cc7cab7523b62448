package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"racefeed/internal/sqlitedb"
)

var (
	// ErrPlatformBusy reports that the platform already has an unfinished attempt.
	ErrPlatformBusy = errors.New("platform already has an attempt in progress")
	// ErrNotEligible reports that the event is not in a startable state.
	ErrNotEligible = errors.New("scraped event is not eligible to start")
	// ErrAttemptFinished reports that the attempt was already finished, typically by the reaper.
	ErrAttemptFinished = errors.New("attempt already finished")
)

// StartAttempt marks the event in_progress and records a new running attempt
// in one transaction. It fails with ErrPlatformBusy when another attempt for
// the same platform is unfinished.
func (s *Store) StartAttempt(ctx context.Context, eventID int64, correlationID string) (*Attempt, error) {
	var attemptID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		event, err := scanEvent(tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM scraped_events WHERE id = ?`, eventID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("scraped event %d: %w", eventID, ErrNotEligible)
		}
		if err != nil {
			return fmt.Errorf("load scraped event: %w", err)
		}
		if event.Status != StatusNotStarted {
			return fmt.Errorf("scraped event %d is %s: %w", eventID, event.Status, ErrNotEligible)
		}

		now := formatTime(s.now())
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO download_attempts (scraped_event_id, platform, correlation_id, started_at)
             VALUES (?, ?, ?, ?)`,
			event.ID, event.Platform, nullableString(correlationID), now,
		)
		if err != nil {
			if sqlitedb.IsUniqueViolation(err) {
				return fmt.Errorf("%s: %w", event.Platform, ErrPlatformBusy)
			}
			return fmt.Errorf("insert attempt: %w", err)
		}
		attemptID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE scraped_events SET status = ?, updated_at = ? WHERE id = ?`,
			StatusInProgress, now, event.ID,
		); err != nil {
			return fmt.Errorf("mark event in progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetAttempt(ctx, attemptID)
}

// FinishParams describes how an attempt ended.
type FinishParams struct {
	Outcome     Outcome
	EventStatus Status
	NotBefore   *time.Time
	Message     string
}

// FinishAttempt closes a running attempt and applies the resulting event
// transition. Attempts already closed by the reaper are left untouched and
// ErrAttemptFinished is returned.
func (s *Store) FinishAttempt(ctx context.Context, attemptID int64, params FinishParams) error {
	message := truncateError(params.Message)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		attempt, err := scanAttempt(tx.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM download_attempts WHERE id = ?`, attemptID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("attempt %d not found", attemptID)
		}
		if err != nil {
			return fmt.Errorf("load attempt: %w", err)
		}
		if !attempt.Running() {
			return fmt.Errorf("attempt %d: %w", attemptID, ErrAttemptFinished)
		}

		now := formatTime(s.now())
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE download_attempts SET finished_at = ?, outcome = ?, error_message = ? WHERE id = ?`,
			now, params.Outcome, nullableString(message), attemptID,
		); err != nil {
			return fmt.Errorf("finish attempt: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE scraped_events
             SET status = ?, not_before = ?, last_finished_at = ?, error_message = ?, updated_at = ?
             WHERE id = ?`,
			params.EventStatus, nullableTime(params.NotBefore), now, nullableString(message), now,
			attempt.ScrapedEventID,
		); err != nil {
			return fmt.Errorf("update scraped event: %w", err)
		}
		return nil
	})
}

// ReapStale force-finishes attempts on platform that have been running longer
// than maxAge. Each is marked killed and its event returns to not_started.
func (s *Store) ReapStale(ctx context.Context, platform string, maxAge time.Duration) ([]*Attempt, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	var reaped []*Attempt
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		reaped = reaped[:0]
		now := s.now()
		rows, err := tx.QueryContext(
			ctx,
			`SELECT `+attemptColumns+` FROM download_attempts
             WHERE platform = ? AND finished_at IS NULL AND started_at <= ?`,
			platform, formatTime(now.Add(-maxAge)),
		)
		if err != nil {
			return fmt.Errorf("select stale attempts: %w", err)
		}
		for rows.Next() {
			attempt, err := scanAttempt(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan stale attempt: %w", err)
			}
			reaped = append(reaped, attempt)
		}
		if err := rows.Close(); err != nil {
			return err
		}

		stamp := formatTime(now)
		for _, attempt := range reaped {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE download_attempts SET finished_at = ?, outcome = ?, error_message = ? WHERE id = ?`,
				stamp, OutcomeKilled, KilledMessage, attempt.ID,
			); err != nil {
				return fmt.Errorf("kill attempt %d: %w", attempt.ID, err)
			}
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE scraped_events SET status = ?, last_finished_at = ?, error_message = ?, updated_at = ? WHERE id = ?`,
				StatusNotStarted, stamp, KilledMessage, stamp, attempt.ScrapedEventID,
			); err != nil {
				return fmt.Errorf("reset event %d: %w", attempt.ScrapedEventID, err)
			}
			finished := now
			attempt.FinishedAt = &finished
			attempt.Outcome = OutcomeKilled
			attempt.ErrorMessage = KilledMessage
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reaped, nil
}

// RecoverOrphans resets in_progress events that have no running attempt,
// which is the state a crash between commits cannot leave but a manual edit can.
func (s *Store) RecoverOrphans(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scraped_events SET status = ?, updated_at = ?
         WHERE status = ? AND NOT EXISTS (
             SELECT 1 FROM download_attempts a
             WHERE a.scraped_event_id = scraped_events.id AND a.finished_at IS NULL
         )`,
		StatusNotStarted, formatTime(s.now()), StatusInProgress,
	)
	if err != nil {
		return 0, fmt.Errorf("recover orphaned events: %w", err)
	}
	return res.RowsAffected()
}

// GetAttempt fetches an attempt by identifier. A missing row yields nil, nil.
func (s *Store) GetAttempt(ctx context.Context, id int64) (*Attempt, error) {
	attempt, err := scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM download_attempts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// RunningAttempts returns unfinished attempts, optionally for one platform.
func (s *Store) RunningAttempts(ctx context.Context, platform string) ([]*Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM download_attempts WHERE finished_at IS NULL`
	var args []any
	if p := strings.ToLower(strings.TrimSpace(platform)); p != "" {
		query += " AND platform = ?"
		args = append(args, p)
	}
	query += " ORDER BY started_at"
	return s.queryAttempts(ctx, query, args...)
}

// Attempts returns the most recent attempts, optionally for one platform.
func (s *Store) Attempts(ctx context.Context, platform string, limit int) ([]*Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM download_attempts`
	var args []any
	if p := strings.ToLower(strings.TrimSpace(platform)); p != "" {
		query += " WHERE platform = ?"
		args = append(args, p)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryAttempts(ctx, query, args...)
}

// AttemptsForEvent returns the attempt history of one scraped event, oldest first.
func (s *Store) AttemptsForEvent(ctx context.Context, eventID int64) ([]*Attempt, error) {
	return s.queryAttempts(ctx, `SELECT `+attemptColumns+` FROM download_attempts WHERE scraped_event_id = ? ORDER BY id`, eventID)
}

func (s *Store) queryAttempts(ctx context.Context, query string, args ...any) ([]*Attempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}
