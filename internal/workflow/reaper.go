package workflow

import (
	"context"
	"log/slog"
	"time"

	"racefeed/internal/logging"
	"racefeed/internal/notifications"
	"racefeed/internal/queue"
)

// Reaper force-finishes attempts that outlived their platform's budget.
type Reaper struct {
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
	maxAge   func(platform string) time.Duration
}

// NewReaper creates a reaper. maxAge returns the age beyond which a running
// attempt on a platform is killed.
func NewReaper(store *queue.Store, logger *slog.Logger, notifier notifications.Service, maxAge func(string) time.Duration) *Reaper {
	return &Reaper{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "reaper"),
		notifier: notifier,
		maxAge:   maxAge,
	}
}

// Reap kills stale attempts on platform and returns them.
func (r *Reaper) Reap(ctx context.Context, platform string) ([]*queue.Attempt, error) {
	maxAge := r.maxAge(platform)
	if maxAge <= 0 {
		return nil, nil
	}
	reaped, err := r.store.ReapStale(ctx, platform, maxAge)
	if err != nil {
		return nil, err
	}
	if len(reaped) == 0 {
		return nil, nil
	}
	for _, attempt := range reaped {
		r.logger.Warn("attempt killed as running too long",
			logging.Platform(platform),
			logging.AttemptID(attempt.ID),
			logging.ScrapedEventID(attempt.ScrapedEventID),
			logging.String(logging.FieldCorrelationID, attempt.CorrelationID),
			logging.Time("started_at", attempt.StartedAt),
			logging.Duration("max_age", maxAge),
			logging.Alert("reaper_kill"),
			logging.EventType("reaper_kill"),
			logging.Impact("event returns to not_started and resumes from its checkpoint"),
		)
	}
	if r.notifier != nil {
		if err := r.notifier.Publish(ctx, notifications.EventReaperKill, notifications.Payload{
			"platform": platform,
			"attempts": r.describe(ctx, reaped),
		}); err != nil {
			r.logger.Debug("reaper notification failed", logging.Error(err))
		}
	}
	return reaped, nil
}

// describe looks up the scraped event of every reaped attempt so the alert
// can name it. A failed lookup still reports the ids.
func (r *Reaper) describe(ctx context.Context, reaped []*queue.Attempt) []notifications.KilledAttempt {
	out := make([]notifications.KilledAttempt, 0, len(reaped))
	for _, attempt := range reaped {
		killed := notifications.KilledAttempt{AttemptID: attempt.ID, ScrapedEventID: attempt.ScrapedEventID}
		event, err := r.store.GetByID(ctx, attempt.ScrapedEventID)
		switch {
		case err != nil:
			r.logger.Debug("reaped event lookup failed", logging.ScrapedEventID(attempt.ScrapedEventID), logging.Error(err))
		case event != nil:
			killed.EventID = event.EventID
			killed.URL = event.URL
		}
		out = append(out, killed)
	}
	return out
}
