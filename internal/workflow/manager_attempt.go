package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"racefeed/internal/logging"
	"racefeed/internal/queue"
	"racefeed/internal/stageexec"
)

// ErrPlatformLocked reports that another process holds the platform's lock.
var ErrPlatformLocked = errors.New("platform lock held by another process")

// RunOnce reaps stale attempts on platform, then runs its oldest eligible
// event. It returns a nil result when nothing was eligible; a non-nil result
// comes with the pipeline's error, if any.
func (m *Manager) RunOnce(ctx context.Context, platform string) (*stageexec.Result, error) {
	proc, ok := m.pipeline(platform)
	if !ok {
		return nil, fmt.Errorf("no pipeline registered for platform %q", platform)
	}
	logger := m.logger.With(logging.Platform(platform))

	if _, err := m.reaper.Reap(ctx, platform); err != nil {
		logger.Warn("reaper pass failed; stale attempts may block the platform",
			logging.Error(err),
			logging.EventType("reaper_failed"),
			logging.Hint("check queue database access"),
		)
	}

	unlock, locked, err := m.locks.TryLock(platform)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", platform, ErrPlatformLocked)
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.Warn("platform lock release failed", logging.Error(err))
		}
	}()

	event, err := m.store.NextCandidate(ctx, platform, m.cfg.SettlingWindow())
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, nil
	}
	return m.runEvent(ctx, proc, event)
}

// RunEvent runs one specific event, bypassing candidate selection but not the
// platform lock or the one-attempt-per-platform rule.
func (m *Manager) RunEvent(ctx context.Context, eventID int64) (*stageexec.Result, error) {
	event, err := m.store.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("scraped event %d not found", eventID)
	}
	proc, ok := m.pipeline(event.Platform)
	if !ok {
		return nil, fmt.Errorf("no pipeline registered for platform %q", event.Platform)
	}
	if _, err := m.reaper.Reap(ctx, event.Platform); err != nil {
		return nil, err
	}
	unlock, locked, err := m.locks.TryLock(event.Platform)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", event.Platform, ErrPlatformLocked)
	}
	defer func() { _ = unlock() }()
	return m.runEvent(ctx, proc, event)
}

func (m *Manager) runEvent(ctx context.Context, proc stageexec.Processor, event *queue.ScrapedEvent) (*stageexec.Result, error) {
	correlationID := uuid.NewString()
	logger := m.logger
	if m.attemptLogs != nil {
		attemptLogger, closeLog, path, err := m.attemptLogs.Open(m.logger, event, correlationID)
		if err != nil {
			m.logger.Warn("attempt log unavailable; logging to daemon log only",
				logging.Error(err),
				logging.EventType("attempt_log_failed"),
			)
		} else {
			logger = attemptLogger
			defer closeLog()
			logger.Debug("attempt log opened", logging.String("log_file", path))
		}
	}

	result, err := stageexec.Run(ctx, stageexec.Options{
		Logger:        logger,
		Store:         m.store,
		Notifier:      m.notifier,
		Processor:     proc,
		Event:         event,
		CorrelationID: correlationID,
		Timeout:       m.cfg.PlatformTimeout(event.Platform),
		DelayedRetry:  m.cfg.DelayedRetry(),
		Now:           m.now,
	})
	if result.Attempt == nil {
		// the attempt never started
		return nil, err
	}
	m.setLastAttempt(result.Attempt)
	if err != nil {
		m.setLastError(err)
	}
	return &result, err
}
