package workflow

import (
	"context"
	"errors"
	"time"

	"racefeed/internal/logging"
	"racefeed/internal/queue"
)

// Start launches one lane per registered platform.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("scheduler already running")
	}
	platforms := make([]string, 0, len(m.pipelines))
	for id := range m.pipelines {
		platforms = append(platforms, id)
	}
	if len(platforms) == 0 {
		m.mu.Unlock()
		return errors.New("no platform pipelines registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(len(platforms))
	m.mu.Unlock()

	if recovered, err := m.store.RecoverOrphans(ctx); err != nil {
		m.logger.Warn("orphan recovery failed; in_progress events without attempts stay stuck",
			logging.Error(err),
			logging.EventType("orphan_recovery_failed"),
			logging.Hint("check queue database access"),
		)
	} else if recovered > 0 {
		m.logger.Info("recovered orphaned events", logging.Int64("count", recovered))
	}

	for _, platform := range platforms {
		go m.runLane(runCtx, platform)
	}
	m.logger.Info("scheduler started", logging.Int("lanes", len(platforms)))
	return nil
}

// Stop terminates every lane and waits for in-flight attempts to record
// their outcome.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runLane(ctx context.Context, platform string) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Platform(platform))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := m.RunOnce(ctx, platform)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, ErrPlatformLocked), errors.Is(err, queue.ErrPlatformBusy), errors.Is(err, queue.ErrNotEligible):
			logger.Debug("lane skipped", logging.Error(err))
			m.wait(ctx, m.pollInterval)
		case result == nil && err != nil:
			m.setLastError(err)
			logger.Error("lane iteration failed",
				logging.Error(err),
				logging.EventType("lane_failed"),
				logging.Hint("check queue database access"),
			)
			m.wait(ctx, time.Duration(m.cfg.Scheduler.ErrorRetryInterval)*time.Second)
		case result == nil:
			m.wait(ctx, m.pollInterval)
		case result.Outcome != queue.OutcomeSuccess:
			// failed events go back to the queue; give the platform a pass
			m.wait(ctx, m.pollInterval)
		}
	}
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
