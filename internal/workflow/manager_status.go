package workflow

import (
	"context"

	"racefeed/internal/logging"
	"racefeed/internal/queue"
	"racefeed/internal/stage"
	"racefeed/internal/stageexec"
)

// StatusSummary represents lightweight scheduler diagnostics.
type StatusSummary struct {
	Running         bool
	LastError       string
	LastAttempt     *queue.Attempt
	QueueStats      map[queue.Status]int
	RunningAttempts []*queue.Attempt
	PlatformHealth  map[string]stage.Health
}

// Status returns the latest scheduler information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastAttempt := m.lastAttempt
	pipelines := make(map[string]stageexec.Processor, len(m.pipelines))
	for id, p := range m.pipelines {
		pipelines[id] = p
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	attempts, err := m.store.RunningAttempts(ctx, "")
	if err != nil {
		m.logger.Warn("failed to read running attempts", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(pipelines))
	for id, p := range pipelines {
		health[id] = p.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, QueueStats: stats, RunningAttempts: attempts, PlatformHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastAttempt != nil {
		copy := *lastAttempt
		summary.LastAttempt = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastAttempt(attempt *queue.Attempt) {
	m.mu.Lock()
	if attempt != nil {
		copy := *attempt
		m.lastAttempt = &copy
	} else {
		m.lastAttempt = nil
	}
	m.mu.Unlock()
}
