package workflow

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"racefeed/internal/config"
	"racefeed/internal/logging"
	"racefeed/internal/notifications"
	"racefeed/internal/queue"
	"racefeed/internal/stageexec"
)

// Manager coordinates per-platform scheduling lanes.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service

	reaper      *Reaper
	locks       *PlatformLocks
	attemptLogs *AttemptLogs
	now         func() time.Time

	pipelines map[string]stageexec.Processor

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastErr     error
	lastAttempt *queue.Attempt
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the clock used for attempt deadlines.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithAttemptLogs writes every attempt's records to its own file in addition
// to the daemon log.
func WithAttemptLogs(enabled bool) ManagerOption {
	return func(m *Manager) {
		if enabled {
			m.attemptLogs = NewAttemptLogs(m.cfg)
		} else {
			m.attemptLogs = nil
		}
	}
}

// NewManager constructs a scheduler using ntfy notifications from cfg.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg), opts...)
}

// NewManagerWithNotifier constructs a scheduler with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "scheduler"),
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Scheduler.PollInterval) * time.Second,
		locks:        NewPlatformLocks(cfg.Paths.LockDir),
		now:          time.Now,
		pipelines:    make(map[string]stageexec.Processor),
	}
	m.reaper = NewReaper(store, m.logger, notifier, func(platform string) time.Duration {
		return cfg.PlatformTimeout(platform) + cfg.ReaperGrace()
	})
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a platform pipeline. A later registration for the same
// platform replaces the earlier one.
func (m *Manager) Register(p stageexec.Processor) {
	m.mu.Lock()
	m.pipelines[p.Platform()] = p
	m.mu.Unlock()
}

// Platforms returns the registered platform ids, sorted.
func (m *Manager) Platforms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.pipelines))
	for id := range m.pipelines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) pipeline(platform string) (stageexec.Processor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pipelines[platform]
	return p, ok
}
