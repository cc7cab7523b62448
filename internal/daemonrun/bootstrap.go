package daemonrun

import (
	"errors"
	"fmt"
	"log/slog"

	"racefeed/internal/adapter"
	"racefeed/internal/allowlist"
	"racefeed/internal/checkpoint"
	"racefeed/internal/config"
	"racefeed/internal/distance"
	"racefeed/internal/logging"
	"racefeed/internal/notifications"
	"racefeed/internal/platforms"
	"racefeed/internal/queue"
	"racefeed/internal/results"
	"racefeed/internal/workflow"
)

// Runtime bundles the stores and scheduler a racefeed process needs. Both the
// daemon and the one-shot CLI commands build one.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Queue   *queue.Store
	Results *results.Store
	Manager *workflow.Manager
	Deps    adapter.Deps
}

// BootstrapOptions tunes Bootstrap.
type BootstrapOptions struct {
	// Platforms restricts registration to these ids; empty registers every
	// enabled platform.
	Platforms   []string
	Notifier    notifications.Service
	AttemptLogs bool
}

// Bootstrap opens the stores, loads the bundled allow-list and registers one
// pipeline per platform with a new scheduler manager.
func Bootstrap(cfg *config.Config, logger *slog.Logger, opts BootstrapOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	normalizer, err := distance.NewNormalizer(cfg.Distances.DefaultLength)
	if err != nil {
		return nil, fmt.Errorf("distance defaults: %w", err)
	}
	allow, err := allowlist.Default()
	if err != nil {
		return nil, fmt.Errorf("load allow-list: %w", err)
	}

	queueStore, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	resultStore, err := results.Open(cfg)
	if err != nil {
		queueStore.Close()
		return nil, fmt.Errorf("open results store: %w", err)
	}

	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Queue:   queueStore,
		Results: resultStore,
		Deps: adapter.Deps{
			Config:      cfg,
			Checkpoints: checkpoint.New(cfg.Paths.CheckpointDir, logger),
			Results:     resultStore,
			Allow:       allow,
			Distances:   normalizer,
			Logger:      logger,
		},
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	rt.Manager = workflow.NewManagerWithNotifier(cfg, queueStore, logger, notifier, workflow.WithAttemptLogs(opts.AttemptLogs))

	ids := opts.Platforms
	if len(ids) == 0 {
		ids = cfg.EnabledPlatforms()
	}
	for _, id := range ids {
		pipeline, err := platforms.NewPipeline(id, rt.Deps)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("platform %s: %w", id, err)
		}
		rt.Manager.Register(pipeline)
	}
	return rt, nil
}

// Close releases both stores.
func (r *Runtime) Close() error {
	return errors.Join(r.Queue.Close(), r.Results.Close())
}
