package testsupport

import (
	"path/filepath"
	"testing"

	"racefeed/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Request intervals are zeroed so adapter tests do not sleep.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CheckpointDir = filepath.Join(base, "checkpoints")
	cfgVal.Paths.LockDir = filepath.Join(base, "locks")
	cfgVal.Notifications.NtfyTopic = ""
	for id, platform := range cfgVal.Platforms {
		platform.RequestIntervalMS = 0
		cfgVal.Platforms[id] = platform
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithPlatformURL points a platform at a test server.
func WithPlatformURL(id, baseURL string) ConfigOption {
	return func(b *configBuilder) {
		platform := b.cfg.Platforms[id]
		platform.Enabled = true
		platform.BaseURL = baseURL
		b.cfg.Platforms[id] = platform
	}
}

// WithFlushEvery overrides the checkpoint cadence of a platform.
func WithFlushEvery(id string, n int) ConfigOption {
	return func(b *configBuilder) {
		platform := b.cfg.Platforms[id]
		platform.FlushEvery = n
		b.cfg.Platforms[id] = platform
	}
}

// WithSettlingDays overrides the scheduler settling window.
func WithSettlingDays(days int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.SettlingDays = days
	}
}

// WithNtfyTopic enables notifications against the given endpoint.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
