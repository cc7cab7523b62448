package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	LogDir        string `toml:"log_dir"`
	CheckpointDir string `toml:"checkpoint_dir"`
	LockDir       string `toml:"lock_dir"`
}

// Store names the SQLite databases backing the queue and the canonical results.
type Store struct {
	QueueDB   string `toml:"queue_db"`
	ResultsDB string `toml:"results_db"`
}

// Notifications contains configuration for ntfy operator alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Fatal          bool   `toml:"fatal"`
	DelayedRetry   bool   `toml:"delayed_retry"`
	Reaper         bool   `toml:"reaper"`
}

// Scheduler contains timing for queue polling, settling and reaping.
type Scheduler struct {
	PollInterval          int `toml:"poll_interval"`
	ErrorRetryInterval    int `toml:"error_retry_interval"`
	SettlingDays          int `toml:"settling_days"`
	DelayedRetryMinutes   int `toml:"delayed_retry_minutes"`
	ReaperGraceMinutes    int `toml:"reaper_grace_minutes"`
	DefaultTimeoutMinutes int `toml:"default_timeout_minutes"`
}

// Platform configures one timing platform adapter.
type Platform struct {
	Enabled           bool   `toml:"enabled"`
	BaseURL           string `toml:"base_url"`
	RequestIntervalMS int    `toml:"request_interval_ms"`
	TimeoutMinutes    int    `toml:"timeout_minutes"`
	FlushEvery        int    `toml:"flush_every"`
	UserAgent         string `toml:"user_agent"`
}

// Distances holds the lookup values the adapters need at start.
type Distances struct {
	DefaultLength int `toml:"default_length"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for racefeed.
//
// Configuration sections by subsystem:
//   - Paths: data, log, checkpoint and lock directories
//   - Store: queue and results database file names
//   - Notifications: ntfy operator alerts
//   - Scheduler: polling, settling window, delayed retry and reaper timing
//   - Platforms: per-platform adapter settings keyed by platform id
//   - Distances: default distance used when a platform omits one
//   - Logging: log format and level
type Config struct {
	Paths         Paths               `toml:"paths"`
	Store         Store               `toml:"store"`
	Notifications Notifications       `toml:"notifications"`
	Scheduler     Scheduler           `toml:"scheduler"`
	Platforms     map[string]Platform `toml:"platforms"`
	Distances     Distances           `toml:"distances"`
	Logging       Logging             `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("racefeed.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.CheckpointDir, c.Paths.LockDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the absolute path of the queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, c.Store.QueueDB)
}

// ResultsDBPath returns the absolute path of the canonical results database.
func (c *Config) ResultsDBPath() string {
	return filepath.Join(c.Paths.DataDir, c.Store.ResultsDB)
}

// Platform returns the settings for a platform id and whether it is configured.
func (c *Config) Platform(id string) (Platform, bool) {
	p, ok := c.Platforms[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// EnabledPlatforms returns the sorted ids of platforms with enabled = true.
func (c *Config) EnabledPlatforms() []string {
	ids := make([]string, 0, len(c.Platforms))
	for id, p := range c.Platforms {
		if p.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// PlatformTimeout returns the wall-clock budget of one attempt on a platform.
func (c *Config) PlatformTimeout(id string) time.Duration {
	minutes := c.Scheduler.DefaultTimeoutMinutes
	if p, ok := c.Platform(id); ok && p.TimeoutMinutes > 0 {
		minutes = p.TimeoutMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// RequestInterval returns the courtesy delay between two requests to a platform.
func (c *Config) RequestInterval(id string) time.Duration {
	if p, ok := c.Platform(id); ok {
		return time.Duration(p.RequestIntervalMS) * time.Millisecond
	}
	return time.Duration(defaultRequestIntervalMS) * time.Millisecond
}

// FlushEvery returns how many processed results trigger a checkpoint flush.
func (c *Config) FlushEvery(id string) int {
	if p, ok := c.Platform(id); ok && p.FlushEvery > 0 {
		return p.FlushEvery
	}
	return defaultFlushEvery
}

// SettlingWindow returns how long a finished event is left unscraped.
func (c *Config) SettlingWindow() time.Duration {
	return time.Duration(c.Scheduler.SettlingDays) * 24 * time.Hour
}

// DelayedRetry returns the wait applied to throttled attempts.
func (c *Config) DelayedRetry() time.Duration {
	return time.Duration(c.Scheduler.DelayedRetryMinutes) * time.Minute
}

// ReaperGrace returns the margin added to a platform timeout before an attempt is killed.
func (c *Config) ReaperGrace() time.Duration {
	return time.Duration(c.Scheduler.ReaperGraceMinutes) * time.Minute
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
