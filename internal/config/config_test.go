package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"racefeed/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("RACEFEED_NTFY_TOPIC", "https://ntfy.example.com/racefeed")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "racefeed")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.QueueDBPath() != filepath.Join(wantData, "queue.db") {
		t.Fatalf("unexpected queue db path: %q", cfg.QueueDBPath())
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example.com/racefeed" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
	if got := cfg.EnabledPlatforms(); len(got) != 4 {
		t.Fatalf("expected four default platforms, got %v", got)
	}
	if cfg.Distances.DefaultLength != 21098 {
		t.Fatalf("unexpected default distance: %d", cfg.Distances.DefaultLength)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.CheckpointDir, cfg.Paths.LockDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPathOverridesPlatform(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "racefeed.toml")
	body := `
[paths]
data_dir = "` + filepath.Join(tempDir, "data") + `"

[scheduler]
settling_days = 3

[platforms.TrackShack]
enabled = true
base_url = "https://example.com/ts/"
request_interval_ms = 2000
timeout_minutes = 5

[platforms.athlinks]
enabled = false
`
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	ts, ok := cfg.Platform("trackshack")
	if !ok {
		t.Fatal("expected trackshack platform to be normalized to lower case")
	}
	if ts.BaseURL != "https://example.com/ts" {
		t.Fatalf("expected trailing slash trimmed, got %q", ts.BaseURL)
	}
	if cfg.RequestInterval("trackshack") != 2*time.Second {
		t.Fatalf("unexpected request interval: %v", cfg.RequestInterval("trackshack"))
	}
	if cfg.PlatformTimeout("trackshack") != 5*time.Minute {
		t.Fatalf("unexpected platform timeout: %v", cfg.PlatformTimeout("trackshack"))
	}
	if cfg.SettlingWindow() != 72*time.Hour {
		t.Fatalf("unexpected settling window: %v", cfg.SettlingWindow())
	}
	for _, id := range cfg.EnabledPlatforms() {
		if id == "athlinks" {
			t.Fatal("expected athlinks to be disabled")
		}
	}
}

func TestValidateRejectsRelativePlatformURL(t *testing.T) {
	cfg := config.Default()
	cfg.Platforms["trackshack"] = config.Platform{Enabled: true, BaseURL: "results/page"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "platforms.trackshack.base_url") {
		t.Fatalf("expected error to name the key, got %v", err)
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}
