package platforms_test

import (
	"strings"
	"testing"

	"racefeed/internal/config"
	"racefeed/internal/platforms"
	"racefeed/internal/testsupport"
)

func TestKnownMatchesDefaultConfig(t *testing.T) {
	cfg := config.Default()
	known := platforms.Known()
	if len(known) != len(cfg.Platforms) {
		t.Fatalf("expected an adapter per configured platform, got %v", known)
	}
	for _, id := range known {
		if _, ok := cfg.Platform(id); !ok {
			t.Fatalf("adapter %q has no default configuration", id)
		}
	}
}

func TestNewBuildsEveryPlatform(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	deps := testsupport.NewDeps(t, cfg)
	for _, id := range platforms.Known() {
		p, err := platforms.NewPipeline(id, deps)
		if err != nil {
			t.Fatalf("NewPipeline(%s): %v", id, err)
		}
		if p.Platform() != id {
			t.Fatalf("expected platform %s, got %s", id, p.Platform())
		}
	}
}

func TestNewRejectsUnknownPlatform(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := platforms.New("strava", testsupport.NewDeps(t, cfg))
	if err == nil || !strings.Contains(err.Error(), "unknown platform") {
		t.Fatalf("expected unknown platform error, got %v", err)
	}
}
