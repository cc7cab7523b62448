package testsupport

import (
	"testing"
	"time"

	"racefeed/internal/adapter"
	"racefeed/internal/allowlist"
	"racefeed/internal/checkpoint"
	"racefeed/internal/config"
	"racefeed/internal/distance"
	"racefeed/internal/logging"
)

// NewDeps wires adapter dependencies against cfg's temp directories with an
// empty allow-list and a millisecond backoff unit.
func NewDeps(t testing.TB, cfg *config.Config) adapter.Deps {
	t.Helper()

	normalizer, err := distance.NewNormalizer(cfg.Distances.DefaultLength)
	if err != nil {
		t.Fatalf("distance.NewNormalizer: %v", err)
	}
	logger := logging.NewNop()
	return adapter.Deps{
		Config:      cfg,
		Checkpoints: checkpoint.New(cfg.Paths.CheckpointDir, logger),
		Results:     MustOpenResults(t, cfg),
		Allow:       allowlist.Empty(),
		Distances:   normalizer,
		Logger:      logger,
		BackoffUnit: time.Millisecond,
	}
}

// MustParseAllowList parses a YAML allow-list fixture.
func MustParseAllowList(t testing.TB, yaml string) *allowlist.List {
	t.Helper()

	list, err := allowlist.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("allowlist.Parse: %v", err)
	}
	return list
}
