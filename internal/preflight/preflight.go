package preflight

import (
	"context"

	"racefeed/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the directory checks and, when online is true, contacts
// every enabled platform.
func RunAll(ctx context.Context, cfg *config.Config, online bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Checkpoint directory", cfg.Paths.CheckpointDir),
		CheckDirectoryAccess("Lock directory", cfg.Paths.LockDir),
	}

	if !online {
		return results
	}
	for _, id := range cfg.EnabledPlatforms() {
		platform, _ := cfg.Platform(id)
		results = append(results, CheckPlatform(ctx, id, platform.BaseURL))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
