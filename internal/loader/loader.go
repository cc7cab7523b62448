package loader

import (
	"context"
	"fmt"
	"log/slog"

	"racefeed/internal/allowlist"
	"racefeed/internal/logging"
	"racefeed/internal/resolver"
	"racefeed/internal/results"
	"racefeed/internal/services"
	"racefeed/internal/standardform"
	"racefeed/internal/textutil"
)

// Report summarizes one load.
type Report struct {
	Races    int
	Deleted  int
	Inserted int
	Relinked int
	Skipped  int
}

func (r *Report) add(other Report) {
	r.Races += other.Races
	r.Deleted += other.Deleted
	r.Inserted += other.Inserted
	r.Relinked += other.Relinked
	r.Skipped += other.Skipped
}

// Loader writes Standard Form results into the canonical store.
type Loader struct {
	resolver *resolver.Resolver
	allow    *allowlist.List
	platform string
	logger   *slog.Logger
}

// New creates a loader. Runner links are resolved through res, whose store
// also receives the results.
func New(res *resolver.Resolver, allow *allowlist.List, platform string, logger *slog.Logger) *Loader {
	if allow == nil {
		allow = allowlist.Empty()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{
		resolver: res,
		allow:    allow,
		platform: platform,
		logger:   logging.NewComponentLogger(logger, "loader"),
	}
}

// LoadResults loads every race of form that is resolved but not loaded yet
// and marks each one loaded after its transaction commits.
func (l *Loader) LoadResults(ctx context.Context, form *standardform.Form) (Report, error) {
	var total Report
	for _, race := range form.Races {
		if race.Loaded() {
			continue
		}
		if race.CanonicalRaceID == 0 {
			return total, services.Fatal("load_results", fmt.Sprintf("race %s has no canonical race", race.PlatformID), nil).WithPlatform(l.platform)
		}
		report, err := l.LoadRace(ctx, race)
		if err != nil {
			return total, err
		}
		race.MarkLoaded()
		total.add(report)
	}
	return total, nil
}

// lostLink is a runner/user link captured before deletion.
type lostLink struct {
	runnerID int64
	userID   int64
}

type linkKey struct {
	last, first  string
	status       results.Status
	centiseconds int64
}

func keyOf(r *results.Result) linkKey {
	return linkKey{
		last:         textutil.FoldName(r.LastName),
		first:        textutil.FoldName(r.FirstName),
		status:       r.Status,
		centiseconds: r.Centiseconds,
	}
}

// LoadRace replaces the auto-loaded results of one race in a single transaction.
func (l *Loader) LoadRace(ctx context.Context, race *standardform.Race) (Report, error) {
	report := Report{Races: 1}
	store := l.resolver.Store()
	err := store.WithTx(ctx, l.resolver.Actor(), func(tx *results.Tx) error {
		rows, err := l.buildRows(tx, race, &report)
		if err != nil {
			return err
		}

		previous, err := tx.ResultsForRace(race.CanonicalRaceID)
		if err != nil {
			return err
		}
		lost := make(map[linkKey][]lostLink)
		for _, row := range previous {
			if !row.AutoLoaded || (row.RunnerID == 0 && row.UserID == 0) {
				continue
			}
			key := keyOf(row)
			lost[key] = append(lost[key], lostLink{runnerID: row.RunnerID, userID: row.UserID})
		}

		deleted, err := tx.DeleteAutoResults(race.CanonicalRaceID)
		if err != nil {
			return err
		}
		report.Deleted = int(deleted)

		for _, row := range rows {
			if err := tx.InsertResult(row); err != nil {
				return err
			}
			report.Inserted++
		}

		for _, row := range rows {
			key := keyOf(row)
			candidates := lost[key]
			if len(candidates) == 0 {
				continue
			}
			link := candidates[0]
			lost[key] = candidates[1:]
			runnerID, userID := row.RunnerID, row.UserID
			if runnerID == 0 {
				runnerID = link.runnerID
			}
			if userID == 0 {
				userID = link.userID
			}
			if runnerID == row.RunnerID && userID == row.UserID {
				continue
			}
			if err := tx.SetResultLinks(row.ID, runnerID, userID); err != nil {
				return err
			}
			row.RunnerID, row.UserID = runnerID, userID
			report.Relinked++
		}
		return tx.SetAggregates(race.CanonicalRaceID, Aggregate(rows))
	})
	if err != nil {
		return Report{}, err
	}
	l.logger.Info("race results loaded",
		logging.Int64("race_id", race.CanonicalRaceID),
		logging.Int("deleted", report.Deleted),
		logging.Int("inserted", report.Inserted),
		logging.Int("relinked", report.Relinked),
		logging.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (l *Loader) buildRows(tx *results.Tx, race *standardform.Race, report *Report) ([]*results.Result, error) {
	rows := make([]*results.Result, 0, len(race.Results))
	for _, raw := range race.Results {
		if raw.ID != "" && l.allow.BadResult(l.platform, raw.ID) {
			report.Skipped++
			continue
		}
		row, err := Derive(race.CanonicalRaceID, raw)
		if err != nil {
			return nil, services.Fatal("load_results", err.Error(), err).WithPlatform(l.platform)
		}
		// A runner id recorded earlier in the attempt is only a hint: a later
		// merge may have folded that runner into another one.
		switch {
		case len(raw.PlatformRunnerIDs) > 0:
			runner, err := l.resolver.RunnerWithPlatformIDs(tx, raw.PlatformRunnerIDs, resolver.RunnerFromResult(raw))
			if err != nil {
				return nil, err
			}
			if raw.CanonicalRunnerID != 0 && raw.CanonicalRunnerID != runner.ID {
				l.logger.Debug("result follows merged runner",
					logging.String("result", raw.ID),
					logging.Int64("recorded_runner_id", raw.CanonicalRunnerID),
					logging.Int64("runner_id", runner.ID),
				)
			}
			row.RunnerID = runner.ID
		case raw.CanonicalRunnerID != 0:
			id, err := l.resolver.ExistingRunner(tx, raw.CanonicalRunnerID)
			if err != nil {
				return nil, err
			}
			row.RunnerID = id
		}
		rows = append(rows, row)
	}
	return rows, nil
}
