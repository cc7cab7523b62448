package adapter

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"racefeed/internal/checkpoint"
	"racefeed/internal/distance"
	"racefeed/internal/logging"
	"racefeed/internal/queue"
	"racefeed/internal/resolver"
	"racefeed/internal/services"
	"racefeed/internal/standardform"
)

// Run is the state of one attempt shared between the pipeline and an adapter.
type Run struct {
	Event    *queue.ScrapedEvent
	Form     *standardform.Form
	Key      checkpoint.Key
	Resolver *resolver.Resolver
	Logger   *slog.Logger

	deps       Deps
	deadline   time.Time
	flushEvery int
	processed  int
	flushes    int
}

// Processed returns how many raw results were ticked in this attempt.
func (r *Run) Processed() int { return r.processed }

// Tick counts one processed raw result. Every flush interval it writes the
// form to the checkpoint store and checks the deadline, returning a timeout
// error once the budget is spent.
func (r *Run) Tick() error {
	r.processed++
	if r.processed%r.flushEvery != 0 {
		return nil
	}
	if err := r.Flush(); err != nil {
		return err
	}
	return r.CheckDeadline()
}

// CheckDeadline returns a timeout error when the attempt ran past its deadline.
func (r *Run) CheckDeadline() error {
	if now := r.deps.now(); now.After(r.deadline) {
		stats := r.Form.Stats()
		return services.Timeout("deadline", fmt.Sprintf(
			"deadline exceeded after %d results (%d/%d detailed)",
			r.processed, stats.DetailedResult, stats.Results,
		)).WithPlatform(r.Event.Platform).WithURL(r.Event.URL)
	}
	return nil
}

// Flush writes the form to the checkpoint store.
func (r *Run) Flush() error {
	if err := r.deps.Checkpoints.SaveForm(r.Key, r.Form); err != nil {
		return services.Retry("checkpoint", "save standard form", err).WithPlatform(r.Event.Platform)
	}
	r.flushes++
	r.Logger.Debug("standard form flushed",
		logging.Int("processed", r.processed),
		logging.Int("flushes", r.flushes),
	)
	return nil
}

// AcceptResult appends res to race unless it carries neither bib nor id.
// Such results are fatal unless the race is allow-listed, in which case they
// are skipped silently. It reports whether the result was added.
func (r *Run) AcceptResult(race *standardform.Race, res *standardform.Result) (bool, error) {
	if strings.TrimSpace(res.Bib) == "" && strings.TrimSpace(res.ID) == "" {
		if r.deps.Allow.EmptyIDRace(r.Event.Platform, race.PlatformID) {
			return false, nil
		}
		return false, services.Fatal("normalize", fmt.Sprintf(
			"race %s: result %q has neither bib nor platform id", race.PlatformID, res.FullName(),
		), nil).WithPlatform(r.Event.Platform).WithURL(r.Event.URL)
	}
	if err := race.AddResult(res); err != nil {
		return false, services.Fatal("normalize", err.Error(), err).WithPlatform(r.Event.Platform)
	}
	return true, nil
}

// Distance normalizes a race's raw distance text. Unparseable text is fatal
// unless the race is allow-listed, in which case skip is true.
func (r *Run) Distance(raceID, raw string) (d distance.Distance, skip bool, err error) {
	d, err = r.deps.Distances.Normalize(raw)
	if err == nil {
		return d, false, nil
	}
	if r.deps.Allow.BadDistance(r.Event.Platform, raceID) {
		r.Logger.Info("skipping allow-listed race with bad distance",
			logging.String("race", raceID),
			logging.String("distance", raw),
		)
		return distance.Distance{}, true, nil
	}
	return distance.Distance{}, false, services.Fatal("normalize",
		fmt.Sprintf("race %s: %v", raceID, err), err).WithPlatform(r.Event.Platform).WithURL(r.Event.URL)
}
