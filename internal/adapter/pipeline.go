package adapter

import (
	"context"
	"errors"
	"time"

	"racefeed/internal/allowlist"
	"racefeed/internal/checkpoint"
	"racefeed/internal/loader"
	"racefeed/internal/logging"
	"racefeed/internal/queue"
	"racefeed/internal/resolver"
	"racefeed/internal/services"
	"racefeed/internal/stage"
	"racefeed/internal/standardform"
)

// Step names, also used as the logging step field.
const (
	StepFetchAndNormalize = "fetch_and_normalize"
	StepResolveEvent      = "resolve_event"
	StepResolveRaces      = "resolve_races"
	StepResolveNewRunners = "resolve_new_runners"
	StepLoadResults       = "load_results"
)

// Summary describes a finished pipeline run.
type Summary struct {
	CanonicalEventID int64
	Stats            standardform.Stats
	Load             loader.Report
	Warnings         []resolver.Warning
	Processed        int
	Resumed          bool
	// Form is the final Standard Form of a successful run. Its checkpoint is
	// already cleared.
	Form *standardform.Form
}

// Pipeline runs the five ingestion steps for one adapter.
type Pipeline struct {
	adapter Adapter
	deps    Deps
}

// NewPipeline binds an adapter to its collaborators.
func NewPipeline(a Adapter, deps Deps) (*Pipeline, error) {
	if a == nil {
		return nil, errors.New("pipeline: adapter is required")
	}
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if deps.Allow == nil {
		deps.Allow = allowlist.Empty()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	return &Pipeline{adapter: a, deps: deps}, nil
}

// Platform returns the adapter's platform id.
func (p *Pipeline) Platform() string { return p.adapter.Platform() }

// Process drives event through every step, resuming from a checkpointed form
// when one exists. The deadline bounds the whole run; it is checked
// cooperatively by Run.Tick. On success the event's checkpoints are cleared
// so a later re-scrape fetches fresh pages.
func (p *Pipeline) Process(ctx context.Context, event *queue.ScrapedEvent, deadline time.Time) (Summary, error) {
	platform := p.adapter.Platform()
	key := checkpoint.Key{Platform: platform, Series: event.SeriesID, Event: event.EventID}
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.deps.Logger, "pipeline"))

	form, resumed, err := p.deps.Checkpoints.LoadForm(key)
	if err != nil {
		logger.Warn("checkpointed form unreadable; starting over",
			logging.Error(err),
			logging.EventType("checkpoint_corrupt"),
			logging.Impact("already fetched pages are replayed from the raw cache"),
		)
		resumed = false
	}
	if resumed && !formMatches(form, platform, event) {
		logger.Warn("checkpointed form belongs to another event; starting over",
			logging.String("form_platform", form.Platform),
			logging.String("form_series", form.SeriesID),
			logging.String("form_event", form.Event.PlatformID),
			logging.EventType("checkpoint_mismatch"),
			logging.Impact("the event is scraped from scratch"),
		)
		if err := p.deps.Checkpoints.Clear(key); err != nil {
			return Summary{}, services.Retry("checkpoint", "discard foreign checkpoint", err).WithPlatform(platform)
		}
		resumed = false
	}
	if !resumed {
		form = standardform.New(platform, event.SeriesID, standardform.Event{PlatformID: event.EventID, URL: event.URL})
	}

	res := resolver.New(p.deps.Results, p.deps.Allow, platform, p.deps.Logger)
	run := &Run{
		Event:      event,
		Form:       form,
		Key:        key,
		Resolver:   res,
		Logger:     logger,
		deps:       p.deps,
		deadline:   deadline,
		flushEvery: p.deps.Config.FlushEvery(platform),
	}
	if resumed {
		stats := form.Stats()
		logger.Info("resuming from checkpoint",
			logging.Int("races", stats.Races),
			logging.Int("results", stats.Results),
			logging.Int("detailed_results", stats.DetailedResult),
			logging.Int("loaded_races", stats.LoadedRaces),
		)
	}

	load := loader.New(res, p.deps.Allow, platform, p.deps.Logger)
	var report loader.Report
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StepFetchAndNormalize, func(ctx context.Context) error { return p.adapter.FetchAndNormalize(ctx, run) }},
		{StepResolveEvent, func(ctx context.Context) error { return res.ResolveEvent(ctx, form, event.CanonicalEventID) }},
		{StepResolveRaces, func(ctx context.Context) error { return res.ResolveRaces(ctx, form) }},
		{StepResolveNewRunners, func(ctx context.Context) error { return p.adapter.ResolveNewRunners(ctx, run) }},
		{StepLoadResults, func(ctx context.Context) error {
			var err error
			report, err = load.LoadResults(ctx, form)
			return err
		}},
	}

	for _, step := range steps {
		stepCtx := services.WithStep(ctx, step.name)
		started := time.Now()
		err := step.fn(stepCtx)
		if flushErr := run.Flush(); flushErr != nil && err == nil {
			err = flushErr
		}
		if err != nil {
			return Summary{Stats: form.Stats(), Processed: run.processed, Resumed: resumed}, p.classify(err, event, step.name)
		}
		logger.Debug("step completed",
			logging.String(logging.FieldStep, step.name),
			logging.Duration("duration", time.Since(started)),
		)
	}

	if err := p.deps.Checkpoints.Clear(key); err != nil {
		logger.Warn("checkpoint cleanup failed",
			logging.Error(err),
			logging.EventType("checkpoint_cleanup_failed"),
			logging.Impact("a later re-scrape may replay cached pages"),
		)
	}
	return Summary{
		CanonicalEventID: form.Event.CanonicalEventID,
		Stats:            form.Stats(),
		Load:             report,
		Warnings:         res.Warnings(),
		Processed:        run.processed,
		Resumed:          resumed,
		Form:             form,
	}, nil
}

func formMatches(form *standardform.Form, platform string, event *queue.ScrapedEvent) bool {
	return form.Platform == platform && form.SeriesID == event.SeriesID && form.Event.PlatformID == event.EventID
}

// classify makes sure every failure leaving the pipeline is a *services.Error
// carrying the platform and the event URL.
func (p *Pipeline) classify(err error, event *queue.ScrapedEvent, step string) error {
	var classified *services.Error
	switch {
	case errors.As(err, &classified):
	case errors.Is(err, context.Canceled):
		classified = services.Retry(step, "interrupted", err)
	case errors.Is(err, context.DeadlineExceeded):
		classified = services.Timeout(step, "context deadline exceeded")
		classified.Err = err
	default:
		classified = services.Fatal(step, err.Error(), err)
	}
	if classified.Platform == "" {
		classified.Platform = p.adapter.Platform()
	}
	if classified.URL == "" {
		classified.URL = event.URL
	}
	return classified
}

// HealthCheck reports whether the platform is configured and its checkpoint
// directory is usable.
func (p *Pipeline) HealthCheck(context.Context) stage.Health {
	platform := p.adapter.Platform()
	settings, ok := p.deps.Config.Platform(platform)
	switch {
	case !ok:
		return stage.Unhealthy(platform, "platform not configured")
	case !settings.Enabled:
		return stage.Unhealthy(platform, "platform disabled")
	case settings.BaseURL == "":
		return stage.Unhealthy(platform, "base_url not set")
	}
	return stage.FromError(platform, p.deps.Checkpoints.HealthCheck())
}
