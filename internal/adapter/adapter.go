package adapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"racefeed/internal/allowlist"
	"racefeed/internal/checkpoint"
	"racefeed/internal/config"
	"racefeed/internal/distance"
	"racefeed/internal/fetch"
	"racefeed/internal/results"
)

// Adapter holds the platform-specific steps of the pipeline.
type Adapter interface {
	Platform() string
	// FetchAndNormalize fills the form's event shell, races and raw results.
	FetchAndNormalize(ctx context.Context, run *Run) error
	// ResolveNewRunners pre-links raw results to canonical runners. Most
	// platforms carry no identity signal and do nothing here.
	ResolveNewRunners(ctx context.Context, run *Run) error
}

// Deps are the process-wide collaborators handed to adapters and pipelines.
type Deps struct {
	Config      *config.Config
	Checkpoints *checkpoint.Store
	Results     *results.Store
	Allow       *allowlist.List
	Distances   *distance.Normalizer
	HTTPClient  *http.Client
	Logger      *slog.Logger
	// BackoffUnit overrides the in-place retry backoff unit; zero keeps the default.
	BackoffUnit time.Duration
	// Clock overrides the deadline clock; nil uses time.Now.
	Clock func() time.Time
}

// Validate reports missing collaborators.
func (d Deps) Validate() error {
	switch {
	case d.Config == nil:
		return errors.New("adapter deps: config is required")
	case d.Checkpoints == nil:
		return errors.New("adapter deps: checkpoint store is required")
	case d.Results == nil:
		return errors.New("adapter deps: results store is required")
	case d.Distances == nil:
		return errors.New("adapter deps: distance normalizer is required")
	}
	return nil
}

// Client builds the platform's fetch client from configuration.
func (d Deps) Client(platform string, transient checkpoint.TransientDetector) (*fetch.Client, error) {
	settings, _ := d.Config.Platform(platform)
	return fetch.New(fetch.Config{
		Platform:    platform,
		BaseURL:     settings.BaseURL,
		UserAgent:   settings.UserAgent,
		MinInterval: d.Config.RequestInterval(platform),
		BackoffUnit: d.BackoffUnit,
		Transient:   transient,
		Checkpoints: d.Checkpoints,
		HTTPClient:  d.HTTPClient,
		Logger:      d.Logger,
	})
}

func (d Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}
