package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"racefeed/internal/allowlist"
	"racefeed/internal/logging"
	"racefeed/internal/results"
	"racefeed/internal/services"
	"racefeed/internal/standardform"
	"racefeed/internal/textutil"
)

// Warning kinds.
const (
	WarnRunnerMerge   = "runner_merge"
	WarnDroppedLink   = "runner_link_dropped"
	WarnFieldConflict = "field_conflict"
	WarnLinkConflict  = "platform_link_conflict"
	WarnEventName     = "event_name_mismatch"
	WarnStaleRunner   = "stale_runner_id"
)

// eventNameThreshold is the cosine similarity under which a linked event's
// name is reported as suspicious.
const eventNameThreshold = 0.3

// Warning is a non-fatal finding that needs a human eye.
type Warning struct {
	Kind     string
	Message  string
	RunnerID int64
	OtherID  int64
}

// Resolver matches one platform's documents against the canonical store.
type Resolver struct {
	store    *results.Store
	allow    *allowlist.List
	platform string
	logger   *slog.Logger
	warnings []Warning
}

// New creates a resolver acting on behalf of platform.
func New(store *results.Store, allow *allowlist.List, platform string, logger *slog.Logger) *Resolver {
	if allow == nil {
		allow = allowlist.Empty()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		store:    store,
		allow:    allow,
		platform: platform,
		logger:   logging.NewComponentLogger(logger, "resolver"),
	}
}

// Actor is the audit name of changes made by this resolver.
func (r *Resolver) Actor() string {
	return "racefeed:" + r.platform
}

// Store exposes the canonical store the resolver writes to.
func (r *Resolver) Store() *results.Store {
	return r.store
}

// Warnings returns the warnings recorded so far.
func (r *Resolver) Warnings() []Warning {
	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

func (r *Resolver) warn(w Warning) {
	for _, seen := range r.warnings {
		if seen == w {
			return
		}
	}
	r.warnings = append(r.warnings, w)
	r.logger.Warn(w.Message,
		logging.EventType(w.Kind),
		logging.Int64("runner_id", w.RunnerID),
		logging.Int64("other_runner_id", w.OtherID),
		logging.Impact("canonical data may need manual review"),
		logging.Hint("compare the runners' platform links in the changes audit"),
	)
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// SeriesName derives the series of an event from its name by removing years.
func SeriesName(eventName string) string {
	name := yearPattern.ReplaceAllString(eventName, "")
	return strings.Join(strings.Fields(name), " ")
}

// ResolveEvent attaches the form to a canonical event. A non-zero
// canonicalEventID names an event already linked to the scraped event; its
// start date must agree with the platform's unless the id is allow-listed.
// Without a link the event is found by (series, start date) or created.
func (r *Resolver) ResolveEvent(ctx context.Context, form *standardform.Form, canonicalEventID int64) error {
	if form.Event.StartDate.IsZero() {
		return services.Fatal("resolve_event", "platform event has no start date", nil).WithPlatform(r.platform)
	}
	if canonicalEventID == 0 {
		canonicalEventID = form.Event.CanonicalEventID
	}
	return r.store.WithTx(ctx, r.Actor(), func(tx *results.Tx) error {
		var (
			event *results.Event
			err   error
		)
		if canonicalEventID != 0 {
			event, err = tx.GetEvent(canonicalEventID)
			if err != nil {
				return services.Fatal("resolve_event", "linked canonical event is missing", err).WithPlatform(r.platform)
			}
			if !sameDay(event.StartDate, form.Event.StartDate) && !r.allow.DateConflictAllowed(event.ID) {
				return services.Fatal("resolve_event", fmt.Sprintf(
					"platform date %s conflicts with canonical event %d date %s",
					form.Event.StartDate.Format("2006-01-02"), event.ID, event.StartDate.Format("2006-01-02"),
				), nil).WithPlatform(r.platform).WithURL(form.Event.URL)
			}
			if similarity := textutil.NameSimilarity(event.Name, form.Event.Name); similarity < eventNameThreshold {
				r.warn(Warning{Kind: WarnEventName, Message: fmt.Sprintf(
					"canonical event %d %q looks unrelated to platform event %q", event.ID, event.Name, form.Event.Name)})
			}
		} else {
			seriesName := SeriesName(form.Event.Name)
			if seriesName == "" {
				return services.Fatal("resolve_event", "platform event has no name", nil).WithPlatform(r.platform)
			}
			series, err := tx.EnsureSeries(seriesName)
			if err != nil {
				return err
			}
			var found bool
			event, found, err = tx.FindEvent(series.ID, form.Event.StartDate)
			if err != nil {
				return err
			}
			if !found {
				event = &results.Event{
					SeriesID:   series.ID,
					Name:       strings.TrimSpace(form.Event.Name),
					StartDate:  form.Event.StartDate,
					FinishDate: form.Event.FinishDate,
					City:       form.Event.City,
					Country:    form.Event.Country,
					URL:        form.Event.URL,
				}
				if err := tx.CreateEvent(event); err != nil {
					return err
				}
				r.logger.Info("canonical event created",
					logging.Int64("event_id", event.ID),
					logging.String("name", event.Name),
				)
				form.Event.CanonicalEventID = event.ID
				return nil
			}
		}

		next := *event
		next.FinishDate = firstDate(event.FinishDate, form.Event.FinishDate)
		next.City = firstNonEmpty(event.City, form.Event.City)
		next.Country = firstNonEmpty(event.Country, form.Event.Country)
		next.URL = firstNonEmpty(event.URL, form.Event.URL)
		if _, err := tx.UpdateEvent(event, next); err != nil {
			return err
		}
		form.Event.CanonicalEventID = event.ID
		return nil
	})
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func firstDate(existing, incoming *time.Time) *time.Time {
	if existing != nil {
		return existing
	}
	return incoming
}

func firstNonEmpty(existing, incoming string) string {
	if strings.TrimSpace(existing) != "" {
		return existing
	}
	return strings.TrimSpace(incoming)
}
