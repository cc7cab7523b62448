package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"racefeed/internal/queue"
	"racefeed/internal/testsupport"
)

func TestNewEventIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewEvent(t, store, "athlinks", "1001")
	if first.ID == 0 || first.Status != queue.StatusNotStarted {
		t.Fatalf("unexpected event: %#v", first)
	}
	again, err := store.NewEvent(ctx, queue.NewEventParams{Platform: "AthLinks", URL: "https://other", SeriesID: "series", EventID: "1001"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if again.ID != first.ID || again.URL != first.URL {
		t.Fatalf("expected existing row, got %#v", again)
	}

	fetched, err := store.GetByID(ctx, first.ID)
	if err != nil || fetched == nil {
		t.Fatalf("GetByID: %v %#v", err, fetched)
	}
	if fetched.EventDate == nil {
		t.Fatal("expected event date to round-trip")
	}
	missing, err := store.GetByID(ctx, 9999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing row, got %#v %v", missing, err)
	}
}

func TestNewEventRequiresIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.NewEvent(context.Background(), queue.NewEventParams{Platform: "athlinks", URL: "https://x"}); err == nil {
		t.Fatal("expected error when event id missing")
	}
}

func TestStartAttemptAllowsOneInFlightPerPlatform(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewEvent(t, store, "mikatiming", "a")
	b := testsupport.NewEvent(t, store, "mikatiming", "b")
	other := testsupport.NewEvent(t, store, "trackshack", "c")

	attempt, err := store.StartAttempt(ctx, a.ID, "corr-1")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if !attempt.Running() || attempt.CorrelationID != "corr-1" {
		t.Fatalf("unexpected attempt: %#v", attempt)
	}
	if _, err := store.StartAttempt(ctx, b.ID, ""); !errors.Is(err, queue.ErrPlatformBusy) {
		t.Fatalf("expected ErrPlatformBusy, got %v", err)
	}
	got, _ := store.GetByID(ctx, b.ID)
	if got.Status != queue.StatusNotStarted {
		t.Fatalf("rejected start must not touch the event, got %s", got.Status)
	}
	if _, err := store.StartAttempt(ctx, other.ID, ""); err != nil {
		t.Fatalf("other platform should start: %v", err)
	}
	if _, err := store.StartAttempt(ctx, a.ID, ""); err == nil {
		t.Fatal("expected in-progress event to be rejected")
	}

	running, err := store.RunningAttempts(ctx, "mikatiming")
	if err != nil {
		t.Fatalf("RunningAttempts: %v", err)
	}
	if len(running) != 1 {
		t.Fatalf("expected exactly one running attempt, got %d", len(running))
	}

	if err := store.FinishAttempt(ctx, attempt.ID, queue.FinishParams{Outcome: queue.OutcomeSuccess, EventStatus: queue.StatusSuccess}); err != nil {
		t.Fatalf("FinishAttempt: %v", err)
	}
	if _, err := store.StartAttempt(ctx, b.ID, ""); err != nil {
		t.Fatalf("platform should be free after finish: %v", err)
	}
}

func TestFinishAttemptAppliesTransition(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	event := testsupport.NewEvent(t, store, "athlinks", "delayed")
	attempt, err := store.StartAttempt(ctx, event.ID, "")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	notBefore := time.Now().UTC().Add(time.Hour)
	if err := store.FinishAttempt(ctx, attempt.ID, queue.FinishParams{
		Outcome:     queue.OutcomeRetryDelayed,
		EventStatus: queue.StatusNotStarted,
		NotBefore:   &notBefore,
		Message:     "HTTP 429",
	}); err != nil {
		t.Fatalf("FinishAttempt: %v", err)
	}

	got, _ := store.GetByID(ctx, event.ID)
	if got.Status != queue.StatusNotStarted || got.NotBefore == nil || got.LastFinishedAt == nil {
		t.Fatalf("unexpected event after finish: %#v", got)
	}
	if got.ErrorMessage != "HTTP 429" {
		t.Fatalf("expected error message, got %q", got.ErrorMessage)
	}
	candidate, err := store.NextCandidate(ctx, "athlinks", 0)
	if err != nil {
		t.Fatalf("NextCandidate: %v", err)
	}
	if candidate != nil {
		t.Fatalf("deferred event must not be selected, got %#v", candidate)
	}

	if err := store.FinishAttempt(ctx, attempt.ID, queue.FinishParams{Outcome: queue.OutcomeSuccess, EventStatus: queue.StatusSuccess}); !errors.Is(err, queue.ErrAttemptFinished) {
		t.Fatalf("expected ErrAttemptFinished, got %v", err)
	}
}

func TestNextCandidateOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	recent := time.Now().UTC().AddDate(0, 0, -1)
	if _, err := store.NewEvent(ctx, queue.NewEventParams{Platform: "trackshack", URL: "https://x/recent", EventID: "recent", EventDate: &recent}); err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	older := testsupport.NewEvent(t, store, "trackshack", "older")
	newer := testsupport.NewEvent(t, store, "trackshack", "newer")

	candidate, err := store.NextCandidate(ctx, "trackshack", 5*24*time.Hour)
	if err != nil {
		t.Fatalf("NextCandidate: %v", err)
	}
	if candidate == nil || candidate.ID != older.ID {
		t.Fatalf("expected oldest never-attempted event, got %#v", candidate)
	}

	attempt, err := store.StartAttempt(ctx, older.ID, "")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if err := store.FinishAttempt(ctx, attempt.ID, queue.FinishParams{Outcome: queue.OutcomeRetry, EventStatus: queue.StatusNotStarted}); err != nil {
		t.Fatalf("FinishAttempt: %v", err)
	}

	candidate, err = store.NextCandidate(ctx, "trackshack", 5*24*time.Hour)
	if err != nil {
		t.Fatalf("NextCandidate: %v", err)
	}
	if candidate == nil || candidate.ID != newer.ID {
		t.Fatalf("expected never-attempted event before retried one, got %#v", candidate)
	}
}

func TestReapStaleKillsLongRunningAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := start
	store.SetClock(func() time.Time { return now })

	event := testsupport.NewEvent(t, store, "athlinks", "slow")
	attempt, err := store.StartAttempt(ctx, event.ID, "")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	now = start.Add(20 * time.Minute)
	reaped, err := store.ReapStale(ctx, "athlinks", 40*time.Minute)
	if err != nil {
		t.Fatalf("ReapStale: %v", err)
	}
	if len(reaped) != 0 {
		t.Fatalf("attempt within budget must survive, got %d reaped", len(reaped))
	}

	now = start.Add(41 * time.Minute)
	reaped, err = store.ReapStale(ctx, "athlinks", 40*time.Minute)
	if err != nil {
		t.Fatalf("ReapStale: %v", err)
	}
	if len(reaped) != 1 || reaped[0].ID != attempt.ID || reaped[0].Outcome != queue.OutcomeKilled {
		t.Fatalf("unexpected reaped attempts: %#v", reaped)
	}

	got, _ := store.GetByID(ctx, event.ID)
	if got.Status != queue.StatusNotStarted {
		t.Fatalf("expected event reset to not_started, got %s", got.Status)
	}
	stored, _ := store.GetAttempt(ctx, attempt.ID)
	if stored.Running() || stored.ErrorMessage != queue.KilledMessage {
		t.Fatalf("unexpected stored attempt: %#v", stored)
	}
	if err := store.FinishAttempt(ctx, attempt.ID, queue.FinishParams{Outcome: queue.OutcomeSuccess, EventStatus: queue.StatusSuccess}); !errors.Is(err, queue.ErrAttemptFinished) {
		t.Fatalf("late finish must not overwrite reaper result, got %v", err)
	}
}

func TestRetryErroredAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	event := testsupport.NewEvent(t, store, "athlinks", "broken")
	testsupport.NewEvent(t, store, "athlinks", "pending")
	attempt, err := store.StartAttempt(ctx, event.ID, "")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if err := store.FinishAttempt(ctx, attempt.ID, queue.FinishParams{Outcome: queue.OutcomeFatal, EventStatus: queue.StatusError, Message: "unknown distance"}); err != nil {
		t.Fatalf("FinishAttempt: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Error != 1 || health.NotStarted != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}

	errored, err := store.List(ctx, queue.ListFilter{Statuses: []queue.Status{queue.StatusError}})
	if err != nil || len(errored) != 1 {
		t.Fatalf("List: %v %d", err, len(errored))
	}

	changed, err := store.RetryErrored(ctx, event.ID)
	if err != nil || changed != 1 {
		t.Fatalf("RetryErrored: %v %d", err, changed)
	}
	got, _ := store.GetByID(ctx, event.ID)
	if got.Status != queue.StatusNotStarted || got.ErrorMessage != "" {
		t.Fatalf("unexpected event after retry: %#v", got)
	}

	history, err := store.AttemptsForEvent(ctx, event.ID)
	if err != nil || len(history) != 1 || history[0].Outcome != queue.OutcomeFatal {
		t.Fatalf("attempt history must be retained: %v %#v", err, history)
	}

	db, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !db.DatabaseExists || !db.IntegrityCheck || len(db.MissingTables) != 0 || db.TotalEvents != 2 {
		t.Fatalf("unexpected database health: %+v", db)
	}
}
