package testsupport

import (
	"context"
	"testing"
	"time"

	"racefeed/internal/config"
	"racefeed/internal/queue"
	"racefeed/internal/results"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenResults opens the canonical results store for tests and registers cleanup.
func MustOpenResults(t testing.TB, cfg *config.Config) *results.Store {
	t.Helper()

	store, err := results.Open(cfg)
	if err != nil {
		t.Fatalf("results.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewEvent enqueues a scraped event dated well before any settling window.
func NewEvent(t testing.TB, store *queue.Store, platform, eventID string) *queue.ScrapedEvent {
	t.Helper()

	date := time.Now().UTC().AddDate(0, -1, 0)
	event, err := store.NewEvent(context.Background(), queue.NewEventParams{
		Platform:  platform,
		URL:       "https://example.com/" + platform + "/" + eventID,
		SeriesID:  "series",
		EventID:   eventID,
		EventDate: &date,
	})
	if err != nil {
		t.Fatalf("store.NewEvent: %v", err)
	}
	return event
}
