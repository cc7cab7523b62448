package russiarunning_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"racefeed/internal/adapter"
	"racefeed/internal/checkpoint"
	"racefeed/internal/platforms/russiarunning"
	"racefeed/internal/queue"
	"racefeed/internal/results"
	"racefeed/internal/services"
	"racefeed/internal/standardform"
	"racefeed/internal/testsupport"
)

type fakeAPI struct {
	races       map[string]string
	results     map[string][]map[string]any
	detailCalls atomic.Int64
	eventCalls  atomic.Int64
	failFirst   atomic.Bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{races: map[string]string{}, results: map[string][]map[string]any{}}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case strings.HasPrefix(path, "api/events/"):
		f.eventCalls.Add(1)
		if f.failFirst.CompareAndSwap(true, false) {
			_, _ = w.Write([]byte(`{"success":false,"message":"internal error"}`))
			return
		}
		var races []map[string]any
		for _, id := range sortedKeys(f.races) {
			races = append(races, map[string]any{"id": id, "name": "Race " + id, "distance": f.races[id]})
		}
		writeJSON(w, map[string]any{"success": true, "event": map[string]any{
			"id": "E1", "name": "Moscow Half 2024", "date": "2024-05-19", "city": "Moscow", "country": "RU", "races": races,
		}})
	case strings.HasPrefix(path, "api/races/"):
		raceID := strings.TrimSuffix(strings.TrimPrefix(path, "api/races/"), "/results")
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		all := f.results[raceID]
		from := (page - 1) * size
		to := from + size
		if from > len(all) {
			from = len(all)
		}
		if to > len(all) {
			to = len(all)
		}
		writeJSON(w, map[string]any{"success": true, "total": len(all), "items": all[from:to]})
	case strings.HasPrefix(path, "api/results/"):
		f.detailCalls.Add(1)
		writeJSON(w, map[string]any{"success": true, "result": map[string]any{
			"gunTime": "1:30:05",
			"splits":  []map[string]any{{"name": "10K", "distance": 10000, "time": "42:10"}},
		}})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func runnerRows(raceID string, n int) []map[string]any {
	rows := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		gender := "m"
		if i%2 == 0 {
			gender = "f"
		}
		rows = append(rows, map[string]any{
			"id":            fmt.Sprintf("%s-%d", raceID, i),
			"bib":           strconv.Itoa(i),
			"lastName":      fmt.Sprintf("IVANOV%d", i),
			"firstName":     "ivan",
			"gender":        gender,
			"place":         i,
			"result":        fmt.Sprintf("1:%02d:%02d", 20+i/60%40, i%60),
			"participantId": fmt.Sprintf("p%d", i),
		})
	}
	return rows
}

func newPipeline(t *testing.T, srv *httptest.Server, opts ...testsupport.ConfigOption) (*adapter.Pipeline, adapter.Deps) {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithPlatformURL(russiarunning.Platform, srv.URL)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	deps := testsupport.NewDeps(t, cfg)
	return mustPipeline(t, deps), deps
}

func mustPipeline(t *testing.T, deps adapter.Deps) *adapter.Pipeline {
	t.Helper()
	a, err := russiarunning.New(deps)
	if err != nil {
		t.Fatalf("russiarunning.New: %v", err)
	}
	p, err := adapter.NewPipeline(a, deps)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func scrapedEvent(srvURL string) *queue.ScrapedEvent {
	return &queue.ScrapedEvent{ID: 1, Platform: russiarunning.Platform, URL: srvURL + "/events/E1", SeriesID: "moscow-half", EventID: "E1"}
}

func TestIsTransient(t *testing.T) {
	if !russiarunning.IsTransient([]byte(`{"success":false}`)) {
		t.Fatal("expected success=false to be transient")
	}
	if russiarunning.IsTransient([]byte(`{"success":true}`)) {
		t.Fatal("expected success=true to be stable")
	}
	if russiarunning.IsTransient([]byte(`{"items":[]}`)) {
		t.Fatal("expected a body without the flag to be stable")
	}
	if russiarunning.IsTransient([]byte(`<html>`)) {
		t.Fatal("expected non-JSON to be stable")
	}
}

func TestProcessLoadsEvent(t *testing.T) {
	api := newFakeAPI()
	api.races["r21"] = "21100"
	api.races["r10"] = "10 km"
	api.results["r21"] = runnerRows("r21", 3)
	api.results["r10"] = runnerRows("r10", 2)
	api.failFirst.Store(true)
	srv := httptest.NewServer(api)
	defer srv.Close()

	p, deps := newPipeline(t, srv)
	summary, err := p.Process(context.Background(), scrapedEvent(srv.URL), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.CanonicalEventID == 0 {
		t.Fatal("expected a canonical event id")
	}
	if summary.Load.Inserted != 5 {
		t.Fatalf("expected 5 inserted results, got %+v", summary.Load)
	}
	if api.eventCalls.Load() != 2 {
		t.Fatalf("expected the transient envelope to be retried once, got %d event calls", api.eventCalls.Load())
	}

	err = deps.Results.View(context.Background(), func(tx *results.Tx) error {
		races, err := tx.RacesForEvent(summary.CanonicalEventID)
		if err != nil {
			return err
		}
		if len(races) != 2 {
			return fmt.Errorf("expected 2 races, got %d", len(races))
		}
		half := races[1]
		if half.DistanceLength != 21098 {
			return fmt.Errorf("expected 21100 to normalize to 21098, got %d", half.DistanceLength)
		}
		if half.Finishers != 3 {
			return fmt.Errorf("expected 3 finishers, got %d", half.Finishers)
		}
		rows, err := tx.ResultsForRace(half.ID)
		if err != nil {
			return err
		}
		if len(rows) != 3 || len(rows[0].Splits) != 1 {
			return fmt.Errorf("expected 3 rows with splits, got %d rows", len(rows))
		}
		if rows[0].GunCentiseconds != 540500 {
			return fmt.Errorf("unexpected gun time %d", rows[0].GunCentiseconds)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// a fresh run of the same event replaces results and does not duplicate runners
	again, err := mustPipeline(t, deps).Process(context.Background(), scrapedEvent(srv.URL), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if again.CanonicalEventID != summary.CanonicalEventID {
		t.Fatalf("expected the same canonical event, got %d vs %d", again.CanonicalEventID, summary.CanonicalEventID)
	}
	if again.Load.Deleted != 5 || again.Load.Inserted != 5 {
		t.Fatalf("expected replace of 5 rows, got %+v", again.Load)
	}
}

func TestEmptyBibAndIDIsFatal(t *testing.T) {
	api := newFakeAPI()
	api.races["r10"] = "10 km"
	rows := runnerRows("r10", 2)
	rows[1]["id"] = ""
	rows[1]["bib"] = ""
	api.results["r10"] = rows
	srv := httptest.NewServer(api)
	defer srv.Close()

	p, _ := newPipeline(t, srv)
	_, err := p.Process(context.Background(), scrapedEvent(srv.URL), time.Now().Add(time.Hour))
	if services.KindOf(err) != services.KindFatal {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestEmptyBibAndIDSkippedWhenAllowListed(t *testing.T) {
	api := newFakeAPI()
	api.races["r10"] = "10 km"
	rows := runnerRows("r10", 2)
	rows[1]["id"] = ""
	rows[1]["bib"] = ""
	api.results["r10"] = rows
	srv := httptest.NewServer(api)
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithPlatformURL(russiarunning.Platform, srv.URL))
	deps := testsupport.NewDeps(t, cfg)
	deps.Allow = testsupport.MustParseAllowList(t, "empty_id_races:\n  russiarunning:\n    - \"r10\"\n")
	summary, err := mustPipeline(t, deps).Process(context.Background(), scrapedEvent(srv.URL), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Stats.Results != 1 || summary.Load.Inserted != 1 {
		t.Fatalf("expected the empty row to be skipped, got stats %+v load %+v", summary.Stats, summary.Load)
	}
}

func TestTimeoutResumesRemainingDetails(t *testing.T) {
	if testing.Short() {
		t.Skip("large event")
	}
	api := newFakeAPI()
	api.races["r21"] = "21.1 km"
	api.results["r21"] = runnerRows("r21", 10000)
	srv := httptest.NewServer(api)
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithPlatformURL(russiarunning.Platform, srv.URL))
	if cfg.FlushEvery(russiarunning.Platform) != 1000 {
		t.Fatalf("expected default flush interval of 1000, got %d", cfg.FlushEvery(russiarunning.Platform))
	}
	deps := testsupport.NewDeps(t, cfg)
	first := deps
	first.Clock = func() time.Time {
		if api.detailCalls.Load() >= 4000 {
			return time.Now().Add(24 * time.Hour)
		}
		return time.Now()
	}

	event := scrapedEvent(srv.URL)
	summary, err := mustPipeline(t, first).Process(context.Background(), event, time.Now().Add(time.Hour))
	if services.KindOf(err) != services.KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if summary.Stats.DetailedResult != 4000 {
		t.Fatalf("expected 4000 detailed results at timeout, got %d", summary.Stats.DetailedResult)
	}

	form, ok, err := deps.Checkpoints.LoadForm(checkpoint.Key{Platform: russiarunning.Platform, Series: event.SeriesID, Event: event.EventID})
	if err != nil || !ok {
		t.Fatalf("expected checkpointed form, ok=%v err=%v", ok, err)
	}
	if n := len(form.Races[0].PendingDetails()); n != 6000 {
		t.Fatalf("expected 6000 pending details in checkpoint, got %d", n)
	}

	summary, err = mustPipeline(t, deps).Process(context.Background(), event, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("resumed Process: %v", err)
	}
	if !summary.Resumed {
		t.Fatal("expected second run to resume")
	}
	if got := api.detailCalls.Load(); got != 10000 {
		t.Fatalf("expected exactly 6000 more detail requests (10000 total), got %d", got)
	}
	if summary.Load.Inserted != 10000 {
		t.Fatalf("expected 10000 inserted results, got %+v", summary.Load)
	}

	// an uninterrupted run into fresh stores must produce the same form
	fresh := testsupport.NewDeps(t, testsupport.NewConfig(t, testsupport.WithPlatformURL(russiarunning.Platform, srv.URL)))
	straight, err := mustPipeline(t, fresh).Process(context.Background(), event, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("uninterrupted Process: %v", err)
	}
	if straight.Resumed {
		t.Fatal("expected the uninterrupted run to start from scratch")
	}
	resumedForm, err := summary.Form.Encode()
	if err != nil {
		t.Fatalf("encode resumed form: %v", err)
	}
	straightForm, err := straight.Form.Encode()
	if err != nil {
		t.Fatalf("encode uninterrupted form: %v", err)
	}
	if !bytes.Equal(resumedForm, straightForm) {
		t.Fatalf("resumed form differs from uninterrupted form (%d vs %d bytes)", len(resumedForm), len(straightForm))
	}
}

func TestForeignCheckpointIsDiscarded(t *testing.T) {
	api := newFakeAPI()
	api.races["r10"] = "10 km"
	api.results["r10"] = runnerRows("r10", 2)
	srv := httptest.NewServer(api)
	defer srv.Close()

	p, deps := newPipeline(t, srv)
	event := scrapedEvent(srv.URL)
	key := checkpoint.Key{Platform: russiarunning.Platform, Series: event.SeriesID, Event: event.EventID}
	foreign := standardform.New(russiarunning.Platform, event.SeriesID, standardform.Event{PlatformID: "E2", Name: "Another Event"})
	foreign.AddRace(&standardform.Race{PlatformID: "x5", PreciseName: "5K"})
	if err := deps.Checkpoints.SaveForm(key, foreign); err != nil {
		t.Fatalf("SaveForm: %v", err)
	}

	summary, err := p.Process(context.Background(), event, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Resumed {
		t.Fatal("expected a form saved for another event not to be resumed")
	}
	if summary.Form.Event.Name != "Moscow Half 2024" || summary.Stats.Races != 1 || summary.Load.Inserted != 2 {
		t.Fatalf("expected only this event's data, got %+v / %+v", summary.Form.Event, summary.Stats)
	}
}
