package trackshack_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"

	"racefeed/internal/adapter"
	"racefeed/internal/allowlist"
	"racefeed/internal/platforms/trackshack"
	"racefeed/internal/queue"
	"racefeed/internal/results"
	"racefeed/internal/services"
	"racefeed/internal/testsupport"
)

const page = `<html><head><title>Results</title></head><body>
<h1>Capitol 10K 2019</h1>
<p class="date">April 7, 2019</p>
<p class="location">Austin, TX</p>
<div class="race" id="trackshack-2019-10k" data-distance="10K">
<h2>10K Run</h2>
<table class="results"><tbody>
<tr class="division"><td colspan="7">Overall</td></tr>
<tr><td>1</td><td>101</td><td>GARCÍA, JOSÉ</td><td>M</td><td>29</td><td>Austin</td><td>31:05</td></tr>
<tr><td>2</td><td>204</td><td>Lee, Sarah</td><td>F</td><td>41</td><td>Round Rock</td><td>35:40.2</td></tr>
<tr><td>3</td><td></td><td>Unknown, Runner</td><td>M</td><td></td><td></td><td>40:00</td></tr>
</tbody></table>
</div>
<div class="race" id="trackshack-2019-hm">
<h2>Half Marathon</h2>
<table class="results"><tbody>
<tr><td>1</td><td>9</td><td>Okafor, Chidi</td><td>M</td><td>33</td><td>Dallas</td><td>1:12:30</td></tr>
</tbody></table>
</div>
</body></html>`

func newServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	encoded, err := charmap.Windows1252.NewEncoder().String(body)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/results/cap10k-2019.html" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		_, _ = w.Write([]byte(encoded))
	}))
}

func process(t *testing.T, deps adapter.Deps) (adapter.Summary, error) {
	t.Helper()
	a, err := trackshack.New(deps)
	if err != nil {
		t.Fatalf("trackshack.New: %v", err)
	}
	p, err := adapter.NewPipeline(a, deps)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	event := &queue.ScrapedEvent{ID: 4, Platform: trackshack.Platform, URL: "https://www.trackshackresults.com/cap10k-2019", SeriesID: "cap10k", EventID: "cap10k-2019"}
	return p.Process(context.Background(), event, time.Now().Add(time.Hour))
}

func TestEmptyBibFatalWithoutAllowList(t *testing.T) {
	srv := newServer(t, page)
	defer srv.Close()
	cfg := testsupport.NewConfig(t, testsupport.WithPlatformURL(trackshack.Platform, srv.URL))

	_, err := process(t, testsupport.NewDeps(t, cfg))
	if services.KindOf(err) != services.KindFatal {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if !strings.Contains(err.Error(), "neither bib nor platform id") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProcessWithBundledAllowList(t *testing.T) {
	srv := newServer(t, page)
	defer srv.Close()
	cfg := testsupport.NewConfig(t, testsupport.WithPlatformURL(trackshack.Platform, srv.URL))
	deps := testsupport.NewDeps(t, cfg)
	allow, err := allowlist.Default()
	if err != nil {
		t.Fatalf("allowlist.Default: %v", err)
	}
	deps.Allow = allow

	summary, err := process(t, deps)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Stats.Results != 3 || summary.Stats.DetailedRaces != 2 {
		t.Fatalf("unexpected stats: %+v", summary.Stats)
	}

	err = deps.Results.View(context.Background(), func(tx *results.Tx) error {
		races, err := tx.RacesForEvent(summary.CanonicalEventID)
		if err != nil {
			return err
		}
		if len(races) != 2 {
			t.Errorf("expected 2 races, got %d", len(races))
			return nil
		}
		tenK, half := races[0], races[1]
		if tenK.DistanceLength != 10000 || half.DistanceLength != 21098 {
			t.Errorf("unexpected distances: %d, %d", tenK.DistanceLength, half.DistanceLength)
		}
		rows, err := tx.ResultsForRace(tenK.ID)
		if err != nil {
			return err
		}
		if len(rows) != 2 {
			t.Errorf("expected 2 rows, got %d", len(rows))
			return nil
		}
		if rows[0].LastName != "García" || rows[0].FirstName != "José" {
			t.Errorf("expected decoded accented name, got %q %q", rows[0].LastName, rows[0].FirstName)
		}
		if rows[1].Centiseconds != 214020 {
			t.Errorf("unexpected time: %d", rows[1].Centiseconds)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
