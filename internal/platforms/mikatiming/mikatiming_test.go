package mikatiming_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"racefeed/internal/adapter"
	"racefeed/internal/platforms/mikatiming"
	"racefeed/internal/queue"
	"racefeed/internal/results"
	"racefeed/internal/services"
	"racefeed/internal/testsupport"
)

const startPage = `<html><body>
<h1>BMW BERLIN-MARATHON 2024</h1>
<div class="event-date">29.09.2024</div>
<div class="event-location">Berlin, GER</div>
<form><select id="race">
  <option value="">-- all --</option>
  <option value="HCH3C0OH2" data-distance="42,195 km">Marathon</option>
  <option value="HCH3C0OH3">Inline Skating</option>
</select></form>
</body></html>`

const listPage1 = `<html><body><table class="list">
<thead><tr><th>Platz</th><th>Platz (AK)</th><th>Name</th><th>Nation</th><th>Startnr.</th><th>AK</th><th>Netto</th><th>Brutto</th></tr></thead>
<tbody>
<tr><td>1.</td><td>1</td><td><a href="?content=detail&amp;idp=HCH3C0OH2B0001">KIPCHOGE, Eliud</a></td><td>(KEN)</td><td>1</td><td>M35</td><td>02:02:42</td><td>02:02:42</td></tr>
<tr><td>2.</td><td>1</td><td><a href="?content=detail&amp;idp=HCH3C0OH2B0002">Müller, Anna Lena</a></td><td>(GER)</td><td>F12</td><td>W30</td><td>02:30:10</td><td>02:31:00</td></tr>
</tbody></table>
<a class="pages-next" href="?pid=list&amp;page=2">next</a>
</body></html>`

const listPage2 = `<html><body><table class="list">
<thead><tr><th>Platz</th><th>Platz (AK)</th><th>Name</th><th>Nation</th><th>Startnr.</th><th>AK</th><th>Netto</th><th>Brutto</th></tr></thead>
<tbody>
<tr><td></td><td></td><td><a href="?content=detail&amp;idp=HCH3C0OH2B0003">Schmidt, Peter</a></td><td>(GER)</td><td>5000</td><td>M50</td><td>DNF</td><td></td></tr>
</tbody></table>
</body></html>`

func detailPage(idp string) string {
	return fmt.Sprintf(`<html><body>
<div class="f-birth_year">Jahrgang 1984</div>
<div class="f-city">Kapsabet %s</div>
<table class="splits"><tbody>
<tr data-distance="10000"><th>10km</th><td class="time">00:28:50</td></tr>
<tr data-distance="21098"><th>HALB</th><td class="time">01:00:50</td></tr>
<tr data-distance="30000"><th>30km</th><td class="time">-</td></tr>
</tbody></table></body></html>`, idp[len(idp)-1:])
}

type site struct {
	details atomic.Int64
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	q := r.URL.Query()
	if !strings.HasPrefix(r.URL.Path, "/2024/") {
		http.NotFound(w, r)
		return
	}
	switch {
	case q.Get("pid") == "start":
		fmt.Fprint(w, startPage)
	case q.Get("pid") == "list" && q.Get("page") == "1":
		fmt.Fprint(w, listPage1)
	case q.Get("pid") == "list":
		fmt.Fprint(w, listPage2)
	case q.Get("content") == "detail":
		s.details.Add(1)
		fmt.Fprint(w, detailPage(q.Get("idp")))
	default:
		http.NotFound(w, r)
	}
}

func process(t *testing.T, deps adapter.Deps) (adapter.Summary, error) {
	t.Helper()
	a, err := mikatiming.New(deps)
	if err != nil {
		t.Fatalf("mikatiming.New: %v", err)
	}
	p, err := adapter.NewPipeline(a, deps)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	event := &queue.ScrapedEvent{ID: 3, Platform: mikatiming.Platform, URL: "https://berlin.r.mikatiming.com/2024/", SeriesID: "berlin", EventID: "2024"}
	return p.Process(context.Background(), event, time.Now().Add(time.Hour))
}

func TestIsTransient(t *testing.T) {
	if !mikatiming.IsTransient([]byte("<h1>Wegen Wartungsarbeiten nicht erreichbar</h1>")) {
		t.Fatal("expected maintenance page to be transient")
	}
	if mikatiming.IsTransient([]byte(listPage2)) {
		t.Fatal("expected result page to be stable")
	}
}

func TestUnparseableDistanceIsFatal(t *testing.T) {
	srv := httptest.NewServer(&site{})
	defer srv.Close()
	cfg := testsupport.NewConfig(t, testsupport.WithPlatformURL(mikatiming.Platform, srv.URL))

	_, err := process(t, testsupport.NewDeps(t, cfg))
	if services.KindOf(err) != services.KindFatal {
		t.Fatalf("expected fatal error for Inline Skating distance, got %v", err)
	}
	if !strings.Contains(err.Error(), "HCH3C0OH3") {
		t.Fatalf("expected error to name the race, got %v", err)
	}
}

func TestProcessParsesListsAndDetails(t *testing.T) {
	s := &site{}
	srv := httptest.NewServer(s)
	defer srv.Close()
	cfg := testsupport.NewConfig(t, testsupport.WithPlatformURL(mikatiming.Platform, srv.URL))
	deps := testsupport.NewDeps(t, cfg)
	deps.Allow = testsupport.MustParseAllowList(t, "bad_distances:\n  mikatiming:\n    - \"HCH3C0OH3\"\n")

	summary, err := process(t, deps)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Stats.Races != 1 || summary.Stats.Results != 3 || summary.Stats.DetailedResult != 3 {
		t.Fatalf("unexpected stats: %+v", summary.Stats)
	}
	if got := s.details.Load(); got != 3 {
		t.Fatalf("expected 3 detail requests, got %d", got)
	}

	err = deps.Results.View(context.Background(), func(tx *results.Tx) error {
		ev, err := tx.GetEvent(summary.CanonicalEventID)
		if err != nil {
			return err
		}
		if ev.City != "Berlin" || ev.StartDate.Format("2006-01-02") != "2024-09-29" {
			t.Errorf("unexpected event: %+v", ev)
		}
		races, err := tx.RacesForEvent(ev.ID)
		if err != nil {
			return err
		}
		if len(races) != 1 || races[0].DistanceLength != 42195 {
			t.Errorf("unexpected races: %+v", races)
			return nil
		}
		rows, err := tx.ResultsForRace(races[0].ID)
		if err != nil {
			return err
		}
		if len(rows) != 3 {
			t.Errorf("expected 3 rows, got %d", len(rows))
			return nil
		}
		winner, second, dnf := rows[0], rows[1], rows[2]
		if winner.LastName != "Kipchoge" || winner.FirstName != "Eliud" || winner.Gender != results.GenderMale {
			t.Errorf("unexpected winner: %+v", winner)
		}
		if winner.Centiseconds != 736200 || len(winner.Splits) != 2 || winner.Splits[1].DistanceLength != 21098 {
			t.Errorf("unexpected winner time or splits: %+v", winner)
		}
		if second.MiddleName != "Lena" || second.Gender != results.GenderFemale || second.Country != "GER" {
			t.Errorf("unexpected second row: %+v", second)
		}
		if dnf.Status != results.StatusDNF {
			t.Errorf("expected DNF status, got %q", dnf.Status)
		}
		if races[0].Finishers != 2 || races[0].Men != 1 || races[0].Women != 1 {
			t.Errorf("unexpected aggregates: %+v", races[0].Aggregates)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
