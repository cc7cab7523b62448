package standardform_test

import (
	"strings"
	"testing"
	"time"

	"racefeed/internal/distance"
	"racefeed/internal/standardform"
)

func sampleForm(t *testing.T) *standardform.Form {
	t.Helper()
	half, err := distance.FromMeters(21100)
	if err != nil {
		t.Fatalf("FromMeters: %v", err)
	}
	form := standardform.New("mikatiming", "berlin", standardform.Event{
		PlatformID: "2026",
		Name:       "Berlin Half",
		StartDate:  time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
	})
	race := form.AddRace(&standardform.Race{PlatformID: "HML", Distance: half, PreciseName: "Half marathon"})
	for _, id := range []string{"a", "b", "c"} {
		if err := race.AddResult(&standardform.Result{ID: id, LastName: "Runner", FirstName: strings.ToUpper(id), ResultText: "1:30:00"}); err != nil {
			t.Fatalf("AddResult: %v", err)
		}
	}
	return form
}

func TestFlagsSurviveCheckpointRoundTrip(t *testing.T) {
	form := sampleForm(t)
	race := form.Race("HML")
	race.MarkBriefLoaded()
	race.Results[0].MarkDetailed()
	race.Results[1].MarkDetailed()

	data, err := form.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `"results_brief_loaded":true`) || !strings.Contains(string(data), `"results_detailed_loaded":false`) {
		t.Fatalf("expected explicit flags in %s", data)
	}

	restored, err := standardform.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rrace := restored.Race("HML")
	if rrace == nil || !rrace.BriefLoaded() || rrace.DetailedLoaded() {
		t.Fatalf("unexpected restored flags: %+v", rrace)
	}
	pending := rrace.PendingDetails()
	if len(pending) != 1 || pending[0].ID != "c" {
		t.Fatalf("expected only result c pending, got %d", len(pending))
	}
	if rrace.Distance.Length != distance.HalfMarathon {
		t.Fatalf("distance lost: %+v", rrace.Distance)
	}
	stats := restored.Stats()
	if stats.Results != 3 || stats.DetailedResult != 2 || stats.BriefRaces != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDetailedRequiresBriefAndAllResults(t *testing.T) {
	form := sampleForm(t)
	race := form.Race("HML")
	if err := race.MarkDetailedLoaded(); err == nil {
		t.Fatal("expected error before brief flag")
	}
	race.MarkBriefLoaded()
	if err := race.MarkDetailedLoaded(); err == nil {
		t.Fatal("expected error while results are pending")
	}
	for _, res := range race.PendingDetails() {
		res.MarkDetailed()
	}
	if err := race.MarkDetailedLoaded(); err != nil {
		t.Fatalf("MarkDetailedLoaded: %v", err)
	}
	if !form.DetailedLoaded() || !form.BriefLoaded() {
		t.Fatal("expected form-level flags to follow the only race")
	}
}

func TestBriefCompleteRejectsNewResults(t *testing.T) {
	form := sampleForm(t)
	race := form.Race("HML")
	race.MarkBriefLoaded()
	if err := race.AddResult(&standardform.Result{ID: "late"}); err == nil {
		t.Fatal("expected error adding to a complete race")
	}
	if again := form.AddRace(&standardform.Race{PlatformID: "HML"}); again != race {
		t.Fatal("AddRace must return the existing race for a known platform id")
	}
}
