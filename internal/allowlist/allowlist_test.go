package allowlist_test

import (
	"testing"

	"racefeed/internal/allowlist"
)

func TestDefaultAllowlistLoads(t *testing.T) {
	list, err := allowlist.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if !list.DateConflictAllowed(1412) {
		t.Fatal("expected embedded date conflict entry")
	}
	if !list.EmptyIDRace("TrackShack", "trackshack-2019-10k") {
		t.Fatal("platform lookup should be case-insensitive")
	}
	if list.EmptyIDRace("athlinks", "trackshack-2019-10k") {
		t.Fatal("entries must not leak across platforms")
	}
}

func TestParseCustomAllowlist(t *testing.T) {
	list, err := allowlist.Parse([]byte(`
bad_results:
  athlinks: ["r-1"]
bad_distances:
  trackshack: ["race-9"]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !list.BadResult("athlinks", "r-1") || list.BadResult("athlinks", "r-2") {
		t.Fatal("unexpected bad result membership")
	}
	if !list.BadDistance("trackshack", "race-9") {
		t.Fatal("expected bad distance entry")
	}
	if list.DateConflictAllowed(1) {
		t.Fatal("expected no date conflicts")
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := allowlist.Parse([]byte("date_conflicts: [not-a-number")); err == nil {
		t.Fatal("expected parse error")
	}
}
