package textutil_test

import (
	"math"
	"testing"

	"racefeed/internal/textutil"
)

func TestSimilarityWithNilFingerprint(t *testing.T) {
	berlin := textutil.NewFingerprint("Berlin Marathon 2026")
	if got := berlin.Similarity(nil); got != 0 {
		t.Fatalf("Similarity(nil) = %v", got)
	}
	var missing *textutil.Fingerprint
	if got := missing.Similarity(berlin); got != 0 {
		t.Fatalf("nil.Similarity = %v", got)
	}
}

func TestSimilarityIgnoresCaseAndDiacritics(t *testing.T) {
	a := textutil.NewFingerprint("Zürich Marathon 2026")
	b := textutil.NewFingerprint("ZURICH MARATHON 2026")
	if got := a.Similarity(b); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("Similarity(folded) = %v, want 1.0", got)
	}
	if got := textutil.NewFingerprint("Moscow Half Marathon").Similarity(textutil.NewFingerprint("Boston Trail Relay")); got != 0 {
		t.Fatalf("Similarity(different) = %v, want 0", got)
	}
}

func TestNameSimilarityIgnoresEditionYear(t *testing.T) {
	if got := textutil.NameSimilarity("Moscow Half 2023", "moscow half 2024"); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("NameSimilarity across editions = %v, want 1.0", got)
	}
	if got := textutil.NewFingerprint("Moscow Half 2023").Similarity(textutil.NewFingerprint("Moscow Half 2024")); got >= 1.0 {
		t.Fatalf("plain fingerprints should count the year, got %v", got)
	}
	if got := textutil.NameSimilarity("Capitol 10K", "Disney Princess Half"); got != 0 {
		t.Fatalf("NameSimilarity(unrelated) = %v", got)
	}
}

func TestTokenizeKeepsCyrillicAndYears(t *testing.T) {
	tokens := textutil.Tokenize("Московский полумарафон 26")
	want := []string{"московскии", "полумарафон", "26"}
	if len(tokens) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("Tokenize = %v, want %v", tokens, want)
		}
	}
}
