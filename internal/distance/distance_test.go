package distance_test

import (
	"errors"
	"testing"

	"racefeed/internal/distance"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"21100", distance.HalfMarathon},
		{"21097", distance.HalfMarathon},
		{"21,1 км", distance.HalfMarathon},
		{"21.1 km", distance.HalfMarathon},
		{"Half Marathon", distance.HalfMarathon},
		{"Полумарафон", distance.HalfMarathon},
		{"Marathon", distance.Marathon},
		{"42.2 km", distance.Marathon},
		{"10 km", 10000},
		{"5K", 5000},
		{"10", 10000},
		{"400 m", 400},
		{"10 miles", 16093},
	}
	for _, tc := range cases {
		got, err := distance.Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tc.in, err)
		}
		if got.Length != tc.want {
			t.Fatalf("Parse(%q) = %d, want %d", tc.in, got.Length, tc.want)
		}
	}
}

func TestParseRejectsUnknownText(t *testing.T) {
	for _, in := range []string{"ultra", "", "kids run"} {
		if _, err := distance.Parse(in); !errors.Is(err, distance.ErrUnknown) {
			t.Fatalf("Parse(%q) expected ErrUnknown, got %v", in, err)
		}
	}
}

func TestFromMetersNames(t *testing.T) {
	d, err := distance.FromMeters(21100)
	if err != nil {
		t.Fatalf("FromMeters: %v", err)
	}
	if d.Length != 21098 || d.Name != "half marathon" {
		t.Fatalf("unexpected distance: %+v", d)
	}
	d, _ = distance.FromMeters(12500)
	if d.Name != "12.5 km" {
		t.Fatalf("unexpected name: %q", d.Name)
	}
}

func TestNormalizerDefault(t *testing.T) {
	if _, err := distance.NewNormalizer(0); err == nil {
		t.Fatal("expected error for missing default")
	}
	n, err := distance.NewNormalizer(21100)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	d, err := n.Normalize("  ")
	if err != nil || d.Length != distance.HalfMarathon {
		t.Fatalf("Normalize(blank) = %+v, %v", d, err)
	}
}
