package textutil_test

import (
	"strings"
	"testing"

	"racefeed/internal/textutil"
)

func TestFoldName(t *testing.T) {
	cases := map[string]string{
		"  José   ÁLVAREZ ": "jose alvarez",
		"Пётр":              "петр",
		"O’Brien":           "o'brien",
		"":                  "",
	}
	for in, want := range cases {
		if got := textutil.FoldName(in); got != want {
			t.Fatalf("FoldName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTitleName(t *testing.T) {
	cases := map[string]string{
		"IVANOV":      "Ivanov",
		"anna maria":  "Anna Maria",
		"McDonald":    "McDonald",
		"  SMITH  JO": "Smith Jo",
	}
	for in, want := range cases {
		if got := textutil.TitleName(in); got != want {
			t.Fatalf("TitleName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitFullName(t *testing.T) {
	last, first, middle := textutil.SplitFullName("Ivanov Petr Sergeevich")
	if last != "Ivanov" || first != "Petr" || middle != "Sergeevich" {
		t.Fatalf("unexpected split: %q %q %q", last, first, middle)
	}
	last, first, middle = textutil.SplitFullName("Smith, John")
	if last != "Smith" || first != "John" || middle != "" {
		t.Fatalf("unexpected comma split: %q %q %q", last, first, middle)
	}
}

func TestFileToken(t *testing.T) {
	if got := textutil.FileToken("Berlin/2026 Event"); got != "berlin_2026_event" {
		t.Fatalf("FileToken = %q", got)
	}
	if got := textutil.FileToken("  "); got != "unknown" {
		t.Fatalf("FileToken(blank) = %q", got)
	}
}

func TestKeyTokenKeepsIDsApart(t *testing.T) {
	if got := textutil.KeyToken("hch3c0oh"); got != "hch3c0oh" {
		t.Fatalf("KeyToken of a plain id = %q", got)
	}
	pairs := [][2]string{
		{"HCH3C0OH", "hch3c0oh"},
		{"2024.1", "2024_1"},
		{"a/b", "a_b"},
		{"", "unknown"},
	}
	for _, pair := range pairs {
		a, b := textutil.KeyToken(pair[0]), textutil.KeyToken(pair[1])
		if a == b {
			t.Fatalf("KeyToken(%q) and KeyToken(%q) both = %q", pair[0], pair[1], a)
		}
		if strings.ContainsAny(a, "/\\") || a == "." || a == ".." {
			t.Fatalf("KeyToken(%q) = %q is not a safe path segment", pair[0], a)
		}
	}
	if textutil.KeyToken("HCH3C0OH") != textutil.KeyToken("HCH3C0OH") {
		t.Fatal("KeyToken must be stable")
	}
}
