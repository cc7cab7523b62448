package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldReplacer maps letters that platforms spell inconsistently onto one form.
var foldReplacer = strings.NewReplacer(
	"ё", "е",
	"’", "'",
	"`", "'",
	"‐", "-",
	"–", "-",
)

// FoldName lowercases s, strips combining marks, unifies a few look-alike
// characters and collapses whitespace. Two names are considered equal when
// their folded forms are equal.
func FoldName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = foldReplacer.Replace(strings.ToLower(folded))
	return strings.Join(strings.Fields(folded), " ")
}

// TitleName restores conventional capitalization for names a platform sends
// entirely in upper or lower case. Mixed-case input is returned trimmed.
func TitleName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	if s != strings.ToUpper(s) && s != strings.ToLower(s) {
		return s
	}
	return cases.Title(language.Und).String(strings.ToLower(s))
}

// SplitFullName splits "Last First Middle" into its parts. A comma form
// "Last, First Middle" is also accepted.
func SplitFullName(full string) (last, first, middle string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", "", ""
	}
	if before, after, ok := strings.Cut(full, ","); ok {
		last = strings.TrimSpace(before)
		rest := strings.Fields(after)
		if len(rest) > 0 {
			first = rest[0]
		}
		if len(rest) > 1 {
			middle = strings.Join(rest[1:], " ")
		}
		return last, first, middle
	}
	parts := strings.Fields(full)
	last = parts[0]
	if len(parts) > 1 {
		first = parts[1]
	}
	if len(parts) > 2 {
		middle = strings.Join(parts[2:], " ")
	}
	return last, first, middle
}
