package textutil

import (
	"math"
	"strings"
	"unicode"
)

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	return fingerprintOf(Tokenize(text))
}

func fingerprintOf(tokens []string) *Fingerprint {
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(norm),
	}
}

// Tokenize folds text and splits it on anything that is not a letter or digit,
// dropping tokens shorter than 3 runes. Digits-only tokens such as years are
// kept regardless of length.
func Tokenize(text string) []string {
	raw := strings.FieldsFunc(FoldName(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if len([]rune(token)) < 3 && !isDigits(token) {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// Similarity is the cosine similarity of two fingerprints, 0 when either is
// nil or empty.
func (f *Fingerprint) Similarity(other *Fingerprint) float64 {
	if f == nil || other == nil || f.norm == 0 || other.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range f.tokens {
		dot += count * other.tokens[token]
	}
	return dot / (f.norm * other.norm)
}

// NameSimilarity compares two event names, ignoring four-digit years so
// editions of one series ("Moscow Half 2023", "Moscow Half 2024") match.
func NameSimilarity(a, b string) float64 {
	return fingerprintOf(withoutYears(Tokenize(a))).Similarity(fingerprintOf(withoutYears(Tokenize(b))))
}

func withoutYears(tokens []string) []string {
	out := tokens[:0:0]
	for _, token := range tokens {
		if len(token) == 4 && isDigits(token) && (strings.HasPrefix(token, "19") || strings.HasPrefix(token, "20")) {
			continue
		}
		out = append(out, token)
	}
	return out
}
