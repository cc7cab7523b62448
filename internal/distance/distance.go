// Package distance maps the raw lengths timing platforms publish onto
// canonical race distances.
package distance

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"racefeed/internal/textutil"
)

const (
	HalfMarathon = 21098
	Marathon     = 42195
)

// ErrUnknown reports text that cannot be interpreted as a distance.
var ErrUnknown = errors.New("unrecognized distance")

// Distance is a canonical race length in meters.
type Distance struct {
	Length int    `json:"length"`
	Name   string `json:"name"`
}

// String returns the human readable name.
func (d Distance) String() string { return d.Name }

// mismeasured maps lengths platforms commonly publish onto the canonical one.
var mismeasured = map[int]int{
	21000: HalfMarathon,
	21097: HalfMarathon,
	21100: HalfMarathon,
	42000: Marathon,
	42190: Marathon,
	42200: Marathon,
}

var named = map[int]string{
	HalfMarathon: "half marathon",
	Marathon:     "marathon",
	16093:        "10 miles",
	1609:         "1 mile",
}

var aliases = []struct {
	words  []string
	length int
}{
	{[]string{"half marathon", "half-marathon", "halfmarathon", "semi marathon", "полумарафон"}, HalfMarathon},
	{[]string{"marathon", "марафон"}, Marathon},
}

var numericPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(km|k|км|m|м|meters|metres|mi|mile|miles|миля|миль|мили)?\.?$`)

// FromMeters returns the canonical distance for a length in meters.
func FromMeters(meters int) (Distance, error) {
	if meters <= 0 {
		return Distance{}, fmt.Errorf("%w: %d", ErrUnknown, meters)
	}
	if canonical, ok := mismeasured[meters]; ok {
		meters = canonical
	}
	return Distance{Length: meters, Name: nameFor(meters)}, nil
}

// Parse interprets raw platform text such as "10 km", "21,1 км", "5K",
// "10 miles", "21100" or "Half Marathon".
func Parse(raw string) (Distance, error) {
	text := textutil.FoldName(raw)
	if text == "" {
		return Distance{}, fmt.Errorf("%w: empty", ErrUnknown)
	}
	for _, alias := range aliases {
		for _, word := range alias.words {
			if strings.Contains(text, word) {
				return FromMeters(alias.length)
			}
		}
	}

	text = strings.ReplaceAll(text, ",", ".")
	m := numericPattern.FindStringSubmatch(text)
	if m == nil {
		return Distance{}, fmt.Errorf("%w: %q", ErrUnknown, raw)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Distance{}, fmt.Errorf("%w: %q", ErrUnknown, raw)
	}
	var meters float64
	switch m[2] {
	case "km", "k", "км":
		meters = value * 1000
	case "m", "м", "meters", "metres":
		meters = value
	case "mi", "mile", "miles", "миля", "миль", "мили":
		meters = value * 1609.344
	default:
		// bare numbers below 100 are kilometers
		if value < 100 {
			meters = value * 1000
		} else {
			meters = value
		}
	}
	return FromMeters(int(meters + 0.5))
}

func nameFor(meters int) string {
	if name, ok := named[meters]; ok {
		return name
	}
	if meters%1000 == 0 {
		return fmt.Sprintf("%d km", meters/1000)
	}
	if meters > 1000 {
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", float64(meters)/1000), "0"), ".") + " km"
	}
	return fmt.Sprintf("%d m", meters)
}

// Normalizer resolves distances with a configured default for platforms that
// publish none.
type Normalizer struct {
	defaultLength int
}

// NewNormalizer builds a normalizer. A non-positive default is rejected so a
// missing lookup fails at start instead of producing zero-length races.
func NewNormalizer(defaultLength int) (*Normalizer, error) {
	if defaultLength <= 0 {
		return nil, fmt.Errorf("default distance length must be positive, got %d", defaultLength)
	}
	return &Normalizer{defaultLength: defaultLength}, nil
}

// Default returns the configured default distance.
func (n *Normalizer) Default() Distance {
	d, _ := FromMeters(n.defaultLength)
	return d
}

// Normalize parses raw text, falling back to the default when raw is blank.
func (n *Normalizer) Normalize(raw string) (Distance, error) {
	if strings.TrimSpace(raw) == "" {
		return n.Default(), nil
	}
	return Parse(raw)
}
