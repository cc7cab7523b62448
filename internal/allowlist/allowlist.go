// Package allowlist holds the enumerated exceptions for known data-quality
// problems in platform feeds.
package allowlist

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed allowlist.yaml
var embedded []byte

type document struct {
	DateConflicts []int64             `yaml:"date_conflicts"`
	BadResults    map[string][]string `yaml:"bad_results"`
	EmptyIDRaces  map[string][]string `yaml:"empty_id_races"`
	BadDistances  map[string][]string `yaml:"bad_distances"`
}

// List answers allow-list membership questions.
type List struct {
	dateConflicts map[int64]struct{}
	badResults    map[string]struct{}
	emptyIDRaces  map[string]struct{}
	badDistances  map[string]struct{}
}

// Default parses the allow-list compiled into the binary.
func Default() (*List, error) {
	return Parse(embedded)
}

// Parse builds a List from YAML.
func Parse(data []byte) (*List, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse allowlist: %w", err)
	}
	list := &List{
		dateConflicts: make(map[int64]struct{}, len(doc.DateConflicts)),
		badResults:    flatten(doc.BadResults),
		emptyIDRaces:  flatten(doc.EmptyIDRaces),
		badDistances:  flatten(doc.BadDistances),
	}
	for _, id := range doc.DateConflicts {
		list.dateConflicts[id] = struct{}{}
	}
	return list, nil
}

// Empty returns a List that allows nothing.
func Empty() *List {
	return &List{
		dateConflicts: map[int64]struct{}{},
		badResults:    map[string]struct{}{},
		emptyIDRaces:  map[string]struct{}{},
		badDistances:  map[string]struct{}{},
	}
}

func flatten(byPlatform map[string][]string) map[string]struct{} {
	out := make(map[string]struct{})
	for platform, ids := range byPlatform {
		for _, id := range ids {
			out[key(platform, id)] = struct{}{}
		}
	}
	return out
}

func key(platform, id string) string {
	return strings.ToLower(strings.TrimSpace(platform)) + "\x00" + strings.TrimSpace(id)
}

// DateConflictAllowed reports whether a canonical event may keep a date that
// differs from its platform event.
func (l *List) DateConflictAllowed(canonicalEventID int64) bool {
	_, ok := l.dateConflicts[canonicalEventID]
	return ok
}

// BadResult reports whether a raw result id is a known platform data bug.
func (l *List) BadResult(platform, resultID string) bool {
	_, ok := l.badResults[key(platform, resultID)]
	return ok
}

// EmptyIDRace reports whether results without bib and id are skipped for a race.
func (l *List) EmptyIDRace(platform, raceID string) bool {
	_, ok := l.emptyIDRaces[key(platform, raceID)]
	return ok
}

// BadDistance reports whether a race with unparseable distance is skipped.
func (l *List) BadDistance(platform, raceID string) bool {
	_, ok := l.badDistances[key(platform, raceID)]
	return ok
}
