package standardform

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"racefeed/internal/distance"
)

// Form is the canonical document for one platform event.
type Form struct {
	Platform string  `json:"platform"`
	SeriesID string  `json:"series_id"`
	Event    Event   `json:"event"`
	Races    []*Race `json:"races"`
}

// Event describes the platform event.
type Event struct {
	PlatformID string     `json:"platform_id"`
	Name       string     `json:"name"`
	URL        string     `json:"url,omitempty"`
	StartDate  time.Time  `json:"start_date"`
	FinishDate *time.Time `json:"finish_date,omitempty"`
	City       string     `json:"city,omitempty"`
	Country    string     `json:"country,omitempty"`
	// CanonicalEventID is set once ResolveEvent has attached the form.
	CanonicalEventID int64 `json:"canonical_event_id,omitempty"`
}

// Race is one distance of the event and its raw results.
type Race struct {
	PlatformID    string            `json:"platform_id"`
	Distance      distance.Distance `json:"distance"`
	RawDistance   string            `json:"raw_distance,omitempty"`
	PreciseName   string            `json:"precise_name"`
	IsVirtual     bool              `json:"is_virtual"`
	IsHandicapped bool              `json:"is_handicapped"`
	Results       []*Result         `json:"results"`
	// CanonicalRaceID is set once ResolveRaces has matched or created the race.
	CanonicalRaceID int64 `json:"canonical_race_id,omitempty"`

	briefLoaded    bool
	detailedLoaded bool
	loaded         bool
}

// Split is one intermediate timing point of a result.
type Split struct {
	Name     string `json:"name"`
	Distance int    `json:"distance,omitempty"`
	TimeText string `json:"time"`
}

// Result is one raw row as published by the platform.
type Result struct {
	ID            string  `json:"id"`
	Bib           string  `json:"bib"`
	LastName      string  `json:"last_name"`
	FirstName     string  `json:"first_name"`
	MiddleName    string  `json:"middle_name,omitempty"`
	Gender        string  `json:"gender"`
	Age           int     `json:"age,omitempty"`
	BirthYear     int     `json:"birth_year,omitempty"`
	Country       string  `json:"country,omitempty"`
	Region        string  `json:"region,omitempty"`
	City          string  `json:"city,omitempty"`
	Club          string  `json:"club,omitempty"`
	Category      string  `json:"category,omitempty"`
	PlaceAbs      int     `json:"place_abs,omitempty"`
	PlaceGender   int     `json:"place_gender,omitempty"`
	PlaceCategory int     `json:"place_category,omitempty"`
	ResultText    string  `json:"result"`
	GunTimeText   string  `json:"gun_time,omitempty"`
	Splits        []Split `json:"splits,omitempty"`
	// PlatformRunnerIDs maps platform id to the runner's external id there.
	PlatformRunnerIDs map[string]string `json:"platform_runner_ids,omitempty"`
	// CanonicalRunnerID is set when ResolveNewRunners pre-links the result.
	CanonicalRunnerID int64 `json:"canonical_runner_id,omitempty"`

	detailed bool
}

// New creates an empty form for a platform event.
func New(platform, seriesID string, event Event) *Form {
	return &Form{Platform: platform, SeriesID: seriesID, Event: event}
}

// BriefLoaded reports whether the race's result list has been fetched completely.
func (r *Race) BriefLoaded() bool { return r.briefLoaded }

// DetailedLoaded reports whether every result of the race has its details.
func (r *Race) DetailedLoaded() bool { return r.detailedLoaded }

// Loaded reports whether the race's results were written to the results store.
func (r *Race) Loaded() bool { return r.loaded }

// MarkBriefLoaded sets the brief flag. It never resets.
func (r *Race) MarkBriefLoaded() { r.briefLoaded = true }

// MarkDetailedLoaded sets the detailed flag. It requires the brief flag and
// every result to be detailed.
func (r *Race) MarkDetailedLoaded() error {
	if !r.briefLoaded {
		return fmt.Errorf("race %s: detailed before brief", r.PlatformID)
	}
	if n := len(r.PendingDetails()); n > 0 {
		return fmt.Errorf("race %s: %d results still lack details", r.PlatformID, n)
	}
	r.detailedLoaded = true
	return nil
}

// MarkLoaded records that the loader replaced the race's results.
func (r *Race) MarkLoaded() { r.loaded = true }

// AddResult appends a raw result. Results are rejected once the brief list is complete.
func (r *Race) AddResult(res *Result) error {
	if r.briefLoaded {
		return fmt.Errorf("race %s: brief results already complete", r.PlatformID)
	}
	r.Results = append(r.Results, res)
	return nil
}

// RestartBrief drops a partially collected result list so the brief pass can
// start over. It does nothing once the brief flag is set.
func (r *Race) RestartBrief() {
	if !r.briefLoaded {
		r.Results = nil
	}
}

// PendingDetails returns results whose detailed flag is still false, in order.
func (r *Race) PendingDetails() []*Result {
	var pending []*Result
	for _, res := range r.Results {
		if !res.detailed {
			pending = append(pending, res)
		}
	}
	return pending
}

// Detailed reports whether the result's detail page has been merged.
func (r *Result) Detailed() bool { return r.detailed }

// MarkDetailed sets the result's detailed flag. It never resets.
func (r *Result) MarkDetailed() { r.detailed = true }

// FullName joins the name parts for messages.
func (r *Result) FullName() string {
	return strings.TrimSpace(strings.Join([]string{r.LastName, r.FirstName, r.MiddleName}, " "))
}

// Race returns the race with the given platform id.
func (f *Form) Race(platformID string) *Race {
	for _, race := range f.Races {
		if race.PlatformID == platformID {
			return race
		}
	}
	return nil
}

// AddRace appends a race or returns the existing one with the same platform id.
func (f *Form) AddRace(race *Race) *Race {
	if existing := f.Race(race.PlatformID); existing != nil {
		return existing
	}
	f.Races = append(f.Races, race)
	return race
}

// BriefLoaded reports whether every race has its brief flag.
func (f *Form) BriefLoaded() bool {
	if len(f.Races) == 0 {
		return false
	}
	for _, race := range f.Races {
		if !race.briefLoaded {
			return false
		}
	}
	return true
}

// DetailedLoaded reports whether every race has its detailed flag.
func (f *Form) DetailedLoaded() bool {
	if len(f.Races) == 0 {
		return false
	}
	for _, race := range f.Races {
		if !race.detailedLoaded {
			return false
		}
	}
	return true
}

// Stats summarizes the document for logs and CLI output.
type Stats struct {
	Races          int
	BriefRaces     int
	DetailedRaces  int
	LoadedRaces    int
	Results        int
	DetailedResult int
}

// Stats counts races and results by flag.
func (f *Form) Stats() Stats {
	var s Stats
	for _, race := range f.Races {
		s.Races++
		if race.briefLoaded {
			s.BriefRaces++
		}
		if race.detailedLoaded {
			s.DetailedRaces++
		}
		if race.loaded {
			s.LoadedRaces++
		}
		for _, res := range race.Results {
			s.Results++
			if res.detailed {
				s.DetailedResult++
			}
		}
	}
	return s
}

// Parse decodes a form from JSON.
func Parse(data []byte) (*Form, error) {
	var form Form
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("decode standard form: %w", err)
	}
	return &form, nil
}

// Encode serializes the form to JSON.
func (f *Form) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode standard form: %w", err)
	}
	return data, nil
}

type raceAlias Race

type raceFlags struct {
	BriefLoaded    bool `json:"results_brief_loaded"`
	DetailedLoaded bool `json:"results_detailed_loaded"`
	Loaded         bool `json:"results_loaded"`
}

func (r *Race) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		*raceAlias
		raceFlags
	}{(*raceAlias)(r), raceFlags{r.briefLoaded, r.detailedLoaded, r.loaded}})
}

func (r *Race) UnmarshalJSON(data []byte) error {
	aux := struct {
		*raceAlias
		raceFlags
	}{raceAlias: (*raceAlias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.briefLoaded = aux.BriefLoaded
	r.detailedLoaded = aux.DetailedLoaded
	r.loaded = aux.Loaded
	return nil
}

type resultAlias Result

func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		*resultAlias
		Detailed bool `json:"detailed"`
	}{(*resultAlias)(r), r.detailed})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	aux := struct {
		*resultAlias
		Detailed bool `json:"detailed"`
	}{resultAlias: (*resultAlias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.detailed = aux.Detailed
	return nil
}
