package results

import (
	"strings"
	"time"
)

// Gender is the parsed gender of a runner or result.
type Gender string

const (
	GenderUnknown   Gender = ""
	GenderMale      Gender = "m"
	GenderFemale    Gender = "f"
	GenderNonBinary Gender = "x"
)

// Status is the finish status of a result.
type Status string

const (
	StatusFinished Status = "finished"
	StatusDNF      Status = "dnf"
	StatusDNS      Status = "dns"
	StatusDQ       Status = "dq"
)

// Series groups the yearly editions of one event.
type Series struct {
	ID   int64
	Name string
}

// Event is one canonical edition of a series.
type Event struct {
	ID         int64
	SeriesID   int64
	Name       string
	StartDate  time.Time
	FinishDate *time.Time
	City       string
	Country    string
	URL        string
}

// Race is one distance of an event. The pair (distance length, precise name)
// is unique per event.
type Race struct {
	ID             int64
	EventID        int64
	DistanceLength int
	DistanceName   string
	PreciseName    string
	IsVirtual      bool
	IsHandicapped  bool
	LoadedFrom     string
	LoadedAt       *time.Time
	Aggregates
}

// Aggregates are the per-race counters re-derived after every load.
type Aggregates struct {
	Finishers          int
	Men                int
	Women              int
	WinnerCentiseconds int64
}

// Runner is a canonical person. A runner holds at most one external id per platform.
type Runner struct {
	ID         int64
	LastName   string
	FirstName  string
	MiddleName string
	BirthYear  int
	Gender     Gender
	City       string
	Country    string
	Club       string
	UserID     int64
}

// FullName joins the non-empty name parts.
func (r Runner) FullName() string {
	return strings.Join(strings.Fields(r.FirstName+" "+r.MiddleName+" "+r.LastName), " ")
}

// PlatformLink is one recorded external id of a runner.
type PlatformLink struct {
	RunnerID   int64
	Platform   string
	ExternalID string
}

// Result is one finisher (or non-finisher) row of a race.
type Result struct {
	ID               int64
	RaceID           int64
	RunnerID         int64
	UserID           int64
	PlatformResultID string
	Bib              string
	LastName         string
	FirstName        string
	MiddleName       string
	Gender           Gender
	Age              int
	Country          string
	Region           string
	City             string
	Club             string
	Category         string
	PlaceAbs         int
	PlaceGender      int
	PlaceCategory    int
	Status           Status
	Centiseconds     int64
	GunCentiseconds  int64
	AutoLoaded       bool
	Splits           []Split
}

// Split is an intermediate time of a result.
type Split struct {
	Position       int
	Name           string
	DistanceLength int
	Centiseconds   int64
}

// Change is one audited field update.
type Change struct {
	Table    string
	RowID    int64
	Field    string
	OldValue string
	NewValue string
	Actor    string
	At       time.Time
}
