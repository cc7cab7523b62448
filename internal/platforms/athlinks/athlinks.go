// Package athlinks adapts the athlinks event API. Results are published in
// full on the paged list, so there is no detail pass; claimed athlete
// profiles, and the accounts athletes connected on other platforms, are
// resolved to canonical runners before loading.
package athlinks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"racefeed/internal/adapter"
	"racefeed/internal/fetch"
	"racefeed/internal/services"
	"racefeed/internal/standardform"
	"racefeed/internal/textutil"
)

// Platform is the platform id.
const Platform = "athlinks"

const pageLimit = 100

// IsTransient reports the API's retryable error envelope.
func IsTransient(body []byte) bool {
	var env struct {
		Error *struct {
			Retryable bool `json:"retryable"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return false
	}
	return env.Error.Retryable
}

type eventPayload struct {
	EventID   int64  `json:"eventId"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	City      string `json:"city"`
	Country   string `json:"country"`
	Races     []struct {
		RaceID         int64   `json:"raceId"`
		RaceName       string  `json:"raceName"`
		DistanceMeters float64 `json:"distanceMeters"`
		Distance       string  `json:"distance"`
		Virtual        bool    `json:"virtual"`
	} `json:"races"`
}

type connection struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
}

type entry struct {
	EntryID      int64        `json:"entryId"`
	Bib          string       `json:"bib"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	Gender       string       `json:"gender"`
	Age          int          `json:"age"`
	City         string       `json:"city"`
	Region       string       `json:"region"`
	Country      string       `json:"country"`
	Division     string       `json:"division"`
	OverallRank  int          `json:"overallRank"`
	GenderRank   int          `json:"genderRank"`
	DivisionRank int          `json:"divisionRank"`
	Time         string       `json:"time"`
	GunTime      string       `json:"gunTime"`
	AthleteID    int64        `json:"athleteId"`
	Connections  []connection `json:"connections"`
	Intervals    []struct {
		Name           string `json:"name"`
		DistanceMeters int    `json:"distanceMeters"`
		Time           string `json:"time"`
	} `json:"intervals"`
}

type resultsPage struct {
	Total   int     `json:"total"`
	Results []entry `json:"results"`
}

// Adapter implements adapter.Adapter for athlinks.
type Adapter struct {
	client *fetch.Client
}

// New builds the adapter from process dependencies.
func New(deps adapter.Deps) (adapter.Adapter, error) {
	client, err := deps.Client(Platform, IsTransient)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

// Platform implements adapter.Adapter.
func (a *Adapter) Platform() string { return Platform }

// FetchAndNormalize implements adapter.Adapter.
func (a *Adapter) FetchAndNormalize(ctx context.Context, run *adapter.Run) error {
	if len(run.Form.Races) == 0 {
		if err := a.fetchShell(ctx, run); err != nil {
			return err
		}
	}
	for _, race := range run.Form.Races {
		if race.BriefLoaded() {
			continue
		}
		if err := a.fetchResults(ctx, run, race); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) fetchShell(ctx context.Context, run *adapter.Run) error {
	var ev eventPayload
	if err := a.client.GetJSON(ctx, run.Key, "api/events/"+url.PathEscape(run.Event.EventID), nil, &ev); err != nil {
		return err
	}
	start, err := parseDate(ev.StartDate)
	if err != nil {
		return services.Fatal("normalize", fmt.Sprintf("event start date %q", ev.StartDate), err).WithPlatform(Platform).WithURL(run.Event.URL)
	}
	run.Form.Event.Name = fetch.CleanText(ev.Name)
	run.Form.Event.StartDate = start
	if end, err := parseDate(ev.EndDate); err == nil && !end.Equal(start) {
		run.Form.Event.FinishDate = &end
	}
	run.Form.Event.City = fetch.CleanText(ev.City)
	run.Form.Event.Country = fetch.CleanText(ev.Country)

	for _, r := range ev.Races {
		raceID := strconv.FormatInt(r.RaceID, 10)
		raw := r.Distance
		if r.DistanceMeters > 0 {
			raw = strconv.Itoa(int(r.DistanceMeters+0.5)) + " m"
		}
		d, skip, err := run.Distance(raceID, raw)
		if err != nil {
			return err
		}
		if skip {
			continue
		}
		run.Form.AddRace(&standardform.Race{
			PlatformID:  raceID,
			Distance:    d,
			RawDistance: raw,
			PreciseName: fetch.CleanText(r.RaceName),
			IsVirtual:   r.Virtual,
		})
	}
	if len(run.Form.Races) == 0 {
		return services.Fatal("normalize", "event has no races", nil).WithPlatform(Platform).WithURL(run.Event.URL)
	}
	return run.Flush()
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 10 {
		raw = raw[:10]
	}
	return time.Parse("2006-01-02", raw)
}

func (a *Adapter) fetchResults(ctx context.Context, run *adapter.Run, race *standardform.Race) error {
	race.RestartBrief()
	path := "api/events/" + url.PathEscape(run.Event.EventID) + "/races/" + url.PathEscape(race.PlatformID) + "/results"
	for from := 0; ; from += pageLimit {
		params := url.Values{"from": {strconv.Itoa(from)}, "limit": {strconv.Itoa(pageLimit)}}
		var page resultsPage
		if err := a.client.GetJSON(ctx, run.Key, path, params, &page); err != nil {
			return err
		}
		for _, e := range page.Results {
			res := toResult(e)
			added, err := run.AcceptResult(race, res)
			if err != nil {
				return err
			}
			if added {
				res.MarkDetailed()
			}
			if err := run.Tick(); err != nil {
				return err
			}
		}
		if len(page.Results) < pageLimit || from+pageLimit >= page.Total {
			break
		}
	}
	race.MarkBriefLoaded()
	if err := race.MarkDetailedLoaded(); err != nil {
		return services.Fatal("normalize", err.Error(), err).WithPlatform(Platform)
	}
	return run.Flush()
}

func toResult(e entry) *standardform.Result {
	res := &standardform.Result{
		Bib:           strings.TrimSpace(e.Bib),
		LastName:      textutil.TitleName(fetch.CleanText(e.LastName)),
		FirstName:     textutil.TitleName(fetch.CleanText(e.FirstName)),
		Gender:        e.Gender,
		Age:           e.Age,
		City:          fetch.CleanText(e.City),
		Region:        fetch.CleanText(e.Region),
		Country:       fetch.CleanText(e.Country),
		Category:      e.Division,
		PlaceAbs:      e.OverallRank,
		PlaceGender:   e.GenderRank,
		PlaceCategory: e.DivisionRank,
		ResultText:    e.Time,
		GunTimeText:   e.GunTime,
	}
	if e.EntryID > 0 {
		res.ID = strconv.FormatInt(e.EntryID, 10)
	}
	if e.AthleteID > 0 {
		ids := map[string]string{Platform: strconv.FormatInt(e.AthleteID, 10)}
		for _, c := range e.Connections {
			p := strings.ToLower(strings.TrimSpace(c.Platform))
			if p != "" && p != Platform && c.ID != "" {
				ids[p] = c.ID
			}
		}
		res.PlatformRunnerIDs = ids
	}
	for _, iv := range e.Intervals {
		res.Splits = append(res.Splits, standardform.Split{Name: iv.Name, Distance: iv.DistanceMeters, TimeText: iv.Time})
	}
	return res
}

// ResolveNewRunners links every result of a claimed athlete profile to a
// canonical runner, one transaction per result. Resolved ids are kept in the
// form, so a resumed attempt skips them.
func (a *Adapter) ResolveNewRunners(ctx context.Context, run *adapter.Run) error {
	for _, race := range run.Form.Races {
		if race.Loaded() {
			continue
		}
		for _, res := range race.Results {
			if res.CanonicalRunnerID != 0 || len(res.PlatformRunnerIDs) == 0 {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := run.Resolver.ResolveRunner(ctx, res); err != nil {
				return err
			}
			if err := run.Tick(); err != nil {
				return err
			}
		}
	}
	return nil
}
