// Package russiarunning adapts the russiarunning JSON API.
//
// The API wraps every payload in an envelope with a success flag; a false
// flag is the platform's transient "internal error" answer. Race results are
// paged brief lists, and splits come from one detail request per result.
package russiarunning

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"racefeed/internal/adapter"
	"racefeed/internal/fetch"
	"racefeed/internal/services"
	"racefeed/internal/standardform"
	"racefeed/internal/textutil"
)

// Platform is the platform id.
const Platform = "russiarunning"

const pageSize = 500

// IsTransient reports envelopes with success=false.
func IsTransient(body []byte) bool {
	var env struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Success == nil {
		return false
	}
	return !*env.Success
}

type eventPayload struct {
	Event struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Date       string `json:"date"`
		FinishDate string `json:"finishDate"`
		City       string `json:"city"`
		Country    string `json:"country"`
		Races      []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Distance string `json:"distance"`
			Virtual  bool   `json:"virtual"`
			Handicap bool   `json:"handicap"`
		} `json:"races"`
	} `json:"event"`
}

type resultItem struct {
	ID            string `json:"id"`
	Bib           string `json:"bib"`
	LastName      string `json:"lastName"`
	FirstName     string `json:"firstName"`
	MiddleName    string `json:"middleName"`
	Gender        string `json:"gender"`
	Age           int    `json:"age"`
	BirthYear     int    `json:"birthYear"`
	Country       string `json:"country"`
	Region        string `json:"region"`
	City          string `json:"city"`
	Club          string `json:"club"`
	Category      string `json:"category"`
	Place         int    `json:"place"`
	PlaceGender   int    `json:"placeGender"`
	PlaceCategory int    `json:"placeCategory"`
	Result        string `json:"result"`
	ParticipantID string `json:"participantId"`
}

type resultsPage struct {
	Total int          `json:"total"`
	Items []resultItem `json:"items"`
}

type detailPayload struct {
	Result struct {
		GunTime string `json:"gunTime"`
		Splits  []struct {
			Name     string `json:"name"`
			Distance int    `json:"distance"`
			Time     string `json:"time"`
		} `json:"splits"`
	} `json:"result"`
}

// Adapter implements adapter.Adapter for russiarunning.
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
		if !race.BriefLoaded() {
			if err := a.fetchBrief(ctx, run, race); err != nil {
				return err
			}
		}
		if !race.DetailedLoaded() {
			if err := a.fetchDetails(ctx, run, race); err != nil {
				return err
			}
		}
	}
	return nil
}

// ResolveNewRunners implements adapter.Adapter; participant ids are linked
// by the loader.
func (a *Adapter) ResolveNewRunners(context.Context, *adapter.Run) error { return nil }

func (a *Adapter) fetchShell(ctx context.Context, run *adapter.Run) error {
	var payload eventPayload
	if err := a.client.GetJSON(ctx, run.Key, "api/events/"+url.PathEscape(run.Event.EventID), nil, &payload); err != nil {
		return err
	}
	ev := payload.Event
	start, err := time.Parse("2006-01-02", ev.Date)
	if err != nil {
		return services.Fatal("normalize", fmt.Sprintf("event date %q", ev.Date), err).WithPlatform(Platform).WithURL(run.Event.URL)
	}
	run.Form.Event.Name = fetch.CleanText(ev.Name)
	run.Form.Event.StartDate = start
	if finish, err := time.Parse("2006-01-02", ev.FinishDate); err == nil {
		run.Form.Event.FinishDate = &finish
	}
	run.Form.Event.City = fetch.CleanText(ev.City)
	run.Form.Event.Country = fetch.CleanText(ev.Country)

	for _, r := range ev.Races {
		d, skip, err := run.Distance(r.ID, r.Distance)
		if err != nil {
			return err
		}
		if skip {
			continue
		}
		run.Form.AddRace(&standardform.Race{
			PlatformID:    r.ID,
			Distance:      d,
			RawDistance:   r.Distance,
			PreciseName:   fetch.CleanText(r.Name),
			IsVirtual:     r.Virtual,
			IsHandicapped: r.Handicap,
		})
	}
	if len(run.Form.Races) == 0 {
		return services.Fatal("normalize", "event has no races", nil).WithPlatform(Platform).WithURL(run.Event.URL)
	}
	return run.Flush()
}

func (a *Adapter) fetchBrief(ctx context.Context, run *adapter.Run, race *standardform.Race) error {
	race.RestartBrief()
	seen := 0
	for page := 1; ; page++ {
		params := url.Values{"page": {strconv.Itoa(page)}, "size": {strconv.Itoa(pageSize)}}
		var payload resultsPage
		if err := a.client.GetJSON(ctx, run.Key, "api/races/"+url.PathEscape(race.PlatformID)+"/results", params, &payload); err != nil {
			return err
		}
		for _, item := range payload.Items {
			seen++
			res := &standardform.Result{
				ID:            item.ID,
				Bib:           item.Bib,
				LastName:      textutil.TitleName(fetch.CleanText(item.LastName)),
				FirstName:     textutil.TitleName(fetch.CleanText(item.FirstName)),
				MiddleName:    textutil.TitleName(fetch.CleanText(item.MiddleName)),
				Gender:        item.Gender,
				Age:           item.Age,
				BirthYear:     item.BirthYear,
				Country:       fetch.CleanText(item.Country),
				Region:        fetch.CleanText(item.Region),
				City:          fetch.CleanText(item.City),
				Club:          fetch.CleanText(item.Club),
				Category:      item.Category,
				PlaceAbs:      item.Place,
				PlaceGender:   item.PlaceGender,
				PlaceCategory: item.PlaceCategory,
				ResultText:    item.Result,
			}
			if item.ParticipantID != "" {
				res.PlatformRunnerIDs = map[string]string{Platform: item.ParticipantID}
			}
			if _, err := run.AcceptResult(race, res); err != nil {
				return err
			}
			if err := run.Tick(); err != nil {
				return err
			}
		}
		if len(payload.Items) == 0 || seen >= payload.Total {
			break
		}
	}
	race.MarkBriefLoaded()
	return run.Flush()
}

func (a *Adapter) fetchDetails(ctx context.Context, run *adapter.Run, race *standardform.Race) error {
	for _, res := range race.PendingDetails() {
		if res.ID == "" {
			res.MarkDetailed()
			continue
		}
		var payload detailPayload
		if err := a.client.GetJSON(ctx, run.Key.ForRunner(res.ID), "api/results/"+url.PathEscape(res.ID), nil, &payload); err != nil {
			return err
		}
		res.GunTimeText = payload.Result.GunTime
		for _, split := range payload.Result.Splits {
			res.Splits = append(res.Splits, standardform.Split{Name: split.Name, Distance: split.Distance, TimeText: split.Time})
		}
		res.MarkDetailed()
		if err := run.Tick(); err != nil {
			return err
		}
	}
	if err := race.MarkDetailedLoaded(); err != nil {
		return services.Fatal("normalize", err.Error(), err).WithPlatform(Platform)
	}
	return run.Flush()
}
