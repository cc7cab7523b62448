// Package trackshack adapts trackshack result pages: one static HTML page
// per event holding every race, with fixed column positions.
package trackshack

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"racefeed/internal/adapter"
	"racefeed/internal/fetch"
	"racefeed/internal/services"
	"racefeed/internal/standardform"
	"racefeed/internal/textutil"
)

// Platform is the platform id.
const Platform = "trackshack"

// Result table columns.
const (
	colPlace = iota
	colBib
	colName
	colGender
	colAge
	colCity
	colTime
	columnCount
)

var dateLayouts = []string{"January 2, 2006", "Jan 2, 2006", "01/02/2006", "2006-01-02"}

// Adapter implements adapter.Adapter for trackshack.
type Adapter struct {
	client *fetch.Client
}

// New builds the adapter from process dependencies. Static pages have no
// transient error shape, so nothing is held back from the raw cache.
func New(deps adapter.Deps) (adapter.Adapter, error) {
	client, err := deps.Client(Platform, nil)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

// Platform implements adapter.Adapter.
func (a *Adapter) Platform() string { return Platform }

// ResolveNewRunners implements adapter.Adapter.
func (a *Adapter) ResolveNewRunners(context.Context, *adapter.Run) error { return nil }

// FetchAndNormalize implements adapter.Adapter. The page carries everything,
// so results are complete as soon as they are parsed.
func (a *Adapter) FetchAndNormalize(ctx context.Context, run *adapter.Run) error {
	if run.Form.BriefLoaded() && run.Form.DetailedLoaded() {
		return nil
	}
	doc, err := a.client.GetDocument(ctx, run.Key, "results/"+url.PathEscape(run.Event.EventID)+".html", nil)
	if err != nil {
		return err
	}
	if len(run.Form.Races) == 0 {
		if err := a.readShell(run, doc); err != nil {
			return err
		}
	}

	var walkErr error
	doc.Find("div.race").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		raceID, _ := div.Attr("id")
		race := run.Form.Race(strings.TrimSpace(raceID))
		if race == nil || race.BriefLoaded() {
			return true
		}
		if err := readRace(run, race, div); err != nil {
			walkErr = err
			return false
		}
		return true
	})
	if walkErr != nil {
		return walkErr
	}
	for _, race := range run.Form.Races {
		if !race.BriefLoaded() {
			return services.Fatal("normalize", fmt.Sprintf("race %s vanished from the page", race.PlatformID), nil).
				WithPlatform(Platform).WithURL(run.Event.URL)
		}
	}
	return nil
}

func (a *Adapter) readShell(run *adapter.Run, doc *goquery.Document) error {
	name := fetch.CleanText(doc.Find("h1").First().Text())
	if name == "" {
		return services.Fatal("normalize", "page has no event title", nil).WithPlatform(Platform).WithURL(run.Event.URL)
	}
	dateText := fetch.CleanText(doc.Find("p.date").First().Text())
	start, err := parseDate(dateText)
	if err != nil {
		return services.Fatal("normalize", err.Error(), err).WithPlatform(Platform).WithURL(run.Event.URL)
	}
	run.Form.Event.Name = name
	run.Form.Event.StartDate = start
	if location := fetch.CleanText(doc.Find("p.location").First().Text()); location != "" {
		city, region, _ := strings.Cut(location, ",")
		run.Form.Event.City = strings.TrimSpace(city)
		if strings.TrimSpace(region) != "" {
			run.Form.Event.Country = "US"
		}
	}

	var walkErr error
	doc.Find("div.race").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		raceID, _ := div.Attr("id")
		raceID = strings.TrimSpace(raceID)
		if raceID == "" {
			walkErr = services.Fatal("normalize", "race block without id", nil).WithPlatform(Platform).WithURL(run.Event.URL)
			return false
		}
		raw, _ := div.Attr("data-distance")
		d, skip, err := run.Distance(raceID, raw)
		if err != nil {
			walkErr = err
			return false
		}
		if !skip {
			run.Form.AddRace(&standardform.Race{
				PlatformID:  raceID,
				Distance:    d,
				RawDistance: raw,
				PreciseName: fetch.CleanText(div.Find("h2").First().Text()),
			})
		}
		return true
	})
	if walkErr != nil {
		return walkErr
	}
	if len(run.Form.Races) == 0 {
		return services.Fatal("normalize", "page lists no races", nil).WithPlatform(Platform).WithURL(run.Event.URL)
	}
	return run.Flush()
}

func parseDate(text string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized event date %q", text)
}

func readRace(run *adapter.Run, race *standardform.Race, div *goquery.Selection) error {
	race.RestartBrief()
	var rowErr error
	div.Find("table.results tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() < columnCount {
			// division headers span the row
			return true
		}
		cell := func(i int) string { return fetch.CleanText(cells.Eq(i).Text()) }
		last, first, middle := textutil.SplitFullName(cell(colName))
		place, _ := strconv.Atoi(strings.TrimSuffix(cell(colPlace), "."))
		age, _ := strconv.Atoi(cell(colAge))
		res := &standardform.Result{
			Bib:        cell(colBib),
			LastName:   textutil.TitleName(last),
			FirstName:  textutil.TitleName(first),
			MiddleName: textutil.TitleName(middle),
			Gender:     cell(colGender),
			Age:        age,
			City:       cell(colCity),
			PlaceAbs:   place,
			ResultText: cell(colTime),
		}
		added, err := run.AcceptResult(race, res)
		if err != nil {
			rowErr = err
			return false
		}
		if added {
			res.MarkDetailed()
		}
		if err := run.Tick(); err != nil {
			rowErr = err
			return false
		}
		return true
	})
	if rowErr != nil {
		return rowErr
	}
	race.MarkBriefLoaded()
	if err := race.MarkDetailedLoaded(); err != nil {
		return services.Fatal("normalize", err.Error(), err).WithPlatform(Platform)
	}
	return run.Flush()
}
