// Package mikatiming adapts mikatiming result sites. They are server-rendered
// HTML: an event start page lists the races, each race has paged list pages
// and every result has a detail page with its splits.
package mikatiming

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
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
const Platform = "mikatiming"

// IsTransient reports the maintenance page the sites serve with status 200.
func IsTransient(body []byte) bool {
	text := strings.ToLower(string(body))
	return strings.Contains(text, "wartungsarbeiten") || strings.Contains(text, "temporarily unavailable")
}

var (
	datePattern      = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	birthYearPattern = regexp.MustCompile(`(19|20)\d{2}`)
)

// column names as printed in list headers, in English and German
var columnAliases = map[string]string{
	"place": "place", "platz": "place", "place (overall)": "place",
	"place (m/w)": "place_gender", "place (gender)": "place_gender", "platz (m/w)": "place_gender", "mw": "place_gender",
	"place (ak)": "place_category", "place (category)": "place_category", "platz (ak)": "place_category", "ak-platz": "place_category",
	"bib": "bib", "startnr.": "bib", "startnr": "bib", "bib number": "bib",
	"name": "name", "nation": "nation", "club": "club", "verein": "club", "team": "club",
	"category": "category", "ak": "category", "age group": "category",
	"gender": "gender", "geschlecht": "gender",
	"time": "time", "finish": "time", "netto": "time", "net time": "time", "zielzeit": "time",
	"brutto": "gun", "gun time": "gun",
}

// Adapter implements adapter.Adapter for mikatiming.
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

// ResolveNewRunners implements adapter.Adapter. Result ids are per event and
// carry no runner identity.
func (a *Adapter) ResolveNewRunners(context.Context, *adapter.Run) error { return nil }

func (a *Adapter) eventPath(run *adapter.Run) string {
	return url.PathEscape(run.Event.EventID) + "/"
}

// FetchAndNormalize implements adapter.Adapter.
func (a *Adapter) FetchAndNormalize(ctx context.Context, run *adapter.Run) error {
	if len(run.Form.Races) == 0 {
		if err := a.fetchShell(ctx, run); err != nil {
			return err
		}
	}
	for _, race := range run.Form.Races {
		if !race.BriefLoaded() {
			if err := a.fetchList(ctx, run, race); err != nil {
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

func (a *Adapter) fetchShell(ctx context.Context, run *adapter.Run) error {
	doc, err := a.client.GetDocument(ctx, run.Key, a.eventPath(run), url.Values{"pid": {"start"}})
	if err != nil {
		return err
	}
	name := fetch.CleanText(doc.Find("h1").First().Text())
	if name == "" {
		return a.shapeError(run, "event page has no title")
	}
	start, err := parseDate(doc.Find(".event-date").First().Text())
	if err != nil {
		return a.shapeError(run, err.Error())
	}
	run.Form.Event.Name = name
	run.Form.Event.StartDate = start
	if location := fetch.CleanText(doc.Find(".event-location").First().Text()); location != "" {
		city, country, _ := strings.Cut(location, ",")
		run.Form.Event.City = strings.TrimSpace(city)
		run.Form.Event.Country = strings.TrimSpace(country)
	}

	var walkErr error
	doc.Find("select#race option").EachWithBreak(func(_ int, opt *goquery.Selection) bool {
		raceID, _ := opt.Attr("value")
		raceID = strings.TrimSpace(raceID)
		if raceID == "" {
			return true
		}
		label := fetch.CleanText(opt.Text())
		raw, ok := opt.Attr("data-distance")
		if !ok || strings.TrimSpace(raw) == "" {
			raw = label
		}
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
				PreciseName: label,
				IsVirtual:   strings.Contains(strings.ToLower(label), "virtual"),
			})
		}
		return true
	})
	if walkErr != nil {
		return walkErr
	}
	if len(run.Form.Races) == 0 {
		return a.shapeError(run, "event page lists no races")
	}
	return run.Flush()
}

func parseDate(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if m := datePattern.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
	}
	if len(text) >= 10 {
		if t, err := time.Parse("2006-01-02", text[:10]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized event date %q", text)
}

func (a *Adapter) fetchList(ctx context.Context, run *adapter.Run, race *standardform.Race) error {
	race.RestartBrief()
	for page := 1; ; page++ {
		params := url.Values{"pid": {"list"}, "race": {race.PlatformID}, "page": {strconv.Itoa(page)}}
		doc, err := a.client.GetDocument(ctx, run.Key, a.eventPath(run), params)
		if err != nil {
			return err
		}
		table := doc.Find("table.list").First()
		if table.Length() == 0 {
			return a.shapeError(run, fmt.Sprintf("race %s page %d has no result table", race.PlatformID, page))
		}
		columns := headerColumns(table)
		if _, ok := columns["name"]; !ok {
			return a.shapeError(run, fmt.Sprintf("race %s result table has no name column", race.PlatformID))
		}

		var rowErr error
		table.Find("tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
			res := parseRow(tr, columns)
			if _, err := run.AcceptResult(race, res); err != nil {
				rowErr = err
				return false
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
		if doc.Find("a.pages-next").Length() == 0 {
			break
		}
	}
	race.MarkBriefLoaded()
	return run.Flush()
}

func headerColumns(table *goquery.Selection) map[string]int {
	columns := make(map[string]int)
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		label := strings.ToLower(fetch.CleanText(th.Text()))
		if name, ok := columnAliases[label]; ok {
			if _, seen := columns[name]; !seen {
				columns[name] = i
			}
		}
	})
	return columns
}

func parseRow(tr *goquery.Selection, columns map[string]int) *standardform.Result {
	cells := tr.Find("td")
	cell := func(name string) *goquery.Selection {
		i, ok := columns[name]
		if !ok {
			return nil
		}
		return cells.Eq(i)
	}
	text := func(name string) string {
		if c := cell(name); c != nil {
			return fetch.CleanText(c.Text())
		}
		return ""
	}
	number := func(name string) int {
		n, _ := strconv.Atoi(strings.TrimSuffix(text(name), "."))
		return n
	}

	res := &standardform.Result{
		Bib:           text("bib"),
		Country:       strings.Trim(text("nation"), "()"),
		Club:          text("club"),
		Category:      text("category"),
		PlaceAbs:      number("place"),
		PlaceGender:   number("place_gender"),
		PlaceCategory: number("place_category"),
		ResultText:    text("time"),
		GunTimeText:   text("gun"),
	}
	if c := cell("name"); c != nil {
		last, first, middle := textutil.SplitFullName(fetch.CleanText(c.Text()))
		res.LastName = textutil.TitleName(last)
		res.FirstName = textutil.TitleName(first)
		res.MiddleName = textutil.TitleName(middle)
		if href, ok := c.Find("a").Attr("href"); ok {
			res.ID = detailID(href)
		}
	}
	res.Gender = text("gender")
	if res.Gender == "" {
		res.Gender = genderFromCategory(res.Category)
	}
	return res
}

func detailID(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("idp")
}

// genderFromCategory reads the sex prefix of age group codes like M35 or W40.
func genderFromCategory(category string) string {
	category = strings.ToUpper(strings.TrimSpace(category))
	switch {
	case strings.HasPrefix(category, "M"):
		return "m"
	case strings.HasPrefix(category, "W"), strings.HasPrefix(category, "F"):
		return "f"
	}
	return ""
}

func (a *Adapter) fetchDetails(ctx context.Context, run *adapter.Run, race *standardform.Race) error {
	for _, res := range race.PendingDetails() {
		if res.ID == "" {
			res.MarkDetailed()
			continue
		}
		doc, err := a.client.GetDocument(ctx, run.Key.ForRunner(res.ID), a.eventPath(run), url.Values{"content": {"detail"}, "idp": {res.ID}})
		if err != nil {
			return err
		}
		if m := birthYearPattern.FindString(fetch.CleanText(doc.Find(".f-birth_year").First().Text())); m != "" {
			res.BirthYear, _ = strconv.Atoi(m)
		}
		if city := fetch.CleanText(doc.Find(".f-city").First().Text()); city != "" {
			res.City = city
		}
		res.Splits = res.Splits[:0]
		doc.Find("table.splits tbody tr").Each(func(_ int, tr *goquery.Selection) {
			name := fetch.CleanText(tr.Find("th").First().Text())
			timeText := fetch.CleanText(tr.Find("td.time").First().Text())
			if name == "" || timeText == "" || timeText == "-" {
				return
			}
			split := standardform.Split{Name: name, TimeText: timeText}
			if raw, ok := tr.Attr("data-distance"); ok {
				split.Distance, _ = strconv.Atoi(raw)
			}
			res.Splits = append(res.Splits, split)
		})
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

func (a *Adapter) shapeError(run *adapter.Run, msg string) error {
	return services.Fatal("normalize", msg, nil).WithPlatform(Platform).WithURL(run.Event.URL)
}
