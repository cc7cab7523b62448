package results

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const eventColumns = "id, series_id, name, start_date, finish_date, city, country, url"

// EnsureSeries returns the series with the given name, creating it when absent.
func (tx *Tx) EnsureSeries(name string) (*Series, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("series name is required")
	}
	series := &Series{Name: name}
	err := tx.tx.QueryRowContext(tx.ctx, `SELECT id FROM series WHERE name = ?`, name).Scan(&series.ID)
	if err == nil {
		return series, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find series: %w", err)
	}
	series.ID, err = tx.insert(`INSERT INTO series (name, created_at) VALUES (?, ?)`, name, tx.stamp())
	if err != nil {
		return nil, fmt.Errorf("create series: %w", err)
	}
	return series, nil
}

func scanCanonicalEvent(row rowScanner) (*Event, error) {
	var (
		ev        Event
		startRaw  string
		finishRaw sql.NullString
	)
	if err := row.Scan(&ev.ID, &ev.SeriesID, &ev.Name, &startRaw, &finishRaw, &ev.City, &ev.Country, &ev.URL); err != nil {
		return nil, err
	}
	start, err := time.Parse(dateLayout, startRaw)
	if err != nil {
		return nil, fmt.Errorf("event %d start date: %w", ev.ID, err)
	}
	ev.StartDate = start
	ev.FinishDate = parseDate(finishRaw)
	return &ev, nil
}

type rowScanner interface{ Scan(dest ...any) error }

// GetEvent loads an event by id.
func (tx *Tx) GetEvent(id int64) (*Event, error) {
	ev, err := scanCanonicalEvent(tx.tx.QueryRowContext(tx.ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return ev, err
}

// FindEvent looks an event up by its natural key (series, start date).
func (tx *Tx) FindEvent(seriesID int64, start time.Time) (*Event, bool, error) {
	ev, err := scanCanonicalEvent(tx.tx.QueryRowContext(tx.ctx,
		`SELECT `+eventColumns+` FROM events WHERE series_id = ? AND start_date = ?`,
		seriesID, start.Format(dateLayout),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ev, true, nil
}

// CreateEvent inserts ev and sets its ID.
func (tx *Tx) CreateEvent(ev *Event) error {
	if ev.SeriesID == 0 || ev.StartDate.IsZero() {
		return errors.New("event requires series and start date")
	}
	id, err := tx.insert(
		`INSERT INTO events (series_id, name, start_date, finish_date, city, country, url, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.SeriesID, ev.Name, ev.StartDate.Format(dateLayout), nullableDate(ev.FinishDate),
		ev.City, ev.Country, ev.URL, tx.stamp(), tx.stamp(),
	)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	ev.ID = id
	return nil
}

// UpdateEvent writes the descriptive fields of next that differ from current.
// Series and start date are the natural key and are never changed here.
func (tx *Tx) UpdateEvent(current *Event, next Event) ([]string, error) {
	changed, err := tx.updateIfChanged("events", current.ID, []fieldChange{
		{"name", current.Name, next.Name},
		{"finish_date", auditDate(current.FinishDate), nullableDate(next.FinishDate)},
		{"city", current.City, next.City},
		{"country", current.Country, next.Country},
		{"url", current.URL, next.URL},
	}, true)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		next.ID, next.SeriesID, next.StartDate = current.ID, current.SeriesID, current.StartDate
		*current = next
	}
	return changed, nil
}

func auditDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
