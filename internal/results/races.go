package results

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const raceColumns = "id, event_id, distance_length, distance_name, precise_name, is_virtual, is_handicapped, loaded_from, loaded_at, finishers_count, men_count, women_count, winner_centiseconds"

func scanRace(row rowScanner) (*Race, error) {
	var (
		race      Race
		loadedRaw sql.NullString
	)
	if err := row.Scan(
		&race.ID, &race.EventID, &race.DistanceLength, &race.DistanceName, &race.PreciseName,
		&race.IsVirtual, &race.IsHandicapped, &race.LoadedFrom, &loadedRaw,
		&race.Finishers, &race.Men, &race.Women, &race.WinnerCentiseconds,
	); err != nil {
		return nil, err
	}
	if loadedRaw.Valid {
		if at, err := time.Parse(timeLayout, loadedRaw.String); err == nil {
			race.LoadedAt = &at
		}
	}
	return &race, nil
}

// GetRace loads a race by id.
func (tx *Tx) GetRace(id int64) (*Race, error) {
	race, err := scanRace(tx.tx.QueryRowContext(tx.ctx, `SELECT `+raceColumns+` FROM races WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("race %d: %w", id, ErrNotFound)
	}
	return race, err
}

// RacesForEvent lists an event's races ordered by distance then id.
func (tx *Tx) RacesForEvent(eventID int64) ([]*Race, error) {
	rows, err := tx.tx.QueryContext(tx.ctx,
		`SELECT `+raceColumns+` FROM races WHERE event_id = ? ORDER BY distance_length, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list races: %w", err)
	}
	defer rows.Close()
	var races []*Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, err
		}
		races = append(races, race)
	}
	return races, rows.Err()
}

// CreateRace inserts race and sets its ID.
func (tx *Tx) CreateRace(race *Race) error {
	id, err := tx.insert(
		`INSERT INTO races (event_id, distance_length, distance_name, precise_name, is_virtual, is_handicapped, loaded_from, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		race.EventID, race.DistanceLength, race.DistanceName, race.PreciseName,
		boolInt(race.IsVirtual), boolInt(race.IsHandicapped), race.LoadedFrom, tx.stamp(),
	)
	if err != nil {
		return fmt.Errorf("create race %d/%q: %w", race.DistanceLength, race.PreciseName, err)
	}
	race.ID = id
	return nil
}

// UpdateRace writes the descriptive fields of next that differ from current.
func (tx *Tx) UpdateRace(current *Race, next Race) ([]string, error) {
	changed, err := tx.updateIfChanged("races", current.ID, []fieldChange{
		{"precise_name", current.PreciseName, next.PreciseName},
		{"distance_name", current.DistanceName, next.DistanceName},
		{"is_virtual", current.IsVirtual, next.IsVirtual},
		{"is_handicapped", current.IsHandicapped, next.IsHandicapped},
		{"loaded_from", current.LoadedFrom, next.LoadedFrom},
	}, false)
	if err != nil {
		return nil, err
	}
	current.PreciseName = next.PreciseName
	current.DistanceName = next.DistanceName
	current.IsVirtual = next.IsVirtual
	current.IsHandicapped = next.IsHandicapped
	current.LoadedFrom = next.LoadedFrom
	return changed, nil
}

// SetAggregates stores re-derived counters and marks the race loaded now.
func (tx *Tx) SetAggregates(raceID int64, agg Aggregates) error {
	_, err := tx.exec(
		`UPDATE races SET finishers_count = ?, men_count = ?, women_count = ?, winner_centiseconds = ?, loaded_at = ? WHERE id = ?`,
		agg.Finishers, agg.Men, agg.Women, agg.WinnerCentiseconds, tx.stamp(), raceID,
	)
	if err != nil {
		return fmt.Errorf("set race %d aggregates: %w", raceID, err)
	}
	return nil
}
