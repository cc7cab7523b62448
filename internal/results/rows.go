package results

import (
	"fmt"
)

const resultColumns = "id, race_id, COALESCE(runner_id, 0), COALESCE(user_id, 0), platform_result_id, bib, last_name, first_name, middle_name, gender, age, country, region, city, club, category, place_abs, place_gender, place_category, status, centiseconds, gun_centiseconds, auto_loaded"

func scanResult(row rowScanner) (*Result, error) {
	var (
		r              Result
		gender, status string
	)
	if err := row.Scan(
		&r.ID, &r.RaceID, &r.RunnerID, &r.UserID, &r.PlatformResultID, &r.Bib,
		&r.LastName, &r.FirstName, &r.MiddleName, &gender, &r.Age,
		&r.Country, &r.Region, &r.City, &r.Club, &r.Category,
		&r.PlaceAbs, &r.PlaceGender, &r.PlaceCategory, &status,
		&r.Centiseconds, &r.GunCentiseconds, &r.AutoLoaded,
	); err != nil {
		return nil, err
	}
	r.Gender = Gender(gender)
	r.Status = Status(status)
	return &r, nil
}

// ResultsForRace lists a race's results with their splits, in insertion order.
func (tx *Tx) ResultsForRace(raceID int64) ([]*Result, error) {
	rows, err := tx.tx.QueryContext(tx.ctx, `SELECT `+resultColumns+` FROM results WHERE race_id = ? ORDER BY id`, raceID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	var (
		list []*Result
		byID = make(map[int64]*Result)
	)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, r)
		byID[r.ID] = r
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	splitRows, err := tx.tx.QueryContext(tx.ctx,
		`SELECT s.result_id, s.position, s.name, s.distance_length, s.centiseconds
         FROM splits s JOIN results r ON r.id = s.result_id
         WHERE r.race_id = ? ORDER BY s.result_id, s.position`, raceID)
	if err != nil {
		return nil, fmt.Errorf("list splits: %w", err)
	}
	defer splitRows.Close()
	for splitRows.Next() {
		var (
			resultID int64
			split    Split
		)
		if err := splitRows.Scan(&resultID, &split.Position, &split.Name, &split.DistanceLength, &split.Centiseconds); err != nil {
			return nil, err
		}
		if r := byID[resultID]; r != nil {
			r.Splits = append(r.Splits, split)
		}
	}
	return list, splitRows.Err()
}

// DeleteAutoResults removes the results of a race that were loaded by the
// pipeline, leaving manually entered rows alone.
func (tx *Tx) DeleteAutoResults(raceID int64) (int64, error) {
	res, err := tx.exec(`DELETE FROM results WHERE race_id = ? AND auto_loaded = 1`, raceID)
	if err != nil {
		return 0, fmt.Errorf("delete results of race %d: %w", raceID, err)
	}
	return res.RowsAffected()
}

// InsertResult inserts r with its splits and sets its ID.
func (tx *Tx) InsertResult(r *Result) error {
	id, err := tx.insert(
		`INSERT INTO results (race_id, runner_id, user_id, platform_result_id, bib, last_name, first_name, middle_name,
             gender, age, country, region, city, club, category, place_abs, place_gender, place_category,
             status, centiseconds, gun_centiseconds, auto_loaded, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RaceID, nullableInt(r.RunnerID), nullableInt(r.UserID), r.PlatformResultID, r.Bib,
		r.LastName, r.FirstName, r.MiddleName, string(r.Gender), r.Age,
		r.Country, r.Region, r.City, r.Club, r.Category,
		r.PlaceAbs, r.PlaceGender, r.PlaceCategory, string(r.Status),
		r.Centiseconds, r.GunCentiseconds, boolInt(r.AutoLoaded), tx.stamp(),
	)
	if err != nil {
		return fmt.Errorf("insert result %q: %w", r.Bib, err)
	}
	r.ID = id
	for i := range r.Splits {
		split := &r.Splits[i]
		if split.Position == 0 {
			split.Position = i + 1
		}
		if _, err := tx.exec(
			`INSERT INTO splits (result_id, position, name, distance_length, centiseconds) VALUES (?, ?, ?, ?, ?)`,
			id, split.Position, split.Name, split.DistanceLength, split.Centiseconds,
		); err != nil {
			return fmt.Errorf("insert split %d of result %d: %w", split.Position, id, err)
		}
	}
	return nil
}

// SetResultLinks attaches a result to a runner and a registered user.
// Zero values clear the corresponding link.
func (tx *Tx) SetResultLinks(resultID, runnerID, userID int64) error {
	_, err := tx.exec(`UPDATE results SET runner_id = ?, user_id = ? WHERE id = ?`,
		nullableInt(runnerID), nullableInt(userID), resultID)
	if err != nil {
		return fmt.Errorf("link result %d: %w", resultID, err)
	}
	return nil
}
