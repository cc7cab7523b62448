package results

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const runnerColumns = "id, last_name, first_name, middle_name, birth_year, gender, city, country, club, user_id"

func scanRunner(row rowScanner) (*Runner, error) {
	var (
		r      Runner
		gender string
		userID sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.LastName, &r.FirstName, &r.MiddleName, &r.BirthYear, &gender, &r.City, &r.Country, &r.Club, &userID); err != nil {
		return nil, err
	}
	r.Gender = Gender(gender)
	r.UserID = userID.Int64
	return &r, nil
}

// GetRunner loads a runner by id.
func (tx *Tx) GetRunner(id int64) (*Runner, error) {
	r, err := scanRunner(tx.tx.QueryRowContext(tx.ctx, `SELECT `+runnerColumns+` FROM runners WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("runner %d: %w", id, ErrNotFound)
	}
	return r, err
}

// CreateRunner inserts r and sets its ID.
func (tx *Tx) CreateRunner(r *Runner) error {
	id, err := tx.insert(
		`INSERT INTO runners (last_name, first_name, middle_name, birth_year, gender, city, country, club, user_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.LastName, r.FirstName, r.MiddleName, r.BirthYear, string(r.Gender), r.City, r.Country, r.Club,
		nullableInt(r.UserID), tx.stamp(), tx.stamp(),
	)
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}
	r.ID = id
	return nil
}

// UpdateRunner writes the fields of next that differ from current.
func (tx *Tx) UpdateRunner(current *Runner, next Runner) ([]string, error) {
	changed, err := tx.updateIfChanged("runners", current.ID, []fieldChange{
		{"last_name", current.LastName, next.LastName},
		{"first_name", current.FirstName, next.FirstName},
		{"middle_name", current.MiddleName, next.MiddleName},
		{"birth_year", current.BirthYear, next.BirthYear},
		{"gender", string(current.Gender), string(next.Gender)},
		{"city", current.City, next.City},
		{"country", current.Country, next.Country},
		{"club", current.Club, next.Club},
	}, true)
	if err != nil {
		return nil, err
	}
	next.ID, next.UserID = current.ID, current.UserID
	*current = next
	return changed, nil
}

// RunnerByPlatformID returns the runner holding an external id on a platform.
func (tx *Tx) RunnerByPlatformID(platform, externalID string) (int64, bool, error) {
	var id int64
	err := tx.tx.QueryRowContext(tx.ctx,
		`SELECT runner_id FROM runner_platforms WHERE platform = ? AND external_id = ?`,
		platform, externalID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find runner by %s id: %w", platform, err)
	}
	return id, true, nil
}

// Links lists a runner's platform ids ordered by platform.
func (tx *Tx) Links(runnerID int64) ([]PlatformLink, error) {
	rows, err := tx.tx.QueryContext(tx.ctx,
		`SELECT runner_id, platform, external_id FROM runner_platforms WHERE runner_id = ? ORDER BY platform`, runnerID)
	if err != nil {
		return nil, fmt.Errorf("list runner links: %w", err)
	}
	defer rows.Close()
	var links []PlatformLink
	for rows.Next() {
		var link PlatformLink
		if err := rows.Scan(&link.RunnerID, &link.Platform, &link.ExternalID); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// LinkPlatform records an external id for a runner. Linking the same pair
// twice is a no-op.
func (tx *Tx) LinkPlatform(runnerID int64, platform, externalID string) error {
	res, err := tx.exec(
		`INSERT INTO runner_platforms (runner_id, platform, external_id, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT DO NOTHING`,
		runnerID, platform, externalID, tx.stamp(),
	)
	if err != nil {
		return fmt.Errorf("link runner %d to %s/%s: %w", runnerID, platform, externalID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		owner, ok, err := tx.RunnerByPlatformID(platform, externalID)
		if err != nil {
			return err
		}
		if ok && owner == runnerID {
			return nil
		}
		return fmt.Errorf("link runner %d to %s/%s: conflicts with an existing link", runnerID, platform, externalID)
	}
	return tx.audit("runners", runnerID, "platform:"+platform, "", externalID)
}

// MergeRunners moves everything owned by loser onto survivor and deletes
// loser. A loser link on a platform where the survivor already holds a
// different id cannot be kept; such links are returned and audited.
func (tx *Tx) MergeRunners(survivorID, loserID int64) ([]PlatformLink, error) {
	if survivorID == loserID {
		return nil, nil
	}
	survivor, err := tx.GetRunner(survivorID)
	if err != nil {
		return nil, err
	}
	loser, err := tx.GetRunner(loserID)
	if err != nil {
		return nil, err
	}
	survivorLinks, err := tx.Links(survivorID)
	if err != nil {
		return nil, err
	}
	held := make(map[string]string, len(survivorLinks))
	for _, link := range survivorLinks {
		held[link.Platform] = link.ExternalID
	}
	loserLinks, err := tx.Links(loserID)
	if err != nil {
		return nil, err
	}

	var dropped []PlatformLink
	for _, link := range loserLinks {
		if _, taken := held[link.Platform]; taken {
			dropped = append(dropped, link)
			if err := tx.audit("runners", survivorID, "dropped_link:"+link.Platform, link.ExternalID, ""); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := tx.exec(`UPDATE runner_platforms SET runner_id = ? WHERE runner_id = ? AND platform = ?`,
			survivorID, loserID, link.Platform); err != nil {
			return nil, fmt.Errorf("move %s link: %w", link.Platform, err)
		}
		if err := tx.audit("runners", survivorID, "platform:"+link.Platform, "", link.ExternalID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.exec(`UPDATE results SET runner_id = ? WHERE runner_id = ?`, survivorID, loserID); err != nil {
		return nil, fmt.Errorf("move results: %w", err)
	}
	if survivor.UserID == 0 && loser.UserID != 0 {
		if _, err := tx.updateIfChanged("runners", survivorID, []fieldChange{{"user_id", survivor.UserID, loser.UserID}}, true); err != nil {
			return nil, err
		}
	}
	if err := tx.audit("runners", survivorID, "merged_from", "", strconv.FormatInt(loserID, 10)+" "+strings.TrimSpace(loser.FullName())); err != nil {
		return nil, err
	}
	if _, err := tx.exec(`DELETE FROM runners WHERE id = ?`, loserID); err != nil {
		return nil, fmt.Errorf("delete merged runner %d: %w", loserID, err)
	}
	return dropped, nil
}
