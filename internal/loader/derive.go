package loader

import (
	"fmt"
	"strings"

	"racefeed/internal/results"
	"racefeed/internal/standardform"
	"racefeed/internal/textutil"
)

// Derive converts a raw result into a canonical row with parsed gender,
// finish status and centisecond times.
func Derive(raceID int64, raw *standardform.Result) (*results.Result, error) {
	status, cs, err := results.ParseResult(raw.ResultText)
	if err != nil {
		return nil, fmt.Errorf("result %s (bib %s): %w", raw.ID, raw.Bib, err)
	}
	var gun int64
	if raw.GunTimeText != "" {
		if gun, err = results.ParseCentiseconds(raw.GunTimeText); err != nil {
			return nil, fmt.Errorf("result %s gun time: %w", raw.ID, err)
		}
	}
	row := &results.Result{
		RaceID:           raceID,
		PlatformResultID: raw.ID,
		Bib:              strings.TrimSpace(raw.Bib),
		LastName:         textutil.TitleName(raw.LastName),
		FirstName:        textutil.TitleName(raw.FirstName),
		MiddleName:       textutil.TitleName(raw.MiddleName),
		Gender:           results.ParseGender(raw.Gender),
		Age:              raw.Age,
		Country:          raw.Country,
		Region:           raw.Region,
		City:             raw.City,
		Club:             raw.Club,
		Category:         raw.Category,
		PlaceAbs:         raw.PlaceAbs,
		PlaceGender:      raw.PlaceGender,
		PlaceCategory:    raw.PlaceCategory,
		Status:           status,
		Centiseconds:     cs,
		GunCentiseconds:  gun,
		AutoLoaded:       true,
	}
	for i, split := range raw.Splits {
		splitCS, err := results.ParseCentiseconds(split.TimeText)
		if err != nil {
			return nil, fmt.Errorf("result %s split %q: %w", raw.ID, split.Name, err)
		}
		if splitCS == 0 {
			continue
		}
		row.Splits = append(row.Splits, results.Split{
			Position:       i + 1,
			Name:           split.Name,
			DistanceLength: split.Distance,
			Centiseconds:   splitCS,
		})
	}
	return row, nil
}

// Aggregate computes the race counters from its loaded rows.
func Aggregate(rows []*results.Result) results.Aggregates {
	var agg results.Aggregates
	for _, row := range rows {
		if row.Status != results.StatusFinished {
			continue
		}
		agg.Finishers++
		switch row.Gender {
		case results.GenderMale:
			agg.Men++
		case results.GenderFemale:
			agg.Women++
		}
		if agg.WinnerCentiseconds == 0 || row.Centiseconds < agg.WinnerCentiseconds {
			agg.WinnerCentiseconds = row.Centiseconds
		}
	}
	return agg
}
