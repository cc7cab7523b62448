package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"racefeed/internal/logging"
	"racefeed/internal/results"
	"racefeed/internal/services"
	"racefeed/internal/standardform"
	"racefeed/internal/textutil"
)

// ResolveRaces matches every form race to a canonical race of the attached
// event, creating canonical races where none match. Within one distance the
// precise names must match exactly; a single unnamed canonical race absorbs
// the first unmatched form race and takes its name. Any other leftover pair
// is ambiguous and fatal.
func (r *Resolver) ResolveRaces(ctx context.Context, form *standardform.Form) error {
	eventID := form.Event.CanonicalEventID
	if eventID == 0 {
		return services.Fatal("resolve_races", "form is not attached to a canonical event", nil).WithPlatform(r.platform)
	}
	return r.store.WithTx(ctx, r.Actor(), func(tx *results.Tx) error {
		canonical, err := tx.RacesForEvent(eventID)
		if err != nil {
			return err
		}
		byID := make(map[int64]*results.Race, len(canonical))
		for _, race := range canonical {
			byID[race.ID] = race
		}

		claimed := make(map[int64]bool)
		pendingByLength := make(map[int][]*standardform.Race)
		for _, race := range form.Races {
			if race.CanonicalRaceID != 0 {
				if _, ok := byID[race.CanonicalRaceID]; ok {
					claimed[race.CanonicalRaceID] = true
					continue
				}
				race.CanonicalRaceID = 0
			}
			pendingByLength[race.Distance.Length] = append(pendingByLength[race.Distance.Length], race)
		}
		available := make(map[int][]*results.Race)
		for _, race := range canonical {
			if !claimed[race.ID] {
				available[race.DistanceLength] = append(available[race.DistanceLength], race)
			}
		}

		lengths := make([]int, 0, len(pendingByLength))
		for length := range pendingByLength {
			lengths = append(lengths, length)
		}
		sort.Ints(lengths)
		for _, length := range lengths {
			if err := r.matchGroup(tx, eventID, length, pendingByLength[length], available[length]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Resolver) matchGroup(tx *results.Tx, eventID int64, length int, incoming []*standardform.Race, existing []*results.Race) error {
	used := make(map[int64]bool, len(existing))
	var unmatched []*standardform.Race
	for _, race := range incoming {
		name := textutil.FoldName(race.PreciseName)
		var match *results.Race
		for _, candidate := range existing {
			if !used[candidate.ID] && textutil.FoldName(candidate.PreciseName) == name {
				match = candidate
				break
			}
		}
		if match == nil {
			unmatched = append(unmatched, race)
			continue
		}
		used[match.ID] = true
		if err := r.attachRace(tx, race, match); err != nil {
			return err
		}
	}
	if len(unmatched) == 0 {
		return nil
	}

	var leftover, unnamed []*results.Race
	for _, candidate := range existing {
		if used[candidate.ID] {
			continue
		}
		leftover = append(leftover, candidate)
		if strings.TrimSpace(candidate.PreciseName) == "" {
			unnamed = append(unnamed, candidate)
		}
	}

	switch {
	case len(leftover) == 0:
	case len(unnamed) == 1:
		absorber := unnamed[0]
		first := unmatched[0]
		unmatched = unmatched[1:]
		r.logger.Info("unnamed canonical race absorbs platform race",
			logging.Int64("race_id", absorber.ID),
			logging.String("precise_name", first.PreciseName),
			logging.Int("distance", length),
		)
		if err := r.attachRace(tx, first, absorber); err != nil {
			return err
		}
	default:
		return services.Fatal("resolve_races", fmt.Sprintf(
			"ambiguous races at %d m: %d platform races %s cannot be matched to %d canonical races (%d unnamed)",
			length, len(unmatched), raceNames(unmatched), len(leftover), len(unnamed),
		), nil).WithPlatform(r.platform)
	}

	for _, race := range unmatched {
		created := &results.Race{
			EventID:        eventID,
			DistanceLength: race.Distance.Length,
			DistanceName:   race.Distance.Name,
			PreciseName:    race.PreciseName,
			IsVirtual:      race.IsVirtual,
			IsHandicapped:  race.IsHandicapped,
			LoadedFrom:     r.platform,
		}
		if err := tx.CreateRace(created); err != nil {
			return err
		}
		race.CanonicalRaceID = created.ID
	}
	return nil
}

func (r *Resolver) attachRace(tx *results.Tx, race *standardform.Race, canonical *results.Race) error {
	next := *canonical
	next.PreciseName = firstNonEmpty(canonical.PreciseName, race.PreciseName)
	next.DistanceName = firstNonEmpty(canonical.DistanceName, race.Distance.Name)
	next.IsVirtual = canonical.IsVirtual || race.IsVirtual
	next.IsHandicapped = canonical.IsHandicapped || race.IsHandicapped
	next.LoadedFrom = r.platform
	if _, err := tx.UpdateRace(canonical, next); err != nil {
		return err
	}
	race.CanonicalRaceID = canonical.ID
	return nil
}

func raceNames(races []*standardform.Race) []string {
	names := make([]string, len(races))
	for i, race := range races {
		names[i] = fmt.Sprintf("%q", race.PreciseName)
	}
	return names
}
