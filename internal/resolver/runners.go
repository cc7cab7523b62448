package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"racefeed/internal/logging"
	"racefeed/internal/results"
	"racefeed/internal/standardform"
	"racefeed/internal/textutil"
)

// RunnerFromResult builds the canonical runner fields a raw result carries.
func RunnerFromResult(res *standardform.Result) results.Runner {
	return results.Runner{
		LastName:   textutil.TitleName(res.LastName),
		FirstName:  textutil.TitleName(res.FirstName),
		MiddleName: textutil.TitleName(res.MiddleName),
		BirthYear:  res.BirthYear,
		Gender:     results.ParseGender(res.Gender),
		City:       res.City,
		Country:    res.Country,
		Club:       res.Club,
	}
}

// ResolveRunner resolves one raw result to a canonical runner in its own
// transaction and records the id on the result.
func (r *Resolver) ResolveRunner(ctx context.Context, res *standardform.Result) (int64, error) {
	if len(res.PlatformRunnerIDs) == 0 {
		return 0, nil
	}
	var runnerID int64
	err := r.store.WithTx(ctx, r.Actor(), func(tx *results.Tx) error {
		runner, err := r.RunnerWithPlatformIDs(tx, res.PlatformRunnerIDs, RunnerFromResult(res))
		if err != nil {
			return err
		}
		runnerID = runner.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	res.CanonicalRunnerID = runnerID
	return runnerID, nil
}

// ExistingRunner returns id when the runner still exists. A runner deleted
// since the id was recorded yields 0 and a warning, leaving the result
// unlinked.
func (r *Resolver) ExistingRunner(tx *results.Tx, id int64) (int64, error) {
	_, err := tx.GetRunner(id)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, results.ErrNotFound):
		r.warn(Warning{
			Kind:     WarnStaleRunner,
			RunnerID: id,
			Message:  fmt.Sprintf("runner %d no longer exists, result left unlinked", id),
		})
		return 0, nil
	default:
		return 0, err
	}
}

// RunnerWithPlatformIDs finds or creates the canonical runner identified by
// ids (platform → external id). When the ids point at more than one runner
// the runners are merged into the one with the most platform links. Every id
// in ids ends up linked to the returned runner unless that runner already
// holds a different id on the same platform.
func (r *Resolver) RunnerWithPlatformIDs(tx *results.Tx, ids map[string]string, incoming results.Runner) (*results.Runner, error) {
	platforms := make([]string, 0, len(ids))
	for platform, id := range ids {
		if id != "" {
			platforms = append(platforms, platform)
		}
	}
	sort.Strings(platforms)

	var found []int64
	seen := make(map[int64]bool)
	for _, platform := range platforms {
		runnerID, ok, err := tx.RunnerByPlatformID(platform, ids[platform])
		if err != nil {
			return nil, err
		}
		if ok && !seen[runnerID] {
			seen[runnerID] = true
			found = append(found, runnerID)
		}
	}

	var runner *results.Runner
	switch len(found) {
	case 0:
		created := incoming
		if err := tx.CreateRunner(&created); err != nil {
			return nil, err
		}
		runner = &created
	case 1:
		existing, err := tx.GetRunner(found[0])
		if err != nil {
			return nil, err
		}
		runner = existing
		if err := r.ReconcileFields(tx, runner, incoming); err != nil {
			return nil, err
		}
	default:
		merged, err := r.Merge(tx, found)
		if err != nil {
			return nil, err
		}
		runner = merged
		if err := r.ReconcileFields(tx, runner, incoming); err != nil {
			return nil, err
		}
	}

	links, err := tx.Links(runner.ID)
	if err != nil {
		return nil, err
	}
	held := make(map[string]string, len(links))
	for _, link := range links {
		held[link.Platform] = link.ExternalID
	}
	for _, platform := range platforms {
		externalID := ids[platform]
		current, ok := held[platform]
		if ok && current == externalID {
			continue
		}
		if ok {
			r.warn(Warning{
				Kind:     WarnLinkConflict,
				RunnerID: runner.ID,
				Message: fmt.Sprintf("runner %d already has %s id %s, not linking %s",
					runner.ID, platform, current, externalID),
			})
			continue
		}
		if err := tx.LinkPlatform(runner.ID, platform, externalID); err != nil {
			return nil, err
		}
	}
	return runner, nil
}

// Merge folds the given runners into one survivor, chosen as the runner
// with the most platform links (lowest id on a tie). Each merge is recorded
// as a warning.
func (r *Resolver) Merge(tx *results.Tx, runnerIDs []int64) (*results.Runner, error) {
	type candidate struct {
		id    int64
		links int
	}
	candidates := make([]candidate, 0, len(runnerIDs))
	for _, id := range runnerIDs {
		links, err := tx.Links(id)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{id: id, links: len(links)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].links != candidates[j].links {
			return candidates[i].links > candidates[j].links
		}
		return candidates[i].id < candidates[j].id
	})

	survivor, err := tx.GetRunner(candidates[0].id)
	if err != nil {
		return nil, err
	}
	for _, loser := range candidates[1:] {
		loserRunner, err := tx.GetRunner(loser.id)
		if err != nil {
			return nil, err
		}
		dropped, err := tx.MergeRunners(survivor.ID, loser.id)
		if err != nil {
			return nil, err
		}
		r.warn(Warning{
			Kind:     WarnRunnerMerge,
			RunnerID: survivor.ID,
			OtherID:  loser.id,
			Message: fmt.Sprintf("merged runner %d %q into %d %q",
				loser.id, loserRunner.FullName(), survivor.ID, survivor.FullName()),
		})
		for _, link := range dropped {
			r.warn(Warning{
				Kind:     WarnDroppedLink,
				RunnerID: survivor.ID,
				OtherID:  loser.id,
				Message: fmt.Sprintf("merged runner %d held %s id %s that conflicts with runner %d",
					loser.id, link.Platform, link.ExternalID, survivor.ID),
			})
		}
		// Refresh: MergeRunners may have copied the user link.
		if survivor, err = tx.GetRunner(survivor.ID); err != nil {
			return nil, err
		}
		if err := r.ReconcileFields(tx, survivor, *loserRunner); err != nil {
			return nil, err
		}
	}
	return survivor, nil
}

// ReconcileFields fills empty fields of runner from incoming. A non-empty
// field is never overwritten; a conflicting incoming value is recorded as a
// warning and dropped.
func (r *Resolver) ReconcileFields(tx *results.Tx, runner *results.Runner, incoming results.Runner) error {
	next := *runner
	conflicts := 0
	reconcile := func(field string, existing *string, value string) {
		switch {
		case value == "":
		case *existing == "":
			*existing = value
		case textutil.FoldName(*existing) != textutil.FoldName(value):
			conflicts++
			r.warn(Warning{
				Kind:     WarnFieldConflict,
				RunnerID: runner.ID,
				Message:  fmt.Sprintf("runner %d %s is %q, ignoring %q", runner.ID, field, *existing, value),
			})
		}
	}
	reconcile("last_name", &next.LastName, incoming.LastName)
	reconcile("first_name", &next.FirstName, incoming.FirstName)
	reconcile("middle_name", &next.MiddleName, incoming.MiddleName)
	reconcile("city", &next.City, incoming.City)
	reconcile("country", &next.Country, incoming.Country)
	reconcile("club", &next.Club, incoming.Club)

	gender := string(next.Gender)
	reconcile("gender", &gender, string(incoming.Gender))
	next.Gender = results.Gender(gender)

	birthYear := ""
	if next.BirthYear != 0 {
		birthYear = strconv.Itoa(next.BirthYear)
	}
	incomingYear := ""
	if incoming.BirthYear != 0 {
		incomingYear = strconv.Itoa(incoming.BirthYear)
	}
	reconcile("birth_year", &birthYear, incomingYear)
	next.BirthYear, _ = strconv.Atoi(birthYear)

	changed, err := tx.UpdateRunner(runner, next)
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		r.logger.Debug("runner fields filled",
			logging.Int64("runner_id", runner.ID),
			logging.Any("fields", changed),
			logging.Int("conflicts", conflicts),
		)
	}
	return nil
}
