// Package reconcile diffs a fresh scrape against the stored job table.
//
// Reconcile is pure: it clones the prior snapshot, applies status
// transitions to the clone and returns it together with the diff. Persisting
// the result is the caller's job.
package reconcile

import (
	"time"

	"go.uber.org/zap"

	"github.com/tonykipkemboi/crewai-jobs/internal/domain"
	"github.com/tonykipkemboi/crewai-jobs/internal/identity"
	"github.com/tonykipkemboi/crewai-jobs/internal/store"
)

type resolved struct {
	id  string
	job domain.RawJob
}

// Reconcile partitions store.Identities() ∪ resolve(scrape) into new,
// reactivated, went-inactive and unchanged, and returns the updated snapshot.
//
// An empty scrape is a valid result and marks every active record inactive;
// callers must not pass a scrape that failed.
func Reconcile(scrape []domain.RawJob, prior *store.Snapshot, now time.Time, logger *zap.Logger) (domain.RunDiff, *store.Snapshot) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prior == nil {
		prior = store.NewSnapshot()
	}
	now = now.UTC().Truncate(time.Second)
	next := prior.Clone()

	var diff domain.RunDiff

	current := make([]resolved, 0, len(scrape))
	seen := make(map[string]int, len(scrape))
	for _, j := range scrape {
		id := identity.Resolve(j)
		if i, dup := seen[id]; dup {
			c := domain.Collision{Identity: id, Kept: current[i].job, Dropped: j}
			diff.Collisions = append(diff.Collisions, c)
			logger.Warn("duplicate listing in scrape, keeping first",
				zap.String("identity", id),
				zap.String("title", j.Title),
				zap.String("company", j.Company),
				zap.String("url", j.URL))
			continue
		}
		seen[id] = len(current)
		current = append(current, resolved{id: id, job: j})
	}

	for _, c := range current {
		prev, existed := prior.Get(c.id)
		switch {
		case !existed:
			rec := next.Upsert(c.id, func(r *domain.JobRecord) {
				fill(r, c.job)
				r.Status = domain.StatusActive
				r.FirstSeen = now
				r.LastSeen = now
			})
			diff.New = append(diff.New, rec)

		case !prev.Active():
			rec := next.Upsert(c.id, func(r *domain.JobRecord) {
				fill(r, c.job)
				r.Status = domain.StatusActive
				r.LastSeen = now
			})
			diff.Reactivated = append(diff.Reactivated, rec)

		default:
			diff.Unchanged = append(diff.Unchanged, prev)
		}
	}

	for _, id := range prior.Identities() {
		if _, present := seen[id]; present {
			continue
		}
		prev, _ := prior.Get(id)
		if !prev.Active() {
			diff.Unchanged = append(diff.Unchanged, prev)
			continue
		}
		rec := next.Upsert(id, func(r *domain.JobRecord) {
			r.Status = domain.StatusInactive
		})
		diff.WentInactive = append(diff.WentInactive, rec)
	}

	logger.Info("reconciled",
		zap.Int("scraped", len(scrape)),
		zap.Int("new", len(diff.New)),
		zap.Int("reactivated", len(diff.Reactivated)),
		zap.Int("went_inactive", len(diff.WentInactive)),
		zap.Int("unchanged", len(diff.Unchanged)),
		zap.Int("collisions", len(diff.Collisions)))

	return diff, next
}

// fill copies the listing fields shown on the page onto the record.
func fill(r *domain.JobRecord, j domain.RawJob) {
	r.Title = j.Title
	r.Company = j.Company
	r.Location = j.Location
	r.JobType = j.JobType
	r.URL = j.URL
	r.Description = j.Description
	if j.PostedAt != nil {
		p := *j.PostedAt
		r.PostedAt = &p
	}
}
