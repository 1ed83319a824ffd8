package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tonykipkemboi/crewai-jobs/internal/domain"
	"github.com/tonykipkemboi/crewai-jobs/internal/identity"
	"github.com/tonykipkemboi/crewai-jobs/internal/store"
)

var (
	day1 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	day2 = day1.Add(12 * time.Hour)

	jobA = domain.RawJob{Title: "Backend Engineer", Company: "Acme", Location: "Remote", JobType: "Full-time", URL: "https://jobs.example.com/a"}
	jobB = domain.RawJob{Title: "Agent Developer", Company: "Beta", Location: "Berlin", JobType: "Contract", URL: "https://jobs.example.com/b"}
	jobC = domain.RawJob{Title: "Data Scientist", Company: "Gamma", Location: domain.Unknown, JobType: domain.Unknown, URL: "https://jobs.example.com/c"}
)

func ids(recs []domain.JobRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Identity)
	}
	return out
}

func TestReconcile_ColdStart(t *testing.T) {
	diff, next := Reconcile([]domain.RawJob{jobA, jobB}, store.NewSnapshot(), day1, zap.NewNop())

	assert.Equal(t, []string{identity.Resolve(jobA), identity.Resolve(jobB)}, ids(diff.New))
	assert.Empty(t, diff.Reactivated)
	assert.Empty(t, diff.WentInactive)
	require.Equal(t, 2, next.Len())

	for _, r := range next.Records() {
		assert.True(t, r.Active())
		assert.False(t, r.Published)
		assert.Equal(t, day1, r.FirstSeen)
		assert.Equal(t, day1, r.LastSeen)
	}
}

func TestReconcile_WentInactive(t *testing.T) {
	_, prior := Reconcile([]domain.RawJob{jobA, jobB}, store.NewSnapshot(), day1, zap.NewNop())

	diff, next := Reconcile([]domain.RawJob{jobA}, prior, day2, zap.NewNop())

	assert.Empty(t, diff.New)
	assert.Equal(t, []string{identity.Resolve(jobB)}, ids(diff.WentInactive))
	assert.Equal(t, []string{identity.Resolve(jobA)}, ids(diff.Unchanged))

	b, _ := next.Get(identity.Resolve(jobB))
	assert.Equal(t, domain.StatusInactive, b.Status)
	assert.Equal(t, day1, b.LastSeen)

	a, _ := next.Get(identity.Resolve(jobA))
	before, _ := prior.Get(identity.Resolve(jobA))
	assert.Equal(t, before, a)
}

func TestReconcile_ReactivationKeepsPublished(t *testing.T) {
	prior := store.NewSnapshot()
	id := identity.Resolve(jobA)
	prior.Upsert(id, func(r *domain.JobRecord) {
		fill(r, jobA)
		r.Status = domain.StatusInactive
		r.FirstSeen = day1.Add(-72 * time.Hour)
		r.LastSeen = day1.Add(-48 * time.Hour)
		r.Published = true
		r.PostID = "77"
	})

	diff, next := Reconcile([]domain.RawJob{jobA}, prior, day1, zap.NewNop())

	require.Equal(t, []string{id}, ids(diff.Reactivated))
	a, _ := next.Get(id)
	assert.True(t, a.Active())
	assert.True(t, a.Published)
	assert.Equal(t, "77", a.PostID)
	assert.Equal(t, day1.Add(-72*time.Hour), a.FirstSeen)
	assert.Equal(t, day1, a.LastSeen)
	assert.Empty(t, next.Pending())
}

func TestReconcile_EmptyScrapeDeactivatesAll(t *testing.T) {
	_, prior := Reconcile([]domain.RawJob{jobA, jobB}, store.NewSnapshot(), day1, zap.NewNop())

	diff, next := Reconcile(nil, prior, day2, zap.NewNop())

	assert.Len(t, diff.WentInactive, 2)
	active, inactive := next.Counts()
	assert.Equal(t, 0, active)
	assert.Equal(t, 2, inactive)
}

func TestReconcile_DoesNotMutatePrior(t *testing.T) {
	_, prior := Reconcile([]domain.RawJob{jobA, jobB}, store.NewSnapshot(), day1, zap.NewNop())
	snapshot := prior.Clone()

	Reconcile([]domain.RawJob{jobC}, prior, day2, zap.NewNop())

	assert.True(t, prior.Equal(snapshot))
}

func TestReconcile_CollisionKeepsFirst(t *testing.T) {
	dup := jobA
	dup.URL = "https://JOBS.example.com/a/?utm_source=x#apply"
	dup.Description = "different text"

	diff, next := Reconcile([]domain.RawJob{jobA, dup, jobB}, store.NewSnapshot(), day1, zap.NewNop())

	require.Len(t, diff.Collisions, 1)
	assert.Equal(t, identity.Resolve(jobA), diff.Collisions[0].Identity)
	assert.Equal(t, jobA, diff.Collisions[0].Kept)
	assert.Equal(t, dup, diff.Collisions[0].Dropped)
	assert.Len(t, diff.New, 2)
	a, _ := next.Get(identity.Resolve(jobA))
	assert.Equal(t, jobA.URL, a.URL)
}

func TestReconcile_PartitionsUnion(t *testing.T) {
	prior := store.NewSnapshot()
	prior.Upsert(identity.Resolve(jobA), func(r *domain.JobRecord) { fill(r, jobA); r.FirstSeen, r.LastSeen = day1, day1 })
	prior.Upsert(identity.Resolve(jobB), func(r *domain.JobRecord) {
		fill(r, jobB)
		r.Status = domain.StatusInactive
		r.FirstSeen, r.LastSeen = day1, day1
	})
	prior.Upsert("v1:gone", func(r *domain.JobRecord) {
		r.Title = "Gone"
		r.Status = domain.StatusInactive
		r.FirstSeen, r.LastSeen = day1, day1
	})
	prior.Upsert("v1:dropped", func(r *domain.JobRecord) { r.Title = "Dropped"; r.FirstSeen, r.LastSeen = day1, day1 })

	scrapes := [][]domain.RawJob{
		nil,
		{jobA},
		{jobB, jobC},
		{jobA, jobB, jobC, jobA},
	}
	for _, scrape := range scrapes {
		diff, next := Reconcile(scrape, prior, day2, zap.NewNop())

		union := map[string]bool{}
		for _, id := range prior.Identities() {
			union[id] = true
		}
		for _, j := range scrape {
			union[identity.Resolve(j)] = true
		}

		counted := map[string]int{}
		for _, part := range [][]domain.JobRecord{diff.New, diff.Reactivated, diff.WentInactive, diff.Unchanged} {
			for _, id := range ids(part) {
				counted[id]++
			}
		}
		assert.Len(t, counted, len(union))
		for id := range union {
			assert.Equal(t, 1, counted[id], "identity %s", id)
		}
		assert.Equal(t, len(union), next.Len())

		for _, r := range next.Records() {
			_, inScrape := counted[r.Identity]
			require.True(t, inScrape)
		}
	}
}

func TestReconcile_IdempotentFixedPoint(t *testing.T) {
	prior := store.NewSnapshot()
	prior.Upsert(identity.Resolve(jobB), func(r *domain.JobRecord) {
		fill(r, jobB)
		r.Status = domain.StatusInactive
		r.FirstSeen, r.LastSeen = day1, day1
	})
	prior.Upsert("v1:old", func(r *domain.JobRecord) { r.Title = "Old"; r.FirstSeen, r.LastSeen = day1, day1 })

	scrape := []domain.RawJob{jobA, jobB}
	first, once := Reconcile(scrape, prior, day2, zap.NewNop())
	require.False(t, first.Empty())

	second, twice := Reconcile(scrape, once, day2.Add(time.Hour), zap.NewNop())
	assert.True(t, second.Empty())
	assert.Empty(t, second.Collisions)
	assert.True(t, once.Equal(twice))
}
