package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tonykipkemboi/crewai-jobs/internal/domain"
	"github.com/tonykipkemboi/crewai-jobs/internal/identity"
	"github.com/tonykipkemboi/crewai-jobs/internal/publish"
	"github.com/tonykipkemboi/crewai-jobs/internal/scrape"
	"github.com/tonykipkemboi/crewai-jobs/internal/store"
)

const listingsURL = "https://job.zip/jobs/crewai"

type listing struct {
	title, company, href string
}

var (
	jobA = listing{"Backend Engineer", "Acme", "/jobs/a"}
	jobB = listing{"Agent Developer", "Beta", "/jobs/b"}
)

func page(ls ...listing) string {
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for _, l := range ls {
		fmt.Fprintf(&b, `<a class="flex flex-col" rel="noopener" href="%s"><h3 class="font-bold">%s</h3><div class="text-orange-600">%s</div><p class="location">Remote</p></a>`,
			l.href, html.EscapeString(l.title), html.EscapeString(l.company))
	}
	b.WriteString(`<button type="button">Load more jobs</button></main></body></html>`)
	return b.String()
}

func idOf(l listing) string {
	return identity.Key(l.title, l.company, "https://job.zip"+l.href)
}

type fakeFetcher struct {
	html string
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, string, time.Duration) (string, error) {
	return f.html, f.err
}

// fakePoster records every post by title and fails titles listed in errs.
type fakePoster struct {
	posts map[string]int
	errs  map[string]error
}

func newFakePoster() *fakePoster {
	return &fakePoster{posts: map[string]int{}, errs: map[string]error{}}
}

func (p *fakePoster) Post(_ context.Context, pl publish.PostPayload) (string, error) {
	if err, ok := p.errs[pl.Title]; ok {
		return "", err
	}
	p.posts[pl.Title]++
	return fmt.Sprintf("post-%d", len(p.posts)), nil
}

type fakeNotifier struct{ reports []Report }

func (n *fakeNotifier) Notify(_ context.Context, r Report) error {
	n.reports = append(n.reports, r)
	return errors.New("telegram down")
}

type harness struct {
	t       *testing.T
	dir     string
	fetcher *fakeFetcher
	poster  *fakePoster
	clock   time.Time
	dryRun  bool
}

func newHarness(t *testing.T) *harness {
	return &harness{
		t:       t,
		dir:     t.TempDir(),
		fetcher: &fakeFetcher{},
		poster:  newFakePoster(),
		clock:   time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (h *harness) storePath() string  { return filepath.Join(h.dir, "jobs.csv") }
func (h *harness) reportPath() string { return filepath.Join(h.dir, "report.json") }

func (h *harness) driver() *Driver {
	logger := zap.NewNop()
	st := store.New(store.NewCSVTable(h.storePath()), logger)
	x := scrape.NewExtractor(scrape.Selectors{}, listingsURL, logger)
	pub := publish.NewPublisher(h.poster, publish.Config{Timeout: time.Second, Composer: publish.Composer{CategoryID: 9}}, logger)

	d := New(Options{ListingsURL: listingsURL, FetchTimeout: time.Second, DryRun: h.dryRun, ReportPath: h.reportPath()},
		h.fetcher, x, st, pub, logger)
	now := h.clock
	d.now = func() time.Time { return now }
	return d
}

func (h *harness) run(ls ...listing) (Report, error) {
	h.fetcher.html = page(ls...)
	rep, err := h.driver().Run(context.Background())
	h.clock = h.clock.Add(12 * time.Hour)
	return rep, err
}

func (h *harness) load() *store.Snapshot {
	snap, err := store.NewCSVTable(h.storePath()).Read(context.Background())
	require.NoError(h.t, err)
	return snap
}

func title(l listing) string { return l.title + " at " + l.company }

func TestRun_ColdStartPublishesAll(t *testing.T) {
	h := newHarness(t)

	rep, err := h.run(jobA, jobB)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.RecordsScraped)
	assert.Equal(t, 2, rep.New)
	assert.Equal(t, 2, rep.PublishedOK)
	assert.True(t, rep.StoreChanged)
	assert.Equal(t, "ok", rep.Outcome())

	snap := h.load()
	for _, l := range []listing{jobA, jobB} {
		r, ok := snap.Get(idOf(l))
		require.True(t, ok, l.title)
		assert.True(t, r.Active())
		assert.True(t, r.Published)
		assert.NotEmpty(t, r.PostID)
		assert.Equal(t, 1, h.poster.posts[title(l)])
	}

	b, err := os.ReadFile(h.reportPath())
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(b, &onDisk))
	assert.Equal(t, rep.RunID, onDisk["run_id"])
	assert.EqualValues(t, 2, onDisk["published_ok"])
	assert.NotContains(t, onDisk, "fatal_error")
}

func TestRun_MissingListingGoesInactive(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(jobA, jobB)
	require.NoError(t, err)
	before, _ := h.load().Get(idOf(jobA))

	rep, err := h.run(jobA)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.WentInactive)
	assert.Equal(t, 0, rep.New)
	assert.Equal(t, 0, rep.PublishedOK)

	snap := h.load()
	b, _ := snap.Get(idOf(jobB))
	assert.Equal(t, domain.StatusInactive, b.Status)
	a, _ := snap.Get(idOf(jobA))
	assert.Equal(t, before, a)
}

func TestRun_ReactivationDoesNotRepost(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(jobA)
	require.NoError(t, err)
	_, err = h.run()
	require.NoError(t, err)

	rep, err := h.run(jobA)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Reactivated)
	assert.Equal(t, 0, rep.PublishedOK)
	assert.Equal(t, 1, h.poster.posts[title(jobA)])

	a, _ := h.load().Get(idOf(jobA))
	assert.True(t, a.Active())
	assert.True(t, a.Published)
}

func TestRun_UnchangedRunLeavesFileIdentical(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(jobA, jobB)
	require.NoError(t, err)
	first, err := os.ReadFile(h.storePath())
	require.NoError(t, err)

	rep, err := h.run(jobB, jobA)
	require.NoError(t, err)
	assert.False(t, rep.StoreChanged)

	second, err := os.ReadFile(h.storePath())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRun_BrokenPageLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(jobA, jobB)
	require.NoError(t, err)
	before, err := os.ReadFile(h.storePath())
	require.NoError(t, err)

	h.fetcher.html = `<html><body><div class="captcha">Are you human?</div></body></html>`
	rep, err := h.driver().Run(context.Background())

	var xe *scrape.ExtractionError
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, "failed", rep.Outcome())
	assert.NotEmpty(t, rep.FatalError)
	assert.Zero(t, rep.New+rep.Reactivated+rep.WentInactive+rep.PublishedOK)
	assert.False(t, rep.StoreChanged)

	after, err := os.ReadFile(h.storePath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestRun_MaintenancePageDoesNotDeactivate(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(jobA, jobB)
	require.NoError(t, err)
	before, err := os.ReadFile(h.storePath())
	require.NoError(t, err)

	h.fetcher.html = `<html><body><main><h1>We'll be right back</h1><p>Scheduled maintenance.</p></main></body></html>`
	rep, err := h.driver().Run(context.Background())

	var xe *scrape.ExtractionError
	require.ErrorAs(t, err, &xe)
	assert.Zero(t, rep.WentInactive)
	assert.False(t, rep.StoreChanged)

	after, err := os.ReadFile(h.storePath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	active, inactive := h.load().Counts()
	assert.Equal(t, 2, active)
	assert.Zero(t, inactive)
}

func TestRun_CorruptTableDoesNotRepost(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(jobA, jobB)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(h.storePath(), []byte("identity,title\n"), 0o644))

	rep, err := h.run(jobA, jobB)
	require.NoError(t, err)
	assert.Zero(t, rep.New)
	assert.Zero(t, rep.PublishedOK)
	assert.Equal(t, 1, h.poster.posts[title(jobA)])
	assert.Equal(t, 1, h.poster.posts[title(jobB)])

	a, ok := h.load().Get(idOf(jobA))
	require.True(t, ok)
	assert.True(t, a.Published)
}

func TestRun_FetchErrorLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = &scrape.FetchError{URL: listingsURL, StatusCode: 503, Err: errors.New("unavailable")}

	rep, err := h.driver().Run(context.Background())
	var fe *scrape.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 503, fe.StatusCode)
	assert.Contains(t, rep.FatalError, "503")

	_, err = os.Stat(h.storePath())
	assert.True(t, os.IsNotExist(err))
}

func TestRun_PartialFailureRetriedNextRun(t *testing.T) {
	h := newHarness(t)
	h.poster.errs[title(jobB)] = &publish.PublishError{Kind: publish.Transient, StatusCode: 429, Err: errors.New("slow down")}

	rep, err := h.run(jobA, jobB)
	require.NoError(t, err, "partial success is not fatal")
	assert.Equal(t, 1, rep.PublishedOK)
	assert.Equal(t, 1, rep.PublishedFailed)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, idOf(jobB), rep.Failures[0].Identity)
	assert.Equal(t, jobB.title, rep.Failures[0].Title)
	assert.Equal(t, "partial", rep.Outcome())

	b, _ := h.load().Get(idOf(jobB))
	assert.False(t, b.Published)

	delete(h.poster.errs, title(jobB))
	rep, err = h.run(jobA, jobB)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.PublishedOK)
	assert.Equal(t, 1, h.poster.posts[title(jobA)])
	assert.Equal(t, 1, h.poster.posts[title(jobB)])
}

func TestRun_CrashBeforePublishRecovers(t *testing.T) {
	h := newHarness(t)

	// run 1 dies after the reconciled table was saved, before any post
	h.poster.errs[title(jobA)] = &publish.PublishError{Kind: publish.Fatal, StatusCode: 403, Err: errors.New("invalid api key")}
	rep, err := h.run(jobA, jobB)
	var ce *publish.PublishConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, rep.New)
	assert.Equal(t, 0, rep.PublishedOK)
	assert.Len(t, h.load().Pending(), 2)

	// run 2 retries both
	delete(h.poster.errs, title(jobA))
	rep, err = h.run(jobA, jobB)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.New)
	assert.Equal(t, 2, rep.PublishedOK)

	// run 3 has nothing to do
	rep, err = h.run(jobA, jobB)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.PublishedOK)
	assert.False(t, rep.StoreChanged)

	assert.Equal(t, map[string]int{title(jobA): 1, title(jobB): 1}, h.poster.posts)
}

func TestRun_SuccessesAreCheckpointedBeforeAbort(t *testing.T) {
	h := newHarness(t)
	h.poster.errs[title(jobB)] = &publish.PublishError{Kind: publish.Fatal, StatusCode: 422, Err: errors.New("category is invalid")}

	rep, err := h.run(jobA, jobB)
	require.Error(t, err)
	assert.Equal(t, 1, rep.PublishedOK)

	snap := h.load()
	a, _ := snap.Get(idOf(jobA))
	b, _ := snap.Get(idOf(jobB))
	assert.True(t, a.Published)
	assert.False(t, b.Published)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.dryRun = true

	rep, err := h.run(jobA, jobB)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.New)
	assert.Equal(t, "dry_run", rep.Outcome())
	assert.False(t, rep.StoreChanged)
	assert.Empty(t, h.poster.posts)

	_, err = os.Stat(h.storePath())
	assert.True(t, os.IsNotExist(err))
}

func TestRun_PublishingDisabled(t *testing.T) {
	h := newHarness(t)
	h.fetcher.html = page(jobA)
	logger := zap.NewNop()
	d := New(Options{ListingsURL: listingsURL},
		h.fetcher, scrape.NewExtractor(scrape.Selectors{}, listingsURL, logger),
		store.New(store.NewCSVTable(h.storePath()), logger), nil, logger)

	rep, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.New)
	assert.Len(t, h.load().Pending(), 1)
}

func TestRun_NotifierFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	n := &fakeNotifier{}
	h.fetcher.html = page(jobA)

	rep, err := h.driver().WithNotifier(n).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, n.reports, 1)
	assert.Equal(t, rep.RunID, n.reports[0].RunID)
	assert.False(t, n.reports[0].FinishedAt.IsZero())
}
