package scrape

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tonykipkemboi/crewai-jobs/internal/domain"
)

const listingsPage = `<!doctype html>
<html><body>
<header><a href="/about">About</a></header>
<main>
  <a class="flex flex-col rounded" rel="noopener noreferrer" href="/jobs/123?utm_source=list">
    <h3 class="font-bold text-lg">Senior AI Engineer</h3>
    <div class="text-orange-600">Acme</div>
    <p class="location">Remote, US</p>
    <p class="job-type">Full-time</p>
    <p class="hidden sm:flex absolute right-2">3d ago</p>
    <p class="line-clamp-2">Build   multi-agent systems with CrewAI.</p>
  </a>
  <a class="flex flex-col rounded" rel="noopener noreferrer" href="https://globex.io/careers/7">
    <h3 class="font-bold">Developer Advocate</h3>
    <div class="text-orange-600">Globex</div>
  </a>
  <a class="flex flex-col rounded" rel="noopener noreferrer" href="/jobs/999">
    <h3 class="font-bold">No company here</h3>
  </a>
</main>
</body></html>`

func newTestExtractor() *Extractor {
	e := NewExtractor(Selectors{}, "https://job.zip/jobs/crewai", zap.NewNop())
	e.Clock = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestExtract_Listings(t *testing.T) {
	jobs, err := newTestExtractor().Extract(listingsPage)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	first := jobs[0]
	assert.Equal(t, "Senior AI Engineer", first.Title)
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, "Remote, US", first.Location)
	assert.Equal(t, "Full-time", first.JobType)
	assert.Equal(t, "https://job.zip/jobs/123?utm_source=list", first.URL)
	assert.Equal(t, "3d ago", first.PostedText)
	require.NotNil(t, first.PostedAt)
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), *first.PostedAt)
	assert.Equal(t, "Build multi-agent systems with CrewAI.", first.Description)

	second := jobs[1]
	assert.Equal(t, "Developer Advocate", second.Title)
	assert.Equal(t, domain.Unknown, second.Location)
	assert.Equal(t, domain.Unknown, second.JobType)
	assert.Nil(t, second.PostedAt)
	assert.Equal(t, "https://globex.io/careers/7", second.URL)
}

func TestExtract_EmptyBoardIsValid(t *testing.T) {
	jobs, err := newTestExtractor().Extract(`<html><body><main><section></section><button type="button">Load more jobs</button></main></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestExtract_MainOverrideAllowsEmptyPage(t *testing.T) {
	e := NewExtractor(Selectors{Container: "main"}, "https://job.zip/jobs/crewai", zap.NewNop())
	jobs, err := e.Extract(`<html><body><main><p>No jobs right now.</p></main></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestExtract_LabeledLocationFallback(t *testing.T) {
	jobs, err := newTestExtractor().Extract(`<html><body><main>
  <a class="flex flex-col" rel="noopener" href="/jobs/5"><h3>Data Engineer</h3><div class="text-orange-600">Initech</div><span>Location: Berlin, Germany</span>
  <span>Contract</span></a>
</main></body></html>`)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Berlin, Germany", jobs[0].Location)
}

func TestExtract_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"blank", "   \n"},
		{"no container", `<html><body><div>Access denied</div></body></html>`},
		{"maintenance page inside main", `<html><body><main><h1>We'll be right back</h1><p>Scheduled maintenance.</p></main></body></html>`},
		{"unparseable blocks", `<html><body><main>
			<a class="flex flex-col" rel="noopener" href="/jobs/1"><span>??</span></a>
		</main></body></html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := newTestExtractor().Extract(tt.html)
			assert.Nil(t, jobs)
			var xe *ExtractionError
			require.True(t, errors.As(err, &xe), "want *ExtractionError, got %v", err)
		})
	}
}

func TestExtract_CustomSelectors(t *testing.T) {
	sel := Selectors{
		Container: "#board",
		Listing:   "li.job",
		Title:     []string{".t"},
		Company:   []string{".c"},
		Link:      []string{"a.apply"},
	}
	e := NewExtractor(sel, "https://example.com/board", zap.NewNop())
	jobs, err := e.Extract(`<ul id="board"><li class="job"><span class="t">Eng</span><span class="c">Co</span>
		<a href="/x">x</a><a class="apply" href="/apply/1">Apply</a></li></ul>`)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "https://example.com/apply/1", jobs[0].URL)
}
