package scrape

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/tonykipkemboi/crewai-jobs/internal/domain"
	"github.com/tonykipkemboi/crewai-jobs/internal/scrape/util"
)

// ExtractionError means the page did not look like a listings page at all.
// It is different from a recognizable page that simply has no jobs.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract listings: %s: %v", e.Reason, e.Err)
	}
	return "extract listings: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Selectors locate the parts of a listing. Each field is tried in order and
// the first non-empty match wins.
type Selectors struct {
	Container   string   // structural marker only the listings board renders
	Listing     string   // one element per job: Container matches or their descendants
	Title       []string
	Company     []string
	Location    []string
	JobType     []string
	Posted      []string
	Description []string
	Link        []string // empty: use the listing's own href, then its first a[href]
}

const (
	defaultListing = "a[rel~='noopener'][class*='flex-col']"
	// only the board renders listing cards or the "Load more jobs" control
	defaultContainer = defaultListing + ", button:contains('Load more jobs')"
)

// DefaultSelectors matches the job.zip listings markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Container: defaultContainer,
		Listing:   defaultListing,
		Title:     []string{"h3[class*='font-bold']", "h3"},
		Company:   []string{"div[class*='text-orange-600']", "[data-company]"},
		Location: []string{
			"[data-location]",
			"p[class*='location']",
			"div:nth-of-type(2) > div:nth-of-type(2) > div > p",
		},
		JobType: []string{
			"[data-job-type]",
			"p[class*='job-type']",
			"div:nth-of-type(2) > div:nth-of-type(2) > p",
		},
		Posted:      []string{"p[class*='right-2']", "time"},
		Description: []string{"[data-description]", "p[class*='line-clamp']"},
	}
}

const maxDescriptionRunes = 500

type Extractor struct {
	sel     Selectors
	baseURL string
	logger  *zap.Logger

	// Clock resolves relative posted dates; defaults to time.Now.
	Clock func() time.Time
}

func NewExtractor(sel Selectors, baseURL string, logger *zap.Logger) *Extractor {
	def := DefaultSelectors()
	if strings.TrimSpace(sel.Container) == "" {
		sel.Container = def.Container
	}
	if strings.TrimSpace(sel.Listing) == "" {
		sel.Listing = def.Listing
	}
	if len(sel.Title) == 0 {
		sel.Title = def.Title
	}
	if len(sel.Company) == 0 {
		sel.Company = def.Company
	}
	if len(sel.Location) == 0 {
		sel.Location = def.Location
	}
	if len(sel.JobType) == 0 {
		sel.JobType = def.JobType
	}
	if len(sel.Posted) == 0 {
		sel.Posted = def.Posted
	}
	if len(sel.Description) == 0 {
		sel.Description = def.Description
	}
	return &Extractor{
		sel:     sel,
		baseURL: baseURL,
		logger:  logger.Named("extract"),
		Clock:   time.Now,
	}
}

// Extract parses rendered HTML into raw jobs. Listings without a title or
// company are skipped. A page whose container marker is missing, or whose
// listing blocks are all unparseable, is an *ExtractionError.
func (e *Extractor) Extract(html string) ([]domain.RawJob, error) {
	if strings.TrimSpace(html) == "" {
		return nil, &ExtractionError{Reason: "empty page"}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ExtractionError{Reason: "parse html", Err: err}
	}

	container := doc.Find(e.sel.Container)
	if container.Length() == 0 {
		return nil, &ExtractionError{Reason: fmt.Sprintf("listings container %q not found", e.sel.Container)}
	}

	now := e.Clock()
	blocks := container.Filter(e.sel.Listing).AddSelection(container.Find(e.sel.Listing))
	jobs := make([]domain.RawJob, 0, blocks.Length())
	skipped := 0

	blocks.Each(func(i int, s *goquery.Selection) {
		j, ok := e.extractOne(s, now)
		if !ok {
			skipped++
			e.logger.Debug("skipping listing without title/company", zap.Int("index", i))
			return
		}
		jobs = append(jobs, j)
	})

	if blocks.Length() > 0 && len(jobs) == 0 {
		return nil, &ExtractionError{
			Reason: fmt.Sprintf("%d listing blocks found but none had a title and company", blocks.Length()),
		}
	}

	e.logger.Info("extracted listings",
		zap.Int("blocks", blocks.Length()), zap.Int("jobs", len(jobs)), zap.Int("skipped", skipped))
	return jobs, nil
}

func (e *Extractor) extractOne(s *goquery.Selection, now time.Time) (domain.RawJob, bool) {
	title := util.FirstText(s, e.sel.Title...)
	company := util.FirstText(s, e.sel.Company...)
	if title == "" || company == "" {
		return domain.RawJob{}, false
	}

	location := util.NormalizeLocation(util.FirstText(s, e.sel.Location...))
	if location == "" {
		location = util.NormalizeLocation(util.LabeledLocation(s.Text()))
	}
	if location == "" {
		location = domain.Unknown
	}
	jobType := util.FirstText(s, e.sel.JobType...)
	if jobType == "" {
		jobType = domain.Unknown
	}

	posted := util.FirstText(s, e.sel.Posted...)
	if posted == "" {
		if dt, ok := s.Find("time[datetime]").First().Attr("datetime"); ok {
			posted = strings.TrimSpace(dt)
		}
	}

	return domain.RawJob{
		Title:       title,
		Company:     company,
		Location:    location,
		JobType:     jobType,
		URL:         util.ResolveURL(e.baseURL, e.link(s)),
		PostedText:  posted,
		PostedAt:    util.ParsePosted(posted, now),
		Description: util.Truncate(util.FirstText(s, e.sel.Description...), maxDescriptionRunes),
	}, true
}

func (e *Extractor) link(s *goquery.Selection) string {
	for _, c := range e.sel.Link {
		if href, ok := s.Find(c).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			return href
		}
	}
	if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
		return href
	}
	href, _ := s.Find("a[href]").First().Attr("href")
	return href
}
