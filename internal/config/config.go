package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tonykipkemboi/crewai-jobs/internal/scrape"
)

type Selectors struct {
	Container   string   `yaml:"container"`
	Listing     string   `yaml:"listing"`
	Title       []string `yaml:"title,omitempty"`
	Company     []string `yaml:"company,omitempty"`
	Location    []string `yaml:"location,omitempty"`
	JobType     []string `yaml:"job_type,omitempty"`
	Posted      []string `yaml:"posted,omitempty"`
	Description []string `yaml:"description,omitempty"`
	Link        []string `yaml:"link,omitempty"`
}

type Config struct {
	App struct {
		DataDir   string `yaml:"data_dir"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"` // json | console
	} `yaml:"app"`

	Source struct {
		URL string `yaml:"url"`
	} `yaml:"source"`

	Fetch struct {
		Mode      string        `yaml:"mode"` // http | browser
		Timeout   time.Duration `yaml:"timeout"`
		UserAgent string        `yaml:"user_agent"`
		MaxBytes  int64         `yaml:"max_bytes"`
		ReqPerSec float64       `yaml:"req_per_sec"`
		Burst     int           `yaml:"burst"`

		Browser struct {
			Headless         bool          `yaml:"headless"`
			WSEndpoint       string        `yaml:"ws_endpoint"`
			WaitSelector     string        `yaml:"wait_selector"`
			LoadMoreSelector string        `yaml:"load_more_selector"`
			MaxLoadMore      int           `yaml:"max_load_more"`
			SettleDelay      time.Duration `yaml:"settle_delay"`
		} `yaml:"browser"`
	} `yaml:"fetch"`

	Scrape struct {
		Selectors Selectors `yaml:"selectors"`
	} `yaml:"scrape"`

	Store struct {
		Backend string `yaml:"backend"` // csv | xlsx | sqlite
		Path    string `yaml:"path"`
	} `yaml:"store"`

	Discourse struct {
		URL        string   `yaml:"url"`
		Username   string   `yaml:"username"`
		CategoryID int      `yaml:"category_id"`
		Tags       []string `yaml:"tags"`
		Footer     string   `yaml:"footer"`

		// from env or keychain only
		APIKey string `yaml:"-"`
	} `yaml:"discourse"`

	Publish struct {
		Enabled    bool          `yaml:"enabled"`
		Timeout    time.Duration `yaml:"timeout"`
		RatePerSec float64       `yaml:"rate_per_sec"`
		Burst      int           `yaml:"burst"`
	} `yaml:"publish"`

	Run struct {
		ReportPath string `yaml:"report_path"`
		LockPath   string `yaml:"lock_path"`
		DryRun     bool   `yaml:"dry_run"`
	} `yaml:"run"`

	Watch struct {
		Schedule    string `yaml:"schedule"` // cron spec, e.g. "0 */12 * * *"
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"watch"`

	Telegram struct {
		Enabled bool  `yaml:"enabled"`
		ChatID  int64 `yaml:"chat_id"`

		Token string `yaml:"-"`
	} `yaml:"telegram"`
}

const DefaultListingsURL = "https://job.zip/jobs/crewai"

// Default is the configuration used for any key the file leaves out.
func Default() Config {
	var c Config
	c.App.DataDir = "data"
	c.App.LogLevel = "info"
	c.App.LogFormat = "console"

	c.Source.URL = DefaultListingsURL

	c.Fetch.Mode = "http"
	c.Fetch.Timeout = 60 * time.Second
	c.Fetch.MaxBytes = 8 << 20
	c.Fetch.ReqPerSec = 1
	c.Fetch.Burst = 2
	c.Fetch.Browser.Headless = true
	c.Fetch.Browser.WaitSelector = scrape.DefaultSelectors().Listing
	c.Fetch.Browser.LoadMoreSelector = "button:has-text('Load more')"
	c.Fetch.Browser.MaxLoadMore = 10
	c.Fetch.Browser.SettleDelay = 2 * time.Second

	c.Store.Backend = "csv"
	c.Store.Path = "job_listings.csv"

	c.Discourse.Tags = []string{"jobs", "crewai", "automated"}

	c.Publish.Enabled = true
	c.Publish.Timeout = 30 * time.Second
	c.Publish.RatePerSec = 0.5
	c.Publish.Burst = 1

	c.Run.ReportPath = "run_report.json"

	c.Watch.Schedule = "0 */12 * * *"
	c.Watch.MetricsAddr = ":9108"
	return c
}

// Load reads a YAML file on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// ScrapeSelectors converts the configured selectors for the extractor; empty
// fields fall back to the extractor defaults.
func (c Config) ScrapeSelectors() scrape.Selectors {
	s := c.Scrape.Selectors
	return scrape.Selectors{
		Container:   s.Container,
		Listing:     s.Listing,
		Title:       s.Title,
		Company:     s.Company,
		Location:    s.Location,
		JobType:     s.JobType,
		Posted:      s.Posted,
		Description: s.Description,
		Link:        s.Link,
	}
}
