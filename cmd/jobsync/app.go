package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tonykipkemboi/crewai-jobs/internal/config"
	"github.com/tonykipkemboi/crewai-jobs/internal/notify"
	"github.com/tonykipkemboi/crewai-jobs/internal/pipeline"
	"github.com/tonykipkemboi/crewai-jobs/internal/publish"
	"github.com/tonykipkemboi/crewai-jobs/internal/scrape"
	"github.com/tonykipkemboi/crewai-jobs/internal/scrape/browser"
	"github.com/tonykipkemboi/crewai-jobs/internal/secrets"
	"github.com/tonykipkemboi/crewai-jobs/internal/store"
)

type commonFlags struct {
	configPath string
	dataDir    string
	envFile    string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "config file (default <data-dir>/config.yml, created on first use)")
	fs.StringVar(&c.dataDir, "data-dir", envOr("JOBSYNC_DATA_DIR", "data"), "directory for config, store and report")
	fs.StringVar(&c.envFile, "env", ".env", "dotenv file to load before reading the environment")
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// loadConfig bootstraps, loads, overlays the environment and validates.
func loadConfig(c commonFlags) (config.Config, config.Validation, error) {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return config.Config{}, config.Validation{}, err
	}

	path := c.configPath
	if path == "" {
		var err error
		path, err = config.EnsureUserConfig(c.dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			return config.Config{}, config.Validation{}, fmt.Errorf("config bootstrap failed: %w", err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, config.Validation{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if c.dataDir != "" {
		cfg.App.DataDir = c.dataDir
	}
	if err := config.OverlayEnv(&cfg); err != nil {
		return cfg, config.Validation{}, err
	}

	cfg, v := config.NormalizeAndValidate(cfg)
	return cfg, v, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("app.log_level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	if cfg.App.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func logValidation(logger *zap.Logger, v config.Validation) {
	for _, w := range v.Warnings {
		logger.Warn("config: " + w)
	}
}

// openTable picks a backend by name; an empty name is derived from the
// file extension.
func openTable(backend, path string) (store.Table, error) {
	if backend == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			backend = "xlsx"
		case ".db", ".sqlite", ".sqlite3":
			backend = "sqlite"
		default:
			backend = "csv"
		}
	}
	switch backend {
	case "csv":
		return store.NewCSVTable(path), nil
	case "xlsx":
		return store.NewXLSXTable(path), nil
	case "sqlite":
		return store.NewSQLiteTable(path), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}

func openStore(cfg config.Config, logger *zap.Logger) (*store.Store, error) {
	t, err := openTable(cfg.Store.Backend, cfg.Resolve(cfg.Store.Path))
	if err != nil {
		return nil, err
	}
	return store.New(t, logger), nil
}

func newFetcher(cfg config.Config, logger *zap.Logger) scrape.Fetcher {
	if cfg.Fetch.Mode == "browser" {
		b := cfg.Fetch.Browser
		return browser.New(browser.Config{
			Headless:         b.Headless,
			WSEndpoint:       b.WSEndpoint,
			WaitSelector:     b.WaitSelector,
			LoadMoreSelector: b.LoadMoreSelector,
			MaxLoadMore:      b.MaxLoadMore,
			SettleDelay:      b.SettleDelay,
		}, logger)
	}
	return scrape.NewHTTPFetcher(scrape.HTTPConfig{
		UserAgent: cfg.Fetch.UserAgent,
		MaxBytes:  cfg.Fetch.MaxBytes,
		ReqPerSec: cfg.Fetch.ReqPerSec,
		Burst:     cfg.Fetch.Burst,
	}, logger)
}

func newPublisher(cfg *config.Config, logger *zap.Logger) (*publish.Publisher, error) {
	if !cfg.Publish.Enabled || cfg.Run.DryRun {
		return nil, nil
	}
	if err := secrets.ResolveAPIKey(cfg); err != nil {
		return nil, err
	}
	client := publish.NewClient(publish.ClientConfig{
		BaseURL:  cfg.Discourse.URL,
		APIKey:   cfg.Discourse.APIKey,
		Username: cfg.Discourse.Username,
	}, logger)
	return publish.NewPublisher(client, publish.Config{
		Timeout:    cfg.Publish.Timeout,
		RatePerSec: cfg.Publish.RatePerSec,
		Burst:      cfg.Publish.Burst,
		Composer: publish.Composer{
			CategoryID: cfg.Discourse.CategoryID,
			Tags:       cfg.Discourse.Tags,
			Footer:     cfg.Discourse.Footer,
		},
	}, logger), nil
}

// newDriver wires one pipeline from config.
func newDriver(cfg config.Config, logger *zap.Logger) (*pipeline.Driver, error) {
	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	pub, err := newPublisher(&cfg, logger)
	if err != nil {
		return nil, err
	}

	d := pipeline.New(pipeline.Options{
		ListingsURL:  cfg.Source.URL,
		FetchTimeout: cfg.Fetch.Timeout,
		DryRun:       cfg.Run.DryRun,
		ReportPath:   cfg.Resolve(cfg.Run.ReportPath),
	},
		newFetcher(cfg, logger),
		scrape.NewExtractor(cfg.ScrapeSelectors(), cfg.Source.URL, logger),
		st, pub, logger)

	if cfg.Telegram.Enabled {
		if cfg.Telegram.Token == "" {
			logger.Warn("telegram.enabled but TELEGRAM_BOT_TOKEN is not set; notifications off")
		} else {
			tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
			if err != nil {
				logger.Warn("telegram notifier unavailable", zap.Error(err))
			} else {
				d.WithNotifier(tg)
			}
		}
	}
	return d, nil
}

var errLocked = errors.New("another jobsync run holds the lock")

// tryLock takes the cross-process run lock next to the store.
func tryLock(cfg config.Config) (*flock.Flock, error) {
	path := cfg.Resolve(cfg.Run.LockPath)
	if path == "" {
		path = cfg.Resolve(cfg.Store.Path) + ".lock"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", errLocked, path)
	}
	return fl, nil
}
