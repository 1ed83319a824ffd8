// Package browser renders listings pages in a headless Chromium driven by
// playwright, for sites that build their job list client-side.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/tonykipkemboi/crewai-jobs/internal/scrape"
)

type Config struct {
	Headless   bool
	WSEndpoint string // connect to an already running browser instead of launching one

	// WaitSelector is awaited after navigation; a timeout here is not an
	// error because an empty board never renders a listing.
	WaitSelector string
	// LoadMoreSelector is clicked until it disappears or MaxLoadMore is hit.
	LoadMoreSelector string
	MaxLoadMore      int
	SettleDelay      time.Duration
}

type Fetcher struct {
	cfg    Config
	logger *zap.Logger
}

var _ scrape.Fetcher = (*Fetcher)(nil)

func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	return &Fetcher{cfg: cfg, logger: logger.Named("browser")}
}

func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	html, err := f.render(ctx, url, timeout)
	if err != nil {
		var fe *scrape.FetchError
		if errors.As(err, &fe) {
			return "", err
		}
		return "", &scrape.FetchError{URL: url, Err: err}
	}
	return html, nil
}

func (f *Fetcher) render(ctx context.Context, url string, timeout time.Duration) (string, error) {
	pw, err := playwright.Run()
	if err != nil {
		return "", fmt.Errorf("start playwright: %w", err)
	}
	defer func() { _ = pw.Stop() }()

	var b playwright.Browser
	if f.cfg.WSEndpoint != "" {
		f.logger.Info("connecting to remote browser", zap.String("endpoint", f.cfg.WSEndpoint))
		b, err = pw.Chromium.Connect(f.cfg.WSEndpoint)
	} else {
		b, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(f.cfg.Headless),
			Args: []string{
				"--no-sandbox",
				"--disable-dev-shm-usage",
				"--disable-gpu",
			},
		})
	}
	if err != nil {
		return "", fmt.Errorf("open browser: %w", err)
	}
	defer func() { _ = b.Close() }()

	page, err := b.NewPage()
	if err != nil {
		return "", fmt.Errorf("new page: %w", err)
	}
	defer func() { _ = page.Close() }()

	ms := float64(timeout.Milliseconds())
	page.SetDefaultTimeout(ms)

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms),
	})
	if err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if resp != nil && (resp.Status() < 200 || resp.Status() > 299) {
		return "", &scrape.FetchError{URL: url, StatusCode: resp.Status(), Err: fmt.Errorf("status %d", resp.Status())}
	}

	if f.cfg.WaitSelector != "" {
		if err := page.Locator(f.cfg.WaitSelector).First().WaitFor(playwright.LocatorWaitForOptions{
			Timeout: playwright.Float(10_000),
		}); err != nil {
			f.logger.Info("no listing rendered before wait timeout", zap.String("selector", f.cfg.WaitSelector))
		}
	}
	if err := sleep(ctx, f.cfg.SettleDelay); err != nil {
		return "", err
	}

	if err := f.loadMore(ctx, page); err != nil {
		return "", err
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return html, nil
}

func (f *Fetcher) loadMore(ctx context.Context, page playwright.Page) error {
	if f.cfg.LoadMoreSelector == "" || f.cfg.MaxLoadMore <= 0 {
		return nil
	}
	btn := page.Locator(f.cfg.LoadMoreSelector).First()
	for i := 0; i < f.cfg.MaxLoadMore; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		visible, err := btn.IsVisible()
		if err != nil || !visible {
			f.logger.Info("no more pages to load", zap.Int("clicks", i))
			return nil
		}
		_ = btn.ScrollIntoViewIfNeeded()
		if err := btn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5_000)}); err != nil {
			f.logger.Warn("load more click failed", zap.Int("clicks", i), zap.Error(err))
			return nil
		}
		if err := sleep(ctx, f.cfg.SettleDelay); err != nil {
			return err
		}
	}
	f.logger.Warn("stopped loading more pages at limit", zap.Int("limit", f.cfg.MaxLoadMore))
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
