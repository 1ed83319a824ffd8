package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tonykipkemboi/crewai-jobs/internal/scrape/util"
)

// Fetcher returns the fully rendered HTML of a listings page.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (string, error)
}

// FetchError reports that the listings page could not be retrieved.
type FetchError struct {
	URL        string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPFetcher fetches server-rendered pages with a plain GET.
type HTTPFetcher struct {
	hc        *http.Client
	limiter   *util.HostLimiter
	userAgent string
	maxBytes  int64
	logger    *zap.Logger
}

type HTTPConfig struct {
	UserAgent  string
	MaxBytes   int64
	ReqPerSec  float64
	Burst      int
	HTTPClient *http.Client
}

func NewHTTPFetcher(cfg HTTPConfig, logger *zap.Logger) *HTTPFetcher {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "crewai-jobs/1.0 (+https://github.com/tonykipkemboi/crewai-jobs)"
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 8 << 20
	}
	return &HTTPFetcher{
		hc:        hc,
		limiter:   util.NewHostLimiter(cfg.ReqPerSec, cfg.Burst),
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
		logger:    logger.Named("fetch"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := f.limiter.WaitURL(ctx, url); err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	res, err := f.hc.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		f.logger.Warn("non-2xx listings response",
			zap.String("url", url), zap.String("status", res.Status), zap.ByteString("body", snippet))
		return "", &FetchError{URL: url, StatusCode: res.StatusCode, Err: errors.New(res.Status)}
	}

	b, err := io.ReadAll(io.LimitReader(res.Body, f.maxBytes+1))
	if err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(b)) > f.maxBytes {
		return "", &FetchError{URL: url, Err: fmt.Errorf("page larger than %d bytes", f.maxBytes)}
	}

	f.logger.Info("fetched listings page",
		zap.String("url", url), zap.Int("bytes", len(b)), zap.Duration("took", time.Since(start)))
	return string(b), nil
}
