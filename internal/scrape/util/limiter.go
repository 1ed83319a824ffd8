package util

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter paces requests per host so a page and its assets, or a
// redirect to a mirror, each get their own budget.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

// NewHostLimiter allows reqPerSec per host with the given burst. A
// non-positive rate disables pacing.
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	every := rate.Inf
	if reqPerSec > 0 {
		every = rate.Limit(reqPerSec)
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
		burst:    max(burst, 1),
	}
}

// For returns the limiter shared by every request to host.
func (h *HostLimiter) For(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	lim := h.limiters[host]
	if lim == nil {
		lim = rate.NewLimiter(h.every, h.burst)
		h.limiters[host] = lim
	}
	return lim
}

// WaitURL blocks until a request to raw's host may proceed.
func (h *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	return h.For(hostKey(raw)).Wait(ctx)
}

// hostKey folds case and a leading "www." so job.zip and WWW.job.zip share
// one budget. Unparseable input shares the "_" bucket.
func hostKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return "_"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
