package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("config validation failed:\n- %s", strings.Join(v.Errors, "\n- "))
}

// NormalizeAndValidate returns a normalized copy of cfg and what is wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Discourse.Tags = trimList(out.Discourse.Tags)
	out.Discourse.URL = strings.TrimRight(strings.TrimSpace(out.Discourse.URL), "/")
	out.Source.URL = strings.TrimSpace(out.Source.URL)
	out.Fetch.Mode = strings.ToLower(strings.TrimSpace(out.Fetch.Mode))
	out.Store.Backend = strings.ToLower(strings.TrimSpace(out.Store.Backend))

	// ---- Validation rules ----

	if u, err := url.Parse(out.Source.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		res.addErr("source.url must be an absolute http(s) URL, got %q", out.Source.URL)
	}

	switch out.Fetch.Mode {
	case "http", "browser":
	default:
		res.addErr("fetch.mode must be http or browser, got %q", out.Fetch.Mode)
	}
	if out.Fetch.Timeout <= 0 {
		res.addErr("fetch.timeout must be > 0")
	} else if out.Fetch.Timeout < 5*time.Second {
		res.addWarn("fetch.timeout is very low (%s); rendering the listings page may not finish.", out.Fetch.Timeout)
	}
	if out.Fetch.Mode == "browser" && out.Fetch.Browser.MaxLoadMore < 0 {
		res.addErr("fetch.browser.max_load_more must be >= 0")
	}

	switch out.Store.Backend {
	case "csv", "xlsx", "sqlite":
	default:
		res.addErr("store.backend must be csv, xlsx or sqlite, got %q", out.Store.Backend)
	}
	if strings.TrimSpace(out.Store.Path) == "" {
		res.addErr("store.path is required")
	}

	if out.Publish.Timeout <= 0 {
		res.addErr("publish.timeout must be > 0")
	}
	if out.Publish.RatePerSec < 0 {
		res.addErr("publish.rate_per_sec must be >= 0")
	} else if out.Publish.RatePerSec > 5 {
		res.addWarn("publish.rate_per_sec is high (%.1f); Discourse rate limits will reject posts.", out.Publish.RatePerSec)
	}

	if out.Publish.Enabled && !out.Run.DryRun {
		if u, err := url.Parse(out.Discourse.URL); err != nil || u.Host == "" {
			res.addErr("discourse.url is required when publish.enabled=true (or set DISCOURSE_URL)")
		}
		if strings.TrimSpace(out.Discourse.Username) == "" {
			res.addErr("discourse.username is required when publish.enabled=true (or set DISCOURSE_USERNAME)")
		}
		if out.Discourse.CategoryID <= 0 {
			res.addErr("discourse.category_id must be > 0 (or set DISCOURSE_CATEGORY_ID)")
		}
		if len(out.Discourse.Tags) == 0 {
			res.addWarn("discourse.tags is empty; posts will be untagged.")
		}
	}

	if out.Watch.Schedule != "" {
		if _, err := cron.ParseStandard(out.Watch.Schedule); err != nil {
			res.addErr("watch.schedule: %v", err)
		}
	}

	if out.Telegram.Enabled && out.Telegram.ChatID == 0 {
		res.addErr("telegram.chat_id is required when telegram.enabled=true (or set TELEGRAM_CHAT_ID)")
	}

	return out, res
}
