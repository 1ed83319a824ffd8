package util

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var relativeRe = regexp.MustCompile(`^(\d+)\+?\s*([a-z]+)$`)

var absoluteLayouts = []string{
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02/01/2006",
}

// ParsePosted resolves listing dates such as "3d ago", "2 weeks ago",
// "yesterday" or "2024-05-01" to a UTC calendar date. It returns nil when the
// text is empty or not understood.
func ParsePosted(text string, now time.Time) *time.Time {
	s := strings.ToLower(CleanText(text))
	s = strings.TrimPrefix(s, "posted")
	s = strings.TrimSuffix(s, "ago")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	today := dateOf(now)
	switch s {
	case "today", "just now", "new", "now":
		return &today
	case "yesterday":
		d := today.AddDate(0, 0, -1)
		return &d
	}

	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			d := dateOf(t)
			return &d
		}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(CleanText(text), "Posted"))
	for _, layout := range absoluteLayouts[1:] {
		if t, err := time.Parse(layout, raw); err == nil {
			d := dateOf(t)
			return &d
		}
	}

	m := relativeRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}

	var d time.Time
	switch m[2] {
	case "s", "sec", "secs", "second", "seconds", "m", "min", "mins", "minute", "minutes",
		"h", "hr", "hrs", "hour", "hours":
		d = dateOf(now.Add(-durationFor(m[2], n)))
	case "d", "day", "days":
		d = today.AddDate(0, 0, -n)
	case "w", "wk", "wks", "week", "weeks":
		d = today.AddDate(0, 0, -7*n)
	case "mo", "mos", "month", "months":
		d = today.AddDate(0, -n, 0)
	case "y", "yr", "yrs", "year", "years":
		d = today.AddDate(-n, 0, 0)
	default:
		return nil
	}
	return &d
}

func durationFor(unit string, n int) time.Duration {
	switch unit[0] {
	case 's':
		return time.Duration(n) * time.Second
	case 'm':
		return time.Duration(n) * time.Minute
	}
	return time.Duration(n) * time.Hour
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
