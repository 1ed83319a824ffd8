package util

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// FirstText returns the cleaned text of the first candidate selector that
// matches something non-empty inside sel.
func FirstText(sel *goquery.Selection, candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if t := CleanText(sel.Find(c).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

var locationLabel = regexp.MustCompile(`(?i)locations?\s*:`)

const maxLabeledLocationRunes = 80

// LabeledLocation returns the value after a "Location:" style label in plain
// text, up to the end of that line.
func LabeledLocation(s string) string {
	m := locationLabel.FindStringIndex(s)
	if m == nil {
		return ""
	}
	rest := s[m[1]:]
	for _, cut := range []string{"\n", "\r", " | ", " · "} {
		if j := strings.Index(rest, cut); j >= 0 {
			rest = rest[:j]
		}
	}
	rest = CleanText(rest)
	if rest == "" || utf8.RuneCountInString(rest) > maxLabeledLocationRunes {
		return ""
	}
	return rest
}
