package publish

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tonykipkemboi/crewai-jobs/internal/domain"
)

// PostPayload is the body of a Discourse "create topic" call.
type PostPayload struct {
	Title    string   `json:"title"`
	Raw      string   `json:"raw"`
	Category int      `json:"category"`
	Tags     []string `json:"tags,omitempty"`
}

var DefaultTags = []string{"jobs", "crewai", "automated"}

// Discourse rejects longer topic titles.
const maxTitleRunes = 255

type Composer struct {
	CategoryID int
	Tags       []string
	Footer     string
}

func (c Composer) Compose(r domain.JobRecord) PostPayload {
	tags := c.Tags
	if tags == nil {
		tags = DefaultTags
	}
	return PostPayload{
		Title:    Title(r),
		Raw:      c.Body(r),
		Category: c.CategoryID,
		Tags:     append([]string(nil), tags...),
	}
}

func Title(r domain.JobRecord) string {
	t := strings.TrimSpace(r.Title) + " at " + strings.TrimSpace(r.Company)
	if utf8.RuneCountInString(t) <= maxTitleRunes {
		return t
	}
	rs := []rune(t)
	return string(rs[:maxTitleRunes-1]) + "…"
}

var linkText = strings.NewReplacer("[", `\[`, "]", `\]`)

func (c Composer) Body(r domain.JobRecord) string {
	var b strings.Builder

	if r.URL != "" {
		fmt.Fprintf(&b, "**[%s](%s)**\n\n", linkText.Replace(r.Title), r.URL)
	} else {
		fmt.Fprintf(&b, "**%s**\n\n", r.Title)
	}
	fmt.Fprintf(&b, "🏢 %s\n\n", r.Company)

	location := r.Location
	if location == "" || location == domain.Unknown {
		location = "Location not specified"
	}
	meta := []string{"📍 " + location}
	if r.JobType != "" && r.JobType != domain.Unknown {
		meta = append(meta, "💼 "+r.JobType)
	}
	if r.PostedAt != nil {
		meta = append(meta, "⏰ Posted "+r.PostedAt.Format("2006-01-02"))
	}
	b.WriteString(strings.Join(meta, " | "))
	b.WriteString("\n\n")

	if d := strings.TrimSpace(r.Description); d != "" {
		for _, line := range strings.Split(d, "\n") {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	if c.Footer != "" {
		b.WriteString(c.Footer)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "*First seen %s UTC. Having trouble with a job link? Let us know in the comments below.*",
		r.FirstSeen.UTC().Format("2006-01-02 15:04"))
	return b.String()
}
