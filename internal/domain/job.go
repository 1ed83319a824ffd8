package domain

import "time"

// Unknown fills optional listing fields the page did not provide.
const Unknown = "unknown"

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusActive:
		return StatusActive, true
	case StatusInactive:
		return StatusInactive, true
	}
	return "", false
}

// RawJob is one listing block as extracted from the rendered page.
type RawJob struct {
	Title       string
	Company     string
	Location    string
	JobType     string
	URL         string
	PostedText  string     // as displayed, e.g. "3d ago"
	PostedAt    *time.Time // resolved from PostedText when possible
	Description string
}

// JobRecord is a row of the durable job table.
type JobRecord struct {
	Identity    string
	Title       string
	Company     string
	Location    string
	JobType     string
	URL         string
	PostedAt    *time.Time
	Description string
	Status      Status
	FirstSeen   time.Time
	LastSeen    time.Time
	Published   bool
	PostID      string // forum post id once published
}

func (r JobRecord) Active() bool { return r.Status == StatusActive }

// Collision is a duplicate identity seen twice within one scrape.
// The first occurrence wins; the collision is only reported.
type Collision struct {
	Identity string
	Kept     RawJob
	Dropped  RawJob
}

// RunDiff partitions the union of prior and freshly scraped identities.
type RunDiff struct {
	New          []JobRecord
	Reactivated  []JobRecord
	WentInactive []JobRecord
	Unchanged    []JobRecord
	Collisions   []Collision
}

func (d RunDiff) Empty() bool {
	return len(d.New) == 0 && len(d.Reactivated) == 0 && len(d.WentInactive) == 0
}
