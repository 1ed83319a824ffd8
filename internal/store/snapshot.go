package store

import (
	"sort"
	"time"

	"github.com/tonykipkemboi/crewai-jobs/internal/domain"
)

// Snapshot is the in-memory job table: identity -> record, in insertion order.
// Row order is preserved on save so unchanged runs rewrite identical files.
type Snapshot struct {
	order []string
	recs  map[string]domain.JobRecord
}

func NewSnapshot() *Snapshot {
	return &Snapshot{recs: make(map[string]domain.JobRecord)}
}

func (s *Snapshot) Len() int { return len(s.order) }

func (s *Snapshot) Get(identity string) (domain.JobRecord, bool) {
	r, ok := s.recs[identity]
	return r, ok
}

// Records returns the rows in table order.
func (s *Snapshot) Records() []domain.JobRecord {
	out := make([]domain.JobRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.recs[id])
	}
	return out
}

func (s *Snapshot) Identities() []string {
	return append([]string(nil), s.order...)
}

// Upsert applies update to the record with the given identity, creating it
// when absent, and returns the stored result. History invariants are
// enforced here: identity and first_seen are fixed once created, last_seen
// never moves backwards and published is never reset.
func (s *Snapshot) Upsert(identity string, update func(*domain.JobRecord)) domain.JobRecord {
	prev, existed := s.recs[identity]

	next := prev
	if !existed {
		next = domain.JobRecord{Identity: identity, Status: domain.StatusActive}
	}
	if update != nil {
		update(&next)
	}

	next.Identity = identity
	next.FirstSeen = next.FirstSeen.UTC().Truncate(time.Second)
	next.LastSeen = next.LastSeen.UTC().Truncate(time.Second)
	if existed {
		next.FirstSeen = prev.FirstSeen
		if next.LastSeen.Before(prev.LastSeen) {
			next.LastSeen = prev.LastSeen
		}
		if prev.Published {
			next.Published = true
			if next.PostID == "" {
				next.PostID = prev.PostID
			}
		}
	} else {
		s.order = append(s.order, identity)
	}

	s.recs[identity] = next
	return next
}

// put appends or replaces a row as-is; table readers use it.
func (s *Snapshot) put(r domain.JobRecord) {
	if _, ok := s.recs[r.Identity]; !ok {
		s.order = append(s.order, r.Identity)
	}
	s.recs[r.Identity] = r
}

func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		order: append([]string(nil), s.order...),
		recs:  make(map[string]domain.JobRecord, len(s.recs)),
	}
	for k, v := range s.recs {
		if v.PostedAt != nil {
			p := *v.PostedAt
			v.PostedAt = &p
		}
		c.recs[k] = v
	}
	return c
}

// Equal reports whether both snapshots hold the same rows in the same order.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i, id := range s.order {
		if o.order[i] != id {
			return false
		}
		if !recordsEqual(s.recs[id], o.recs[id]) {
			return false
		}
	}
	return true
}

// Counts returns the number of active and inactive rows.
func (s *Snapshot) Counts() (active, inactive int) {
	for _, r := range s.recs {
		if r.Active() {
			active++
		} else {
			inactive++
		}
	}
	return active, inactive
}

// Pending returns active rows not yet published, oldest first.
func (s *Snapshot) Pending() []domain.JobRecord {
	var out []domain.JobRecord
	for _, id := range s.order {
		r := s.recs[id]
		if r.Active() && !r.Published {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	return out
}

func recordsEqual(a, b domain.JobRecord) bool {
	if (a.PostedAt == nil) != (b.PostedAt == nil) {
		return false
	}
	if a.PostedAt != nil && !a.PostedAt.Equal(*b.PostedAt) {
		return false
	}
	return a.Identity == b.Identity &&
		a.Title == b.Title &&
		a.Company == b.Company &&
		a.Location == b.Location &&
		a.JobType == b.JobType &&
		a.URL == b.URL &&
		a.Description == b.Description &&
		a.Status == b.Status &&
		a.FirstSeen.Equal(b.FirstSeen) &&
		a.LastSeen.Equal(b.LastSeen) &&
		a.Published == b.Published &&
		a.PostID == b.PostID
}
