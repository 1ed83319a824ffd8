package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tonykipkemboi/crewai-jobs/internal/domain"
)

// ErrCorrupt marks a backing table that exists but cannot be trusted.
var ErrCorrupt = errors.New("store table corrupt")

// Columns is the persisted layout, one row per identity.
var Columns = []string{
	"identity",
	"title",
	"company",
	"location",
	"job_type",
	"url",
	"posted_at",
	"description",
	"status",
	"first_seen",
	"last_seen",
	"published",
	"post_id",
}

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

func toRow(r domain.JobRecord) []string {
	posted := ""
	if r.PostedAt != nil {
		posted = r.PostedAt.UTC().Format(dateLayout)
	}
	return []string{
		r.Identity,
		r.Title,
		r.Company,
		r.Location,
		r.JobType,
		r.URL,
		posted,
		r.Description,
		string(r.Status),
		r.FirstSeen.UTC().Format(timeLayout),
		r.LastSeen.UTC().Format(timeLayout),
		strconv.FormatBool(r.Published),
		r.PostID,
	}
}

// headerIndex maps column name -> position and fails when a column is missing.
func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrCorrupt, c)
		}
	}
	return idx, nil
}

func fromRow(idx map[string]int, row []string) (domain.JobRecord, error) {
	get := func(col string) string {
		i := idx[col]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	r := domain.JobRecord{
		Identity:    strings.TrimSpace(get("identity")),
		Title:       get("title"),
		Company:     get("company"),
		Location:    get("location"),
		JobType:     get("job_type"),
		URL:         get("url"),
		Description: get("description"),
		PostID:      get("post_id"),
	}
	if r.Identity == "" {
		return r, fmt.Errorf("%w: empty identity", ErrCorrupt)
	}

	st, ok := domain.ParseStatus(get("status"))
	if !ok {
		return r, fmt.Errorf("%w: identity %s: bad status %q", ErrCorrupt, r.Identity, get("status"))
	}
	r.Status = st

	var err error
	if r.FirstSeen, err = time.Parse(timeLayout, get("first_seen")); err != nil {
		return r, fmt.Errorf("%w: identity %s: first_seen: %v", ErrCorrupt, r.Identity, err)
	}
	if r.LastSeen, err = time.Parse(timeLayout, get("last_seen")); err != nil {
		return r, fmt.Errorf("%w: identity %s: last_seen: %v", ErrCorrupt, r.Identity, err)
	}
	r.FirstSeen = r.FirstSeen.UTC()
	r.LastSeen = r.LastSeen.UTC()

	if p := strings.TrimSpace(get("posted_at")); p != "" {
		t, err := time.Parse(dateLayout, p)
		if err != nil {
			return r, fmt.Errorf("%w: identity %s: posted_at: %v", ErrCorrupt, r.Identity, err)
		}
		r.PostedAt = &t
	}

	if r.Published, err = strconv.ParseBool(get("published")); err != nil {
		return r, fmt.Errorf("%w: identity %s: published: %v", ErrCorrupt, r.Identity, err)
	}
	return r, nil
}

// snapshotFromRows builds a snapshot from a header row plus data rows.
func snapshotFromRows(rows [][]string) (*Snapshot, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrCorrupt)
	}
	idx, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	snap := NewSnapshot()
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		r, err := fromRow(idx, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if _, dup := snap.Get(r.Identity); dup {
			return nil, fmt.Errorf("row %d: %w: duplicate identity %s", i+2, ErrCorrupt, r.Identity)
		}
		snap.put(r)
	}
	return snap, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
