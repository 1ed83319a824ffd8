package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type Failure struct {
	Identity string `json:"identity"`
	Title    string `json:"title"`
	Error    string `json:"error"`
}

// Report summarizes one run. The scheduler side reads it to decide whether
// the store needs committing.
type Report struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DryRun          bool      `json:"dry_run,omitempty"`
	RecordsScraped  int       `json:"records_scraped"`
	New             int       `json:"new"`
	Reactivated     int       `json:"reactivated"`
	WentInactive    int       `json:"went_inactive"`
	Collisions      int       `json:"collisions"`
	PublishedOK     int       `json:"published_ok"`
	PublishedFailed int       `json:"published_failed"`
	Failures        []Failure `json:"failures"`
	FatalError      string    `json:"fatal_error,omitempty"`
	StoreChanged    bool      `json:"store_changed"`
	Active          int       `json:"active"`
	Inactive        int       `json:"inactive"`
}

func (r Report) Outcome() string {
	switch {
	case r.FatalError != "":
		return "failed"
	case r.DryRun:
		return "dry_run"
	case r.PublishedFailed > 0:
		return "partial"
	}
	return "ok"
}

// WriteFile stores the report as indented JSON, replacing any previous one.
func (r Report) WriteFile(path string) error {
	if r.Failures == nil {
		r.Failures = []Failure{}
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := ValidateReportJSON(b); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
