package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSVTable is the default backend: plain text, one row per identity, stable
// row order, so the file diffs cleanly between runs.
type CSVTable struct {
	path string
}

func NewCSVTable(path string) *CSVTable { return &CSVTable{path: path} }

func (t *CSVTable) Path() string { return t.path }

func (t *CSVTable) Read(_ context.Context) (*Snapshot, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Columns)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return snapshotFromRows(rows)
}

func (t *CSVTable) Write(_ context.Context, s *Snapshot) error {
	return writeFileAtomic(t.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(Columns); err != nil {
			return err
		}
		for _, r := range s.Records() {
			if err := cw.Write(toRow(r)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
