package store

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Jobs"

// XLSXTable keeps the table as a spreadsheet, the format the job list was
// originally published in.
type XLSXTable struct {
	path string
}

func NewXLSXTable(path string) *XLSXTable { return &XLSXTable{path: path} }

func (t *XLSXTable) Path() string { return t.path }

func (t *XLSXTable) Read(_ context.Context) (*Snapshot, error) {
	if _, err := os.Stat(t.path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(t.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return snapshotFromRows(rows)
}

func (t *XLSXTable) Write(_ context.Context, s *Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(xlsxSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	header := append([]string(nil), Columns...)
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range s.Records() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := toRow(r)
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetPanes(xlsxSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	return writeFileAtomic(t.path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
}
