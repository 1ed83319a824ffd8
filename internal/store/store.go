package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"
)

// Table is a durable backing file for the job table.
// Read returns an error wrapping fs.ErrNotExist when the file is missing and
// ErrCorrupt when it exists but cannot be decoded.
type Table interface {
	Read(ctx context.Context) (*Snapshot, error)
	// Write replaces the whole table; readers see either the old or the new
	// table, never a mix.
	Write(ctx context.Context, s *Snapshot) error
	Path() string
}

type Store struct {
	table  Table
	logger *zap.Logger
	now    func() time.Time
}

func New(table Table, logger *zap.Logger) *Store {
	return &Store{table: table, logger: logger.Named("store"), now: time.Now}
}

func (s *Store) Path() string { return s.table.Path() }

// Load reads the table. A missing file is a cold start. A corrupt file is
// moved aside and the previous generation (path.bak) is restored if it reads
// cleanly; otherwise the run cold-starts with an empty snapshot.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	snap, err := s.table.Read(ctx)
	switch {
	case err == nil:
		active, inactive := snap.Counts()
		s.logger.Info("loaded job table",
			zap.String("path", s.table.Path()), zap.Int("active", active), zap.Int("inactive", inactive))
		return snap, nil

	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("no job table yet, cold start", zap.String("path", s.table.Path()))
		return NewSnapshot(), nil

	case errors.Is(err, ErrCorrupt):
		moved := s.quarantine()
		s.logger.Warn("job table unreadable",
			zap.String("path", s.table.Path()), zap.String("moved_to", moved), zap.Error(err))
		if snap, ok := s.restoreBackup(ctx); ok {
			return snap, nil
		}
		s.logger.Warn("no usable backup, cold start", zap.String("path", s.table.Path()))
		return NewSnapshot(), nil
	}
	return nil, fmt.Errorf("load %s: %w", s.table.Path(), err)
}

// Save atomically replaces the table with snap.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if err := s.table.Write(ctx, snap); err != nil {
		return fmt.Errorf("save %s: %w", s.table.Path(), err)
	}
	active, inactive := snap.Counts()
	s.logger.Info("saved job table",
		zap.String("path", s.table.Path()),
		zap.Int("active", active), zap.Int("inactive", inactive), zap.Int("total", snap.Len()))
	return nil
}

func (s *Store) quarantine() string {
	dst := s.table.Path() + ".corrupt-" + s.now().UTC().Format("20060102T150405Z")
	if err := os.Rename(s.table.Path(), dst); err != nil {
		s.logger.Warn("could not move corrupt table aside", zap.Error(err))
		return ""
	}
	return dst
}

// restoreBackup copies path.bak over the (already quarantined) table path and
// reads it. A backup that fails to decode is removed from path again and the
// .bak itself is left as it was.
func (s *Store) restoreBackup(ctx context.Context) (*Snapshot, bool) {
	path := s.table.Path()
	bak := path + ".bak"
	if err := copyFile(bak, path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("restore backup", zap.String("backup", bak), zap.Error(err))
		}
		return nil, false
	}

	snap, err := s.table.Read(ctx)
	if err != nil {
		s.logger.Warn("backup unreadable", zap.String("backup", bak), zap.Error(err))
		_ = os.Remove(path)
		return nil, false
	}
	active, inactive := snap.Counts()
	s.logger.Warn("restored job table from backup",
		zap.String("path", path), zap.Int("active", active), zap.Int("inactive", inactive))
	return snap, true
}
