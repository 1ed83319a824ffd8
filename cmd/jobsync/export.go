package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/tonykipkemboi/crewai-jobs/internal/store"
)

func cmdExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	out := fs.String("out", "", "output file; backend follows the extension (.xlsx, .csv, .db)")
	format := fs.String("format", "", "force the output backend: csv, xlsx or sqlite")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("export: -out is required")
	}

	cfg, _, err := loadConfig(common)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	src, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	dstTable, err := openTable(*format, *out)
	if err != nil {
		return err
	}
	if dstTable.Path() == src.Path() {
		return fmt.Errorf("export: %s is the live store", *out)
	}

	snap, err := src.Load(ctx)
	if err != nil {
		return err
	}
	if err := store.New(dstTable, logger).Save(ctx, snap); err != nil {
		return err
	}
	active, inactive := snap.Counts()
	logger.Info("exported job table",
		zap.String("to", dstTable.Path()), zap.Int("active", active), zap.Int("inactive", inactive))
	return nil
}
