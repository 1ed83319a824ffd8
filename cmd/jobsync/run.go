package main

import (
	"context"
	"flag"

	"go.uber.org/zap"
)

func cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	dryRun := fs.Bool("dry-run", false, "compute and report the diff without saving or posting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, v, err := loadConfig(common)
	if err != nil {
		return err
	}
	if *dryRun {
		cfg.Run.DryRun = true
		// credentials are not needed for a dry run
		_, v = revalidate(cfg)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logValidation(logger, v)
	if err := v.Err(); err != nil {
		return err
	}

	lock, err := tryLock(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	d, err := newDriver(cfg, logger)
	if err != nil {
		return err
	}

	rep, err := d.Run(ctx)
	if err != nil {
		return err
	}
	if rep.PublishedFailed > 0 {
		logger.Warn("some posts failed and will be retried next run", zap.Int("failed", rep.PublishedFailed))
	}
	return nil
}
