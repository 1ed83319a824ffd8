package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tonykipkemboi/crewai-jobs/internal/config"
	"github.com/tonykipkemboi/crewai-jobs/internal/scheduler"
)

func cmdWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	schedule := fs.String("schedule", "", "cron schedule (overrides watch.schedule)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, v, err := loadConfig(common)
	if err != nil {
		return err
	}
	if *schedule != "" {
		cfg.Watch.Schedule = *schedule
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
	if cfg.Watch.Schedule == "" {
		return errors.New("watch.schedule is empty")
	}

	d, err := newDriver(cfg, logger)
	if err != nil {
		return err
	}

	task := func(ctx context.Context) error {
		lock, err := tryLock(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = lock.Unlock() }()
		_, err = d.Run(ctx)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Watch.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok\n"))
		})
		srv := &http.Server{Addr: cfg.Watch.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("metrics server listening", zap.String("addr", cfg.Watch.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		return scheduler.New(cfg.Watch.Schedule, "sync", task, logger).Run(gctx)
	})

	return g.Wait()
}

func revalidate(cfg config.Config) (config.Config, config.Validation) {
	return config.NormalizeAndValidate(cfg)
}
