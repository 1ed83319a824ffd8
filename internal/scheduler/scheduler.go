// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Task func(ctx context.Context) error

// Scheduler wraps robfig/cron. A tick that fires while the previous run is
// still going is skipped, so runs never overlap.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	name   string
	task   Task
	logger *zap.Logger
}

func New(spec, name string, task Task, logger *zap.Logger) *Scheduler {
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		spec:   spec,
		name:   name,
		task:   task,
		logger: logger,
	}
}

// Run registers the task, runs it once immediately and then on every tick
// until ctx is done. It waits for a running task before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.cron.AddJob(s.spec, cron.FuncJob(func() { s.runOnce(ctx) }))
	if err != nil {
		return fmt.Errorf("cron.AddJob %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("cron started", zap.String("task", s.name), zap.String("spec", s.spec))

	// the first run goes through the same job wrapper as ticks
	var wg sync.WaitGroup
	for _, e := range s.cron.Entries() {
		wg.Add(1)
		go func(j cron.Job) {
			defer wg.Done()
			j.Run()
		}(e.WrappedJob)
	}

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	wg.Wait()
	s.logger.Info("cron stopped", zap.String("task", s.name))
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.task(ctx); err != nil {
		s.logger.Error("task failed", zap.String("task", s.name), zap.Error(err))
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
