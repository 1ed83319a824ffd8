// Package pipeline runs one scrape → reconcile → publish cycle.
//
// Sequencing is strict: the reconciled table is saved before anything is
// posted, and each successful post is saved before the next one starts. A
// run that dies anywhere leaves a table from which the next run simply
// retries the active, unpublished records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tonykipkemboi/crewai-jobs/internal/domain"
	"github.com/tonykipkemboi/crewai-jobs/internal/metrics"
	"github.com/tonykipkemboi/crewai-jobs/internal/publish"
	"github.com/tonykipkemboi/crewai-jobs/internal/reconcile"
	"github.com/tonykipkemboi/crewai-jobs/internal/scrape"
	"github.com/tonykipkemboi/crewai-jobs/internal/store"
)

type Extractor interface {
	Extract(html string) ([]domain.RawJob, error)
}

// Notifier receives every finished report. Errors are logged, never fatal.
type Notifier interface {
	Notify(ctx context.Context, r Report) error
}

type Options struct {
	ListingsURL  string
	FetchTimeout time.Duration
	DryRun       bool
	ReportPath   string // empty: do not write a report file
}

type Driver struct {
	opts      Options
	fetcher   scrape.Fetcher
	extractor Extractor
	store     *store.Store
	publisher *publish.Publisher // nil: publishing disabled
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
}

func New(opts Options, f scrape.Fetcher, x Extractor, st *store.Store, pub *publish.Publisher, logger *zap.Logger) *Driver {
	return &Driver{
		opts:      opts,
		fetcher:   f,
		extractor: x,
		store:     st,
		publisher: pub,
		logger:    logger.Named("pipeline"),
		now:       time.Now,
	}
}

func (d *Driver) WithNotifier(n Notifier) *Driver {
	d.notifier = n
	return d
}

// Run executes one cycle. A non-nil error is fatal (fetch, extraction, store
// I/O or a forum configuration rejection); per-record publish failures are
// only itemized in the report.
func (d *Driver) Run(ctx context.Context) (rep Report, err error) {
	started := d.now()
	rep = Report{
		RunID:     uuid.NewString(),
		StartedAt: started.UTC().Truncate(time.Second),
		DryRun:    d.opts.DryRun,
	}
	log := d.logger.With(zap.String("run_id", rep.RunID))

	defer func() {
		rep.FinishedAt = d.now().UTC().Truncate(time.Second)
		if err != nil {
			rep.FatalError = err.Error()
		}
		d.finish(ctx, log, rep, d.now().Sub(started))
	}()

	prior, err := d.store.Load(ctx)
	if err != nil {
		return rep, fmt.Errorf("load store: %w", err)
	}

	log.Info("fetching listings", zap.String("url", d.opts.ListingsURL))
	html, err := d.fetcher.Fetch(ctx, d.opts.ListingsURL, d.opts.FetchTimeout)
	if err != nil {
		return rep, fmt.Errorf("fetch: %w", err)
	}

	jobs, err := d.extractor.Extract(html)
	if err != nil {
		return rep, fmt.Errorf("extract: %w", err)
	}
	rep.RecordsScraped = len(jobs)
	metrics.ListingsScraped.Set(float64(len(jobs)))

	diff, next := reconcile.Reconcile(jobs, prior, d.now(), log)
	rep.New = len(diff.New)
	rep.Reactivated = len(diff.Reactivated)
	rep.WentInactive = len(diff.WentInactive)
	rep.Collisions = len(diff.Collisions)
	rep.Active, rep.Inactive = next.Counts()

	changed := !next.Equal(prior)
	pending := next.Pending()

	if d.opts.DryRun {
		for _, r := range pending {
			log.Info("dry run: would publish",
				zap.String("identity", r.Identity), zap.String("title", publish.Title(r)))
		}
		log.Info("dry run: store not written", zap.Bool("would_change", changed))
		return rep, nil
	}

	if changed {
		if err := d.store.Save(ctx, next); err != nil {
			return rep, err
		}
		rep.StoreChanged = true
	}

	if d.publisher == nil {
		if len(pending) > 0 {
			log.Info("publishing disabled", zap.Int("pending", len(pending)))
		}
		return rep, nil
	}
	if len(pending) == 0 {
		return rep, nil
	}

	// posts that already happened must be recorded even if ctx is cancelled
	saveCtx := context.WithoutCancel(ctx)
	d.publisher.OnResult = func(r publish.Result) error {
		if !r.OK() {
			return nil
		}
		next.Upsert(r.Identity, func(rec *domain.JobRecord) {
			rec.Published = true
			rec.PostID = r.PostID
		})
		rep.StoreChanged = true
		return d.store.Save(saveCtx, next)
	}
	defer func() { d.publisher.OnResult = nil }()

	results, perr := d.publisher.Publish(ctx, pending)
	for _, r := range results {
		if r.OK() {
			rep.PublishedOK++
			continue
		}
		rep.PublishedFailed++
		rec, _ := next.Get(r.Identity)
		rep.Failures = append(rep.Failures, Failure{Identity: r.Identity, Title: rec.Title, Error: r.Err.Error()})
	}

	// the last checkpoint is only in the live file; write it once more so
	// path.bak records every post too
	if rep.PublishedOK > 0 {
		if err := d.store.Save(saveCtx, next); err != nil {
			log.Warn("could not refresh table backup", zap.Error(err))
		}
	}

	if perr != nil {
		var ce *publish.PublishConfigError
		if errors.As(perr, &ce) {
			return rep, perr
		}
		return rep, fmt.Errorf("publish: %w", perr)
	}
	return rep, nil
}

func (d *Driver) finish(ctx context.Context, log *zap.Logger, rep Report, took time.Duration) {
	metrics.RunsTotal.WithLabelValues(rep.Outcome()).Inc()
	metrics.RunDuration.Observe(took.Seconds())
	metrics.Transitions.WithLabelValues("new").Add(float64(rep.New))
	metrics.Transitions.WithLabelValues("reactivated").Add(float64(rep.Reactivated))
	metrics.Transitions.WithLabelValues("went_inactive").Add(float64(rep.WentInactive))
	metrics.PostsTotal.WithLabelValues("ok").Add(float64(rep.PublishedOK))
	metrics.PostsTotal.WithLabelValues("failed").Add(float64(rep.PublishedFailed))
	if rep.FatalError == "" {
		metrics.StoreRecords.WithLabelValues(string(domain.StatusActive)).Set(float64(rep.Active))
		metrics.StoreRecords.WithLabelValues(string(domain.StatusInactive)).Set(float64(rep.Inactive))
	}

	fields := []zap.Field{
		zap.String("outcome", rep.Outcome()),
		zap.Int("scraped", rep.RecordsScraped),
		zap.Int("new", rep.New),
		zap.Int("reactivated", rep.Reactivated),
		zap.Int("went_inactive", rep.WentInactive),
		zap.Int("published_ok", rep.PublishedOK),
		zap.Int("published_failed", rep.PublishedFailed),
		zap.Bool("store_changed", rep.StoreChanged),
		zap.Duration("took", took),
	}
	if rep.FatalError != "" {
		log.Error("run failed", append(fields, zap.String("fatal_error", rep.FatalError))...)
	} else {
		log.Info("run finished", fields...)
	}

	if d.opts.ReportPath != "" {
		if err := rep.WriteFile(d.opts.ReportPath); err != nil {
			log.Warn("could not write run report", zap.String("path", d.opts.ReportPath), zap.Error(err))
		}
	}

	if d.notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := d.notifier.Notify(nctx, rep); err != nil {
			log.Warn("run notification failed", zap.Error(err))
		}
	}
}
