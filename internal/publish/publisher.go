package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tonykipkemboi/crewai-jobs/internal/domain"
)

// Result is the outcome for one record. Err is nil on success.
type Result struct {
	Identity string
	PostID   string
	Err      error
}

func (r Result) OK() bool { return r.Err == nil }

type Config struct {
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	Composer   Composer
}

// Publisher posts unpublished records one at a time, at most once each.
type Publisher struct {
	poster  Poster
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger

	// OnResult, when set, sees every result as soon as it is known. An error
	// aborts the batch; the driver uses it to persist each success before
	// moving on.
	OnResult func(Result) error
}

func NewPublisher(poster Poster, cfg Config, logger *zap.Logger) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	lim := rate.Limit(cfg.RatePerSec)
	if cfg.RatePerSec <= 0 {
		lim = rate.Inf
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &Publisher{
		poster:  poster,
		cfg:     cfg,
		limiter: rate.NewLimiter(lim, cfg.Burst),
		logger:  logger.Named("publish"),
	}
}

// Publish posts every record with Published=false, in order. Per-record
// failures are returned as failed results and do not stop the batch. A
// configuration rejection stops it with *PublishConfigError; results for the
// records handled so far are returned either way.
func (p *Publisher) Publish(ctx context.Context, records []domain.JobRecord) ([]Result, error) {
	var results []Result
	for _, rec := range records {
		if rec.Published {
			p.logger.Debug("already published, skipping", zap.String("identity", rec.Identity))
			continue
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return results, fmt.Errorf("publish: %w", err)
		}

		res := p.publishOne(ctx, rec)

		var pe *PublishError
		if errors.As(res.Err, &pe) && pe.Kind == Fatal {
			p.logger.Error("forum rejected configuration, aborting batch",
				zap.String("identity", rec.Identity), zap.Int("status", pe.StatusCode), zap.Error(pe))
			return results, &PublishConfigError{Identity: rec.Identity, Err: pe}
		}

		results = append(results, res)
		if p.OnResult != nil {
			if err := p.OnResult(res); err != nil {
				return results, fmt.Errorf("record result for %s: %w", rec.Identity, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("publish: %w", err)
		}
	}
	return results, nil
}

func (p *Publisher) publishOne(ctx context.Context, rec domain.JobRecord) Result {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	payload := p.cfg.Composer.Compose(rec)
	postID, err := p.poster.Post(cctx, payload)
	if err != nil {
		var pe *PublishError
		if !errors.As(err, &pe) {
			err = &PublishError{Kind: Transient, Err: err}
		}
		p.logger.Warn("post failed",
			zap.String("identity", rec.Identity), zap.String("title", payload.Title), zap.Error(err))
		return Result{Identity: rec.Identity, Err: err}
	}

	p.logger.Info("posted",
		zap.String("identity", rec.Identity), zap.String("title", payload.Title), zap.String("post_id", postID))
	return Result{Identity: rec.Identity, PostID: postID}
}
