package crawl

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mfeller/redsift/internal/metrics"
)

// CoordinatorConfig bounds the worker pool.
type CoordinatorConfig struct {
	MaxWorkers int
}

// Coordinator pre-validates targets, partitions the valid ones across a
// bounded worker pool, and aggregates the per-target byte totals.
type Coordinator struct {
	worker *Worker
	cfg    CoordinatorConfig
	logger *zap.Logger
}

// Summary reports the outcome of one crawl run.
type Summary struct {
	RunID            string
	TargetsRequested int
	TargetsValid     int
	TotalBytes       int64
	Elapsed          time.Duration
}

// NewCoordinator constructs a Coordinator driving the given worker.
func NewCoordinator(worker *Worker, cfg CoordinatorConfig, logger *zap.Logger) *Coordinator {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}
	return &Coordinator{worker: worker, cfg: cfg, logger: logger}
}

// Run crawls targets until every worker finishes or the byte budget stops
// the run. A run with zero valid targets ends immediately with an empty
// summary; it is not an error.
func (c *Coordinator) Run(ctx context.Context, targets []string) (Summary, error) {
	runID := uuid.NewString()
	start := time.Now()
	logger := c.logger.With(zap.String("run_id", runID))

	valid := make([]string, 0, len(targets))
	for _, target := range targets {
		if err := c.worker.Validate(ctx, target); err != nil {
			if ctx.Err() != nil {
				return Summary{RunID: runID, TargetsRequested: len(targets)}, ctx.Err()
			}
			logger.Warn("dropping invalid target", zap.String("target", target), zap.Error(err))
			metrics.ObserveTarget("invalid")
			continue
		}
		metrics.ObserveTarget("valid")
		valid = append(valid, target)
	}

	summary := Summary{
		RunID:            runID,
		TargetsRequested: len(targets),
		TargetsValid:     len(valid),
	}
	if len(valid) == 0 {
		logger.Warn("no valid targets, nothing to crawl")
		summary.Elapsed = time.Since(start)
		return summary, nil
	}

	pool := min(c.cfg.MaxWorkers, len(valid))
	logger.Info("starting crawl",
		zap.Int("targets", len(valid)),
		zap.Int("workers", pool),
	)

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pool)
	for _, target := range valid {
		g.Go(func() error {
			n, err := c.worker.CrawlTarget(gctx, target)
			total.Add(n)
			if err != nil && gctx.Err() == nil {
				// One target's failure never aborts the siblings.
				logger.Error("target crawl failed", zap.String("target", target), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.TotalBytes = total.Load()
	summary.Elapsed = time.Since(start)
	logger.Info("crawl finished",
		zap.Int("targets_valid", summary.TargetsValid),
		zap.Int64("total_bytes", summary.TotalBytes),
		zap.Duration("elapsed", summary.Elapsed),
	)
	// Caller cancellation is a normal early stop once every worker has
	// flushed; only deadline expiry and the like surface as errors.
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return summary, err
	}
	return summary, nil
}
