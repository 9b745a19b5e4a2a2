package crawl

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mfeller/redsift/internal/metrics"
)

// WorkerConfig controls per-target crawl behavior. Zero values fall back
// to the defaults the constructor applies.
type WorkerConfig struct {
	Streams          []string
	Keywords         []string
	BatchSize        int
	CourtesyEvery    int
	CourtesyPause    time.Duration
	StreamPause      time.Duration
	ValidateAttempts int
	ValidateBackoff  time.Duration
	MoreCommentPages int
}

// Worker crawls one target at a time: it validates the target with
// retry/backoff, iterates its streams, filters results by keyword, expands
// comment trees, deduplicates, and feeds the shared sink until the stop
// controller raises the flag.
type Worker struct {
	source   Source
	limiter  *Limiter
	dedup    *DedupSet
	sink     *Sink
	stop     *StopController
	enricher Enricher
	cfg      WorkerConfig
	logger   *zap.Logger
}

// NewWorker constructs a Worker sharing the given run-wide state.
func NewWorker(
	source Source,
	limiter *Limiter,
	dedup *DedupSet,
	sink *Sink,
	stop *StopController,
	enricher Enricher,
	cfg WorkerConfig,
	logger *zap.Logger,
) *Worker {
	if len(cfg.Streams) == 0 {
		cfg.Streams = []string{"hot", "top", "new", "rising"}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10000
	}
	if cfg.CourtesyEvery <= 0 {
		cfg.CourtesyEvery = 100
	}
	if cfg.ValidateAttempts <= 0 {
		cfg.ValidateAttempts = 3
	}
	if cfg.ValidateBackoff <= 0 {
		cfg.ValidateBackoff = 500 * time.Millisecond
	}
	return &Worker{
		source:   source,
		limiter:  limiter,
		dedup:    dedup,
		sink:     sink,
		stop:     stop,
		enricher: enricher,
		cfg:      cfg,
		logger:   logger,
	}
}

// Validate performs one lightweight fetch against target, retrying
// transient failures with exponential backoff up to the configured attempt
// cap. Invalid and unexpected errors are returned without retry.
func (w *Worker) Validate(ctx context.Context, target string) error {
	backoff := w.cfg.ValidateBackoff
	var lastErr error
	for attempt := 1; attempt <= w.cfg.ValidateAttempts; attempt++ {
		if attempt > 1 {
			sleepCtx(ctx, backoff)
			backoff *= 2
		}
		if err := w.limiter.Acquire(ctx); err != nil {
			return err
		}
		err := w.source.Validate(ctx, target)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
		w.logger.Warn("target validation failed",
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return lastErr
}

// CrawlTarget crawls a single target and returns the bytes it contributed
// to the output. An inaccessible target contributes 0 and is never an
// error for the run.
func (w *Worker) CrawlTarget(ctx context.Context, target string) (int64, error) {
	if err := w.Validate(ctx, target); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		w.logger.Warn("skipping target", zap.String("target", target), zap.Error(err))
		return 0, nil
	}

	batch := NewBatch(w.sink, target, w.cfg.BatchSize)
	var total int64
	processed := 0

	for _, stream := range w.cfg.Streams {
		if w.stop.ShouldStop() || ctx.Err() != nil {
			break
		}
		w.logger.Info("crawling stream",
			zap.String("target", target),
			zap.String("stream", stream),
		)
		n, err := w.crawlStream(ctx, target, stream, batch, &processed)
		total += n
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.logger.Warn("abandoning stream",
				zap.String("target", target),
				zap.String("stream", stream),
				zap.Error(err),
			)
			continue
		}
		if w.stop.ShouldStop() {
			break
		}
		sleepCtx(ctx, w.cfg.StreamPause)
	}

	n, err := w.flushBatch(target, batch)
	total += n
	if err != nil {
		w.logger.Error("final flush failed", zap.String("target", target), zap.Error(err))
		return total, err
	}
	return total, nil
}

// crawlStream pages through one stream of target, feeding batch. Any fetch
// failure abandons the stream only; bytes flushed so far are returned.
func (w *Worker) crawlStream(
	ctx context.Context,
	target, stream string,
	batch *Batch,
	processed *int,
) (int64, error) {
	var total int64
	after := ""
	for {
		if w.stop.ShouldStop() {
			return total, nil
		}
		if err := w.limiter.Acquire(ctx); err != nil {
			return total, err
		}
		page, err := w.source.Listing(ctx, target, stream, after)
		if err != nil {
			return total, err
		}
		for _, post := range page.Posts {
			if w.stop.ShouldStop() {
				return total, nil
			}
			*processed++
			if *processed%w.cfg.CourtesyEvery == 0 {
				w.logger.Info("progress",
					zap.String("target", target),
					zap.Int("processed", *processed),
				)
				sleepCtx(ctx, w.cfg.CourtesyPause)
			}

			if !MatchesAny(post.Title+" "+post.SelfText, w.cfg.Keywords) {
				continue
			}
			if !w.dedup.MarkSeen(post.ID) {
				continue
			}
			if w.enricher != nil {
				post.LinkedTitles = w.enricher.Titles(ctx, post.SelfText)
			}
			batch.Append(post)
			metrics.ObserveItem(target, "post")

			w.collectComments(ctx, target, post.ID, batch)

			if batch.Full() {
				n, err := w.flushBatch(target, batch)
				total += n
				if err != nil {
					return total, err
				}
				if w.stop.ShouldStop() {
					return total, nil
				}
			}
		}
		if page.After == "" {
			return total, nil
		}
		after = page.After
	}
}

// collectComments fetches the comment tree for one post and appends every
// unseen comment, expanding pending "load more" batches up to the
// configured cap. Comment failures skip the post's comments only.
func (w *Worker) collectComments(ctx context.Context, target, postID string, batch *Batch) {
	if err := w.limiter.Acquire(ctx); err != nil {
		return
	}
	page, err := w.source.Comments(ctx, target, postID)
	if err != nil {
		w.logger.Warn("skipping comments",
			zap.String("target", target),
			zap.String("post", postID),
			zap.Error(err),
		)
		return
	}
	w.appendComments(target, page.Comments, batch)

	more := page.More
	if w.cfg.MoreCommentPages >= 0 && len(more) > w.cfg.MoreCommentPages {
		more = more[:w.cfg.MoreCommentPages]
	}
	for _, ids := range more {
		if w.stop.ShouldStop() {
			return
		}
		if err := w.limiter.Acquire(ctx); err != nil {
			return
		}
		extra, err := w.source.MoreComments(ctx, target, postID, ids)
		if err != nil {
			w.logger.Warn("skipping more comments",
				zap.String("target", target),
				zap.String("post", postID),
				zap.Error(err),
			)
			return
		}
		w.appendComments(target, extra, batch)
	}
}

func (w *Worker) appendComments(target string, comments []Comment, batch *Batch) {
	for _, c := range comments {
		if !w.dedup.MarkSeen(c.ID) {
			continue
		}
		batch.Append(c)
		metrics.ObserveItem(target, "comment")
	}
}

// flushBatch flushes the batch and records the byte count with the stop
// controller once the unit is durable.
func (w *Worker) flushBatch(target string, batch *Batch) (int64, error) {
	n, err := batch.Flush()
	if err != nil || n == 0 {
		return n, err
	}
	w.stop.RecordBytes(n)
	metrics.ObserveFlush(target, n)
	return n, nil
}

// MatchesAny reports whether content contains any of the keywords as a
// case-insensitive substring.
func MatchesAny(content string, keywords []string) bool {
	lowered := strings.ToLower(content)
	for _, kw := range keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
