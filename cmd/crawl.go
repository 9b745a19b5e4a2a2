package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mfeller/redsift/internal/crawl"
	"github.com/mfeller/redsift/internal/enrich"
	"github.com/mfeller/redsift/internal/feed"
	"github.com/mfeller/redsift/internal/inputs"
)

// newCrawlCmd creates the 'crawl' subcommand. It wires the feed client,
// dedup set, batch sink, and stop controller into a coordinator and runs
// it until the byte budget is reached or every target is exhausted.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <targets-file> <keywords-file> <output-dir> <target-mb>",
		Short: "Crawl targets for keyword-matching content",
		Long: `Reads the targets and keywords files, then crawls every valid target
concurrently. Posts whose title or body contains any keyword are written,
along with their comments, as newline-delimited JSON units under the
output directory. The crawl stops once roughly target-mb megabytes have
been written.`,
		Args: cobra.ExactArgs(4),
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	targetsFile, keywordsFile, outputDir := args[0], args[1], args[2]
	targetMB, err := strconv.ParseFloat(args[3], 64)
	if err != nil || targetMB <= 0 {
		return fmt.Errorf("target-mb must be a positive number, got %q", args[3])
	}
	budget := int64(targetMB * 1024 * 1024)

	targets, err := inputs.LoadTargets(targetsFile)
	if err != nil {
		return err
	}
	keywords, err := inputs.LoadKeywords(keywordsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dedup := crawl.NewDedupSet()
	seeded, err := dedup.Seed(outputDir, logger)
	if err != nil {
		return fmt.Errorf("seed dedup set: %w", err)
	}

	sink, err := crawl.NewSink(outputDir, logger)
	if err != nil {
		return err
	}

	source := feed.New(cfg.Feed.BaseURL, cfg.Feed.UserAgent, &http.Client{
		Timeout: cfg.Feed.Timeout(),
	})

	var enricher crawl.Enricher
	if cfg.Crawler.EnrichTitles {
		enricher = enrich.New(enrich.Config{
			UserAgent: cfg.Feed.UserAgent,
			Timeout:   cfg.Feed.Timeout(),
		}, logger)
	}

	worker := crawl.NewWorker(
		source,
		crawl.NewLimiter(cfg.Crawler.RequestsPerMinute),
		dedup,
		sink,
		crawl.NewStopController(budget),
		enricher,
		crawl.WorkerConfig{
			Streams:          cfg.Crawler.Streams,
			Keywords:         keywords,
			BatchSize:        cfg.Crawler.BatchSize,
			CourtesyEvery:    cfg.Crawler.CourtesyEvery,
			CourtesyPause:    cfg.Crawler.CourtesyPause(),
			StreamPause:      cfg.Crawler.StreamPause(),
			ValidateAttempts: cfg.Crawler.ValidateAttempts,
			ValidateBackoff:  cfg.Crawler.ValidateBackoff(),
			MoreCommentPages: cfg.Crawler.MoreCommentPages,
		},
		logger,
	)

	coordinator := crawl.NewCoordinator(worker, crawl.CoordinatorConfig{
		MaxWorkers: cfg.Crawler.MaxWorkers,
	}, logger)

	logger.Info("starting crawl",
		zap.Int("targets", len(targets)),
		zap.Int("keywords", len(keywords)),
		zap.Int("seeded_ids", seeded),
		zap.Int64("budget_bytes", budget),
		zap.String("output_dir", outputDir))

	summary, err := coordinator.Run(ctx, targets)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("crawl run: %w", err)
	}

	logger.Info("crawl finished",
		zap.String("run_id", summary.RunID),
		zap.Int("targets_requested", summary.TargetsRequested),
		zap.Int("targets_valid", summary.TargetsValid),
		zap.Int64("total_bytes", summary.TotalBytes),
		zap.Duration("elapsed", summary.Elapsed))
	return nil
}
