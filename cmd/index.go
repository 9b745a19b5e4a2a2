package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mfeller/redsift/internal/index"
)

// newIndexCmd creates the 'index' subcommand, which rebuilds the full-text
// index from the crawl output.
func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <output-dir> <index-dir>",
		Short: "Build the full-text index from crawl output",
		Long: `Scans every output unit under the output directory and rebuilds the
full-text index from scratch. Malformed records are logged and skipped.`,
		Args: cobra.ExactArgs(2),
		RunE: runIndexCommand,
	}
}

func runIndexCommand(cmd *cobra.Command, args []string) error {
	outputDir, indexDir := args[0], args[1]

	idx, err := index.Open(indexDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := idx.Close(); cerr != nil {
			logger.Warn("failed to close index", zap.Error(cerr))
		}
	}()

	stats, err := idx.IndexDir(cmd.Context(), outputDir)
	if err != nil {
		return fmt.Errorf("index %s: %w", outputDir, err)
	}

	logger.Info("index rebuilt",
		zap.String("index_dir", indexDir),
		zap.Int("files", stats.Files),
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped))
	return nil
}
