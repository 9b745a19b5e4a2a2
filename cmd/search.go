package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mfeller/redsift/internal/index"
	"github.com/mfeller/redsift/internal/search"
)

// newSearchCmd creates the 'search' subcommand, which serves queries over
// an existing index.
func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <index-dir>",
		Short: "Serve full-text queries over a built index",
		Long: `Opens the index under the given directory and serves an HTML search
form plus the operational endpoints until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: runSearchCommand,
	}
}

func runSearchCommand(cmd *cobra.Command, args []string) error {
	idx, err := index.Open(args[0], logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := idx.Close(); cerr != nil {
			logger.Warn("failed to close index", zap.Error(cerr))
		}
	}()

	srv, err := search.NewServer(idx, cfg.Search.TopK, logger)
	if err != nil {
		return fmt.Errorf("build search server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Search.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("search server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("search server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown search server: %w", err)
	}
	logger.Info("search server stopped")
	return nil
}
