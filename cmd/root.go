package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"miniblob/pkg/config"
	"miniblob/pkg/helper/log"

	"github.com/spf13/cobra"
)

var (
	// Configuration
	cfg *config.Config

	// Root command
	rootCmd = &cobra.Command{
		Use:   "miniblob",
		Short: "miniblob is a delta-compressed, content-addressed blob version-control daemon",
		Long:  `A minimal network-accessible version-control service for binary blobs, with delta-compressed history and branch-aware storage.`,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// init initializes the command structure
func init() {
	cfg = config.NewDefaultConfig()

	cfg.AddFlagsToCommand(rootCmd)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newHealthCheckCmd())
	rootCmd.AddCommand(newServeCmd())
}

// setupCommand creates a logger and a cancellable context that is canceled
// on SIGINT/SIGTERM.
func setupCommand(ctx context.Context) (log.Logger, context.Context, context.CancelFunc) {
	logger := createLogger(cfg.LogLevel)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			logger.Info("received termination signal, shutting down")
			cancel()
		case <-ctx.Done():
			return
		}
	}()

	return logger, ctx, cancel
}

// createLogger creates a new logger at the given level.
func createLogger(level string) log.Logger {
	return log.NewLoggerWithLevel(log.ParseLevel(level))
}
