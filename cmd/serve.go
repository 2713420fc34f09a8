package cmd

import (
	"context"
	"fmt"
	"os"

	"miniblob/pkg/config"
	"miniblob/pkg/helper/banner"
	"miniblob/pkg/repo"
	"miniblob/pkg/server"

	"github.com/spf13/cobra"
)

// newServeCmd creates a new serve command
func newServeCmd() *cobra.Command {
	var configFile string
	var noBanner bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the miniblob daemon",
		Long:  `Starts a TCP server that accepts SAVE_FILE, GET_LATEST, GET_VERSION, GET_BRANCHES, and GET_HISTORY requests against a repository.`,
		Run: func(cmd *cobra.Command, args []string) {
			if !noBanner {
				banner.Version = version
				banner.GitCommit = gitCommit
				banner.BuildTime = buildTime
				banner.Print()
			}

			logger, ctx, cancel := setupCommand(cmd.Context())
			defer cancel()

			if configFile != "" {
				logger.WithField("file", configFile).Info("loading configuration from file")

				loadedCfg, err := config.LoadFromFile(configFile)
				if err != nil {
					logger.Error("failed to load configuration", err)
					fmt.Printf("Error loading configuration: %s\n", err)
					os.Exit(1)
				}

				cfg = loadedCfg
			}

			repoPath := config.ExpandHomeDir(cfg.Repo.Path)
			r, err := repo.New(repoPath, repo.Options{
				MinMatchLength:   cfg.Delta.MinMatchLength,
				SnapshotSchedule: cfg.Journal.SnapshotSchedule,
				Logger:           logger,
			})
			if err != nil {
				logger.Error("failed to open repository", err)
				fmt.Printf("Error opening repository: %s\n", err)
				os.Exit(1)
			}
			defer r.Close()

			metrics := server.NewMetricsServer(cfg.Server.MetricsPort, logger)
			metrics.Start()
			defer metrics.Stop(context.Background())

			srv := server.New(cfg, r, logger)

			go func() {
				<-ctx.Done()
				if err := srv.Stop(); err != nil {
					logger.Error("error during shutdown", err)
				}
			}()

			logger.WithField("port", cfg.Server.Port).
				WithField("repo", repoPath).
				WithField("workers", cfg.Workers.ServeWorkers).
				Info("starting miniblob server")

			if err := srv.Start(); err != nil {
				logger.Error("server failed", err)
				fmt.Printf("Server error: %s\n", err)
				os.Exit(1)
			}
		},
	}

	cfg.AddServerFlags(cmd)

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "Disable ASCII banner on startup")

	return cmd
}
