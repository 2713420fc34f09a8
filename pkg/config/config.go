// Package config holds the daemon's configuration surface: defaults, cobra
// flag wiring, and file/environment overrides.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Config represents the full daemon configuration.
type Config struct {
	LogLevel string

	Repo    RepoConfig
	Server  ServerConfig
	Workers WorkerConfig
	Journal JournalConfig
	Delta   DeltaConfig
}

// RepoConfig locates the repository's on-disk root.
type RepoConfig struct {
	Path string
}

// ServerConfig controls the TCP listener and its admission policy.
type ServerConfig struct {
	Port            int
	MetricsPort     int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxConnRate     int
	RateWindow      time.Duration
}

// WorkerConfig sizes the connection-handling worker pool.
type WorkerConfig struct {
	ServeWorkers int
	AutoDetect   bool
}

// JournalConfig controls index persistence for the repository engine.
type JournalConfig struct {
	SnapshotSchedule string
	Directory        string
}

// DeltaConfig controls the delta codec's encoder behavior.
type DeltaConfig struct {
	MinMatchLength int
	Compress       bool
}

// NewDefaultConfig returns a Config populated with the daemon's defaults.
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Repo: RepoConfig{
			Path: "${HOME}/.miniblob/repo",
		},
		Server: ServerConfig{
			Port:            8080,
			MetricsPort:     8081,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxConnRate:     100,
			RateWindow:      time.Second,
		},
		Workers: WorkerConfig{
			ServeWorkers: 0,
			AutoDetect:   true,
		},
		Journal: JournalConfig{
			SnapshotSchedule: "0 */6 * * *",
			Directory:        "${HOME}/.miniblob/repo/journal",
		},
		Delta: DeltaConfig{
			MinMatchLength: 8,
			Compress:       false,
		},
	}
}

// AddFlagsToCommand adds global configuration flags to a cobra command.
func (c *Config) AddFlagsToCommand(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error, fatal)")
	cmd.PersistentFlags().StringVar(&c.Repo.Path, "repo", c.Repo.Path, "Repository root path")

	cmd.PersistentFlags().IntVar(&c.Workers.ServeWorkers, "serve-workers", c.Workers.ServeWorkers, "Number of concurrent connection workers (0 = auto-detect)")
	cmd.PersistentFlags().BoolVar(&c.Workers.AutoDetect, "auto-detect-workers", c.Workers.AutoDetect, "Auto-detect optimal worker count based on system resources")

	cmd.PersistentFlags().StringVar(&c.Journal.SnapshotSchedule, "journal-snapshot-schedule", c.Journal.SnapshotSchedule, "Cron schedule for journal snapshot compaction")
	cmd.PersistentFlags().IntVar(&c.Delta.MinMatchLength, "delta-min-match", c.Delta.MinMatchLength, "Minimum match length for the delta encoder")
	cmd.PersistentFlags().BoolVar(&c.Delta.Compress, "delta-compress", c.Delta.Compress, "Delta compression setting (repository deltas are stored uncompressed whatever its value)")
}

// AddServerFlags adds server-specific flags to a command.
func (c *Config) AddServerFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&c.Server.Port, "port", c.Server.Port, "Server listening port")
	cmd.Flags().IntVar(&c.Server.MetricsPort, "metrics-port", c.Server.MetricsPort, "Metrics HTTP endpoint port")
	cmd.Flags().DurationVar(&c.Server.ReadTimeout, "read-timeout", c.Server.ReadTimeout, "Connection read timeout")
	cmd.Flags().DurationVar(&c.Server.WriteTimeout, "write-timeout", c.Server.WriteTimeout, "Connection write timeout")
	cmd.Flags().DurationVar(&c.Server.ShutdownTimeout, "shutdown-timeout", c.Server.ShutdownTimeout, "Graceful shutdown timeout")
	cmd.Flags().IntVar(&c.Server.MaxConnRate, "max-conn-rate", c.Server.MaxConnRate, "Maximum accepted connections per client per rate window")
	cmd.Flags().DurationVar(&c.Server.RateWindow, "rate-window", c.Server.RateWindow, "Rate limiting window")
}

// ExpandHomeDir expands a leading ~ or ${HOME} in path to the user's home
// directory.
func ExpandHomeDir(path string) string {
	if path == "" {
		return path
	}

	if strings.Contains(path, "${HOME}") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "${HOME}", homeDir)
		}
	}

	if strings.HasPrefix(path, "~") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return path
}

// GetOptimalWorkerCount picks a worker count from the available CPUs.
func GetOptimalWorkerCount() int {
	numCPU := runtime.NumCPU()

	if numCPU <= 2 {
		return 2
	} else if numCPU <= 4 {
		return numCPU
	}
	return numCPU - 1
}
