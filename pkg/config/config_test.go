package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.LogLevel != "info" {
		t.Errorf("expected log level 'info', got %q", config.LogLevel)
	}
	if config.Repo.Path != "${HOME}/.miniblob/repo" {
		t.Errorf("unexpected repo path %q", config.Repo.Path)
	}
	if config.Server.Port != 8080 {
		t.Errorf("expected server port 8080, got %d", config.Server.Port)
	}
	if config.Server.MetricsPort != 8081 {
		t.Errorf("expected metrics port 8081, got %d", config.Server.MetricsPort)
	}
	if config.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected read timeout 30s, got %v", config.Server.ReadTimeout)
	}
	if config.Workers.AutoDetect != true {
		t.Error("expected workers auto-detect to be true")
	}
	if config.Journal.SnapshotSchedule != "0 */6 * * *" {
		t.Errorf("unexpected snapshot schedule %q", config.Journal.SnapshotSchedule)
	}
	if config.Delta.MinMatchLength != 8 {
		t.Errorf("expected delta min match 8, got %d", config.Delta.MinMatchLength)
	}
	if config.Delta.Compress != false {
		t.Error("expected delta compress to default false")
	}
}

func TestExpandHomeDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"dollar home", "${HOME}/repo", home + "/repo"},
		{"tilde", "~/repo", home + "/repo"},
		{"absolute", "/abs/path", "/abs/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandHomeDir(tt.in); got != tt.want {
				t.Errorf("ExpandHomeDir(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGetOptimalWorkerCount(t *testing.T) {
	count := GetOptimalWorkerCount()
	if count < 2 {
		t.Errorf("expected at least 2 workers, got %d", count)
	}
}

func TestAddFlagsToCommand(t *testing.T) {
	config := NewDefaultConfig()
	cmd := &cobra.Command{Use: "test"}
	config.AddFlagsToCommand(cmd)

	for _, name := range []string{
		"log-level", "repo", "serve-workers", "auto-detect-workers",
		"journal-snapshot-schedule", "delta-min-match", "delta-compress",
	} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q to be registered", name)
		}
	}
}

func TestAddServerFlags(t *testing.T) {
	config := NewDefaultConfig()
	cmd := &cobra.Command{Use: "serve"}
	config.AddServerFlags(cmd)

	for _, name := range []string{
		"port", "metrics-port", "read-timeout", "write-timeout",
		"shutdown-timeout", "max-conn-rate", "rate-window",
	} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag %q to be registered", name)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modifyFn  func(*Config)
		wantError bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"invalid log level", func(c *Config) { c.LogLevel = "invalid" }, true},
		{"empty repo path", func(c *Config) { c.Repo.Path = "" }, true},
		{"negative serve workers", func(c *Config) { c.Workers.ServeWorkers = -1 }, true},
		{"negative server port", func(c *Config) { c.Server.Port = -1 }, true},
		{"server port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"metrics port too high", func(c *Config) { c.Server.MetricsPort = 70000 }, true},
		{"zero max conn rate", func(c *Config) { c.Server.MaxConnRate = 0 }, true},
		{"zero rate window", func(c *Config) { c.Server.RateWindow = 0 }, true},
		{"zero delta min match", func(c *Config) { c.Delta.MinMatchLength = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.modifyFn(config)

			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestSaveToFile(t *testing.T) {
	config := NewDefaultConfig()

	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "config.yaml")

	if err := config.SaveToFile(filePath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}
	if len(data) == 0 {
		t.Error("saved config file is empty")
	}
}

func TestSaveToFileCreatesDirectory(t *testing.T) {
	config := NewDefaultConfig()

	tmpDir := t.TempDir()
	nestedPath := filepath.Join(tmpDir, "nested", "dir", "config.yaml")

	if err := config.SaveToFile(nestedPath); err != nil {
		t.Fatalf("failed to save config to nested path: %v", err)
	}
	if _, err := os.Stat(nestedPath); os.IsNotExist(err) {
		t.Error("config file was not created in nested directory")
	}
}
