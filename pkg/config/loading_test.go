package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantError bool
	}{
		{
			name: "valid config",
			content: `
loglevel: debug
server:
  port: 9090
  metricsport: 9091
`,
			wantError: false,
		},
		{
			name:      "empty file",
			content:   "",
			wantError: false,
		},
		{
			name: "invalid yaml",
			content: `
invalid: [yaml
  missing: bracket
`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")

			if err := os.WriteFile(configPath, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			config, err := LoadFromFile(configPath)
			if (err != nil) != tt.wantError {
				t.Errorf("LoadFromFile() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError && config == nil {
				t.Error("expected config to be non-nil")
			}
		})
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	config, err := LoadFromFile("")
	if err != nil {
		t.Fatalf(`LoadFromFile("") failed: %v`, err)
	}
	if config == nil {
		t.Error("expected default config for empty path")
	}
}

func TestLoadFromEnv(t *testing.T) {
	envVars := []string{
		"MINIBLOB_LOG_LEVEL",
		"MINIBLOB_REPO_PATH",
		"MINIBLOB_JOURNAL_DIRECTORY",
		"MINIBLOB_JOURNAL_SNAPSHOT_SCHEDULE",
		"MINIBLOB_SERVER_PORT",
		"MINIBLOB_SERVER_METRICS_PORT",
		"MINIBLOB_SERVE_WORKERS",
		"MINIBLOB_DELTA_MIN_MATCH",
		"MINIBLOB_DELTA_COMPRESS",
	}

	original := make(map[string]string)
	for _, env := range envVars {
		original[env] = os.Getenv(env)
	}
	defer func() {
		for _, env := range envVars {
			if val := original[env]; val != "" {
				os.Setenv(env, val)
			} else {
				os.Unsetenv(env)
			}
		}
	}()

	os.Setenv("MINIBLOB_LOG_LEVEL", "debug")
	os.Setenv("MINIBLOB_REPO_PATH", "/data/repo")
	os.Setenv("MINIBLOB_SERVER_PORT", "9090")
	os.Setenv("MINIBLOB_SERVE_WORKERS", "10")
	os.Setenv("MINIBLOB_DELTA_MIN_MATCH", "16")
	os.Setenv("MINIBLOB_DELTA_COMPRESS", "true")

	config := NewDefaultConfig()
	if err := loadFromEnv(config); err != nil {
		t.Fatalf("loadFromEnv() failed: %v", err)
	}

	if config.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %q", config.LogLevel)
	}
	if config.Repo.Path != "/data/repo" {
		t.Errorf("expected repo path '/data/repo', got %q", config.Repo.Path)
	}
	if config.Server.Port != 9090 {
		t.Errorf("expected server port 9090, got %d", config.Server.Port)
	}
	if config.Workers.ServeWorkers != 10 {
		t.Errorf("expected serve workers 10, got %d", config.Workers.ServeWorkers)
	}
	if config.Delta.MinMatchLength != 16 {
		t.Errorf("expected delta min match 16, got %d", config.Delta.MinMatchLength)
	}
	if !config.Delta.Compress {
		t.Error("expected delta compress to be true")
	}
}

func TestLoadFromEnvIgnoresEmptyValues(t *testing.T) {
	t.Setenv("MINIBLOB_LOG_LEVEL", "")

	config := NewDefaultConfig()
	if err := loadFromEnv(config); err != nil {
		t.Fatalf("loadFromEnv() failed: %v", err)
	}
	if config.LogLevel != "info" {
		t.Errorf("expected log level to remain the default, got %q", config.LogLevel)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	config := NewDefaultConfig()
	config.LogLevel = "warn"
	config.Server.Port = 9999

	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "config.yaml")

	if err := config.SaveToFile(filePath); err != nil {
		t.Fatalf("SaveToFile() failed: %v", err)
	}

	loaded, err := LoadFromFile(filePath)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}
	if loaded.LogLevel != "warn" {
		t.Errorf("expected log level 'warn', got %q", loaded.LogLevel)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("expected server port 9999, got %d", loaded.Server.Port)
	}
}
