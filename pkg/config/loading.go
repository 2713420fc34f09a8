package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"miniblob/pkg/helper/errors"
)

// LoadFromFile loads configuration from a YAML file, falling back to
// defaults when configPath is empty, then applies environment overrides.
func LoadFromFile(configPath string) (*Config, error) {
	config := NewDefaultConfig()

	if configPath != "" {
		expandedPath := ExpandHomeDir(configPath)

		if _, err := os.Stat(expandedPath); os.IsNotExist(err) {
			return nil, errors.NotFoundf("configuration file not found: %s", expandedPath)
		}

		data, err := os.ReadFile(expandedPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read configuration file")
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.Wrap(err, "failed to parse configuration file")
		}
	}

	if err := loadFromEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadFromEnv applies MINIBLOB_* environment variable overrides.
func loadFromEnv(config *Config) error {
	envVars := map[string]*string{
		"MINIBLOB_LOG_LEVEL":                 &config.LogLevel,
		"MINIBLOB_REPO_PATH":                 &config.Repo.Path,
		"MINIBLOB_JOURNAL_DIRECTORY":         &config.Journal.Directory,
		"MINIBLOB_JOURNAL_SNAPSHOT_SCHEDULE": &config.Journal.SnapshotSchedule,
	}

	for env, field := range envVars {
		if value, exists := os.LookupEnv(env); exists && value != "" {
			*field = value
		}
	}

	if value, exists := os.LookupEnv("MINIBLOB_SERVER_PORT"); exists {
		if n, err := strconv.Atoi(value); err == nil {
			config.Server.Port = n
		}
	}
	if value, exists := os.LookupEnv("MINIBLOB_SERVER_METRICS_PORT"); exists {
		if n, err := strconv.Atoi(value); err == nil {
			config.Server.MetricsPort = n
		}
	}
	if value, exists := os.LookupEnv("MINIBLOB_SERVE_WORKERS"); exists {
		if n, err := strconv.Atoi(value); err == nil {
			config.Workers.ServeWorkers = n
		}
	}
	if value, exists := os.LookupEnv("MINIBLOB_DELTA_MIN_MATCH"); exists {
		if n, err := strconv.Atoi(value); err == nil {
			config.Delta.MinMatchLength = n
		}
	}
	if value, exists := os.LookupEnv("MINIBLOB_DELTA_COMPRESS"); exists {
		config.Delta.Compress = strings.ToLower(value) == "true" || value == "1"
	}

	return nil
}

// SaveToFile writes c as YAML to filePath, creating parent directories as
// needed.
func (c *Config) SaveToFile(filePath string) error {
	expandedPath := ExpandHomeDir(filePath)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}

	file, err := os.Create(expandedPath)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return errors.Wrap(err, "failed to encode configuration")
	}

	return nil
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	logLevel := strings.ToLower(c.LogLevel)
	if logLevel != "debug" && logLevel != "info" && logLevel != "warn" && logLevel != "error" && logLevel != "fatal" {
		return errors.InvalidInputf("invalid log level: %s (must be one of: debug, info, warn, error, fatal)", c.LogLevel)
	}

	if c.Repo.Path == "" {
		return errors.InvalidInputf("repository path must not be empty")
	}

	if c.Workers.ServeWorkers < 0 {
		return errors.InvalidInputf("serve workers must be non-negative")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.InvalidInputf("server port must be between 0 and 65535")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return errors.InvalidInputf("metrics port must be between 0 and 65535")
	}
	if c.Server.MaxConnRate <= 0 {
		return errors.InvalidInputf("max connection rate must be positive")
	}
	if c.Server.RateWindow <= 0 {
		return errors.InvalidInputf("rate window must be positive")
	}

	if c.Delta.MinMatchLength <= 0 {
		return errors.InvalidInputf("delta minimum match length must be positive")
	}

	return nil
}
