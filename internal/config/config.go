// Copyright 2025 Rowboat Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads rowboat configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	rowboaterrors "github.com/rowboatlabs/rowboat/pkg/errors"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Backend types.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config represents the complete rowboat configuration.
type Config struct {
	Log           LogConfig           `yaml:"log"`
	Editor        EditorConfig        `yaml:"editor"`
	Backend       BackendConfig       `yaml:"backend"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	// Environment: LOG_LEVEL
	// Default: info
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	// Default: text
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	AddSource bool `yaml:"add_source"`
}

// EditorConfig configures the workflow editor store.
type EditorConfig struct {
	// HistoryLimit bounds the undo history.
	// Environment: ROWBOAT_HISTORY_LIMIT
	// Default: 100
	HistoryLimit int `yaml:"history_limit,omitempty"`

	// SaveDebounce is the quiet period before an automatic save.
	// Environment: ROWBOAT_SAVE_DEBOUNCE
	// Default: 1s
	SaveDebounce time.Duration `yaml:"save_debounce,omitempty"`

	// DefaultModel is assigned to new agents without a model.
	// Environment: ROWBOAT_DEFAULT_MODEL
	// Default: gpt-4.1
	DefaultModel string `yaml:"default_model,omitempty"`

	// PublishedID marks a document as live. Live documents are read-only.
	PublishedID string `yaml:"published_id,omitempty"`
}

// BackendConfig configures document storage.
type BackendConfig struct {
	// Type is the backend type: "memory", "sqlite" or "file".
	// Environment: ROWBOAT_BACKEND
	// Default: file
	Type string `yaml:"type,omitempty"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite,omitempty"`

	// File contains file backend configuration.
	File FileConfig `yaml:"file,omitempty"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file.
	// Environment: ROWBOAT_SQLITE_PATH
	// Default: <data dir>/rowboat.db
	Path string `yaml:"path,omitempty"`

	// WAL enables write-ahead logging.
	// Default: true
	WAL *bool `yaml:"wal,omitempty"`
}

// FileConfig configures the file backend.
type FileConfig struct {
	// Dir holds one YAML file per workflow document.
	// Environment: ROWBOAT_WORKFLOWS_DIR
	// Default: <data dir>/workflows
	Dir string `yaml:"dir,omitempty"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	// MetricsAddr serves Prometheus metrics when set (e.g., ":9464").
	// Environment: ROWBOAT_METRICS_ADDR
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// Tracing configures OpenTelemetry tracing.
	Tracing TracingConfig `yaml:"tracing,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled controls whether spans are recorded.
	// Environment: ROWBOAT_TRACING
	Enabled bool `yaml:"enabled"`

	// Exporter is "stdout" or "none".
	// Default: stdout
	Exporter string `yaml:"exporter,omitempty"`

	// ServiceName identifies this process in traces.
	// Default: rowboat
	ServiceName string `yaml:"service_name,omitempty"`
}

// WALEnabled reports whether SQLite write-ahead logging is on.
func (c SQLiteConfig) WALEnabled() bool {
	return c.WAL == nil || *c.WAL
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	dataDir := defaultDataDir()
	wal := true

	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Editor: EditorConfig{
			HistoryLimit: 100,
			SaveDebounce: time.Second,
			DefaultModel: "gpt-4.1",
		},
		Backend: BackendConfig{
			Type: BackendFile,
			SQLite: SQLiteConfig{
				Path: filepath.Join(dataDir, "rowboat.db"),
				WAL:  &wal,
			},
			File: FileConfig{
				Dir: filepath.Join(dataDir, "workflows"),
			},
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Exporter:    "stdout",
				ServiceName: "rowboat",
			},
		},
	}
}

// Load loads configuration from environment variables and optionally from a YAML file.
// Environment variables take precedence over file-based configuration.
// If configPath is empty, only environment variables are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &rowboaterrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &rowboaterrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	if c.Editor.HistoryLimit == 0 {
		c.Editor.HistoryLimit = defaults.Editor.HistoryLimit
	}
	if c.Editor.SaveDebounce == 0 {
		c.Editor.SaveDebounce = defaults.Editor.SaveDebounce
	}
	if c.Editor.DefaultModel == "" {
		c.Editor.DefaultModel = defaults.Editor.DefaultModel
	}

	if c.Backend.Type == "" {
		c.Backend.Type = defaults.Backend.Type
	}
	if c.Backend.SQLite.Path == "" {
		c.Backend.SQLite.Path = defaults.Backend.SQLite.Path
	}
	if c.Backend.File.Dir == "" {
		c.Backend.File.Dir = defaults.Backend.File.Dir
	}

	if c.Observability.Tracing.Exporter == "" {
		c.Observability.Tracing.Exporter = defaults.Observability.Tracing.Exporter
	}
	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = defaults.Observability.Tracing.ServiceName
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	path = expandHome(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("ROWBOAT_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}

	if val := os.Getenv("ROWBOAT_HISTORY_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Editor.HistoryLimit = n
		}
	}
	if val := os.Getenv("ROWBOAT_SAVE_DEBOUNCE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Editor.SaveDebounce = d
		}
	}
	if val := os.Getenv("ROWBOAT_DEFAULT_MODEL"); val != "" {
		c.Editor.DefaultModel = val
	}

	if val := os.Getenv("ROWBOAT_BACKEND"); val != "" {
		c.Backend.Type = strings.ToLower(val)
	}
	if val := os.Getenv("ROWBOAT_SQLITE_PATH"); val != "" {
		c.Backend.SQLite.Path = expandHome(val)
	}
	if val := os.Getenv("ROWBOAT_WORKFLOWS_DIR"); val != "" {
		c.Backend.File.Dir = expandHome(val)
	}

	if val := os.Getenv("ROWBOAT_METRICS_ADDR"); val != "" {
		c.Observability.MetricsAddr = val
	}
	if val := os.Getenv("ROWBOAT_TRACING"); val != "" {
		c.Observability.Tracing.Enabled = val == "1" || strings.ToLower(val) == "true"
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Editor.HistoryLimit < 1 {
		errs = append(errs, fmt.Sprintf("editor.history_limit must be at least 1, got %d", c.Editor.HistoryLimit))
	}
	if c.Editor.SaveDebounce < 0 {
		errs = append(errs, fmt.Sprintf("editor.save_debounce must not be negative, got %v", c.Editor.SaveDebounce))
	}

	switch c.Backend.Type {
	case BackendMemory:
	case BackendSQLite:
		if c.Backend.SQLite.Path == "" {
			errs = append(errs, "backend.sqlite.path is required for the sqlite backend")
		}
	case BackendFile:
		if c.Backend.File.Dir == "" {
			errs = append(errs, "backend.file.dir is required for the file backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("backend.type must be one of [memory, sqlite, file], got %q", c.Backend.Type))
	}

	switch c.Observability.Tracing.Exporter {
	case "stdout", "none":
	default:
		errs = append(errs, fmt.Sprintf("observability.tracing.exporter must be one of [stdout, none], got %q", c.Observability.Tracing.Exporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "rowboat")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "rowboat-data")
	}

	return filepath.Join(homeDir, ".rowboat", "data")
}
