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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	rowboaterrors "github.com/rowboatlabs/rowboat/pkg/errors"
)

// clearEnv unsets every variable Load reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOG_LEVEL", "ROWBOAT_LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE",
		"ROWBOAT_HISTORY_LIMIT", "ROWBOAT_SAVE_DEBOUNCE", "ROWBOAT_DEFAULT_MODEL",
		"ROWBOAT_BACKEND", "ROWBOAT_SQLITE_PATH", "ROWBOAT_WORKFLOWS_DIR",
		"ROWBOAT_METRICS_ADDR", "ROWBOAT_TRACING",
	} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %q", cfg.Log.Level)
	}
	if cfg.Editor.HistoryLimit != 100 {
		t.Errorf("expected history limit 100, got %d", cfg.Editor.HistoryLimit)
	}
	if cfg.Editor.SaveDebounce != time.Second {
		t.Errorf("expected save debounce 1s, got %v", cfg.Editor.SaveDebounce)
	}
	if cfg.Backend.Type != BackendFile {
		t.Errorf("expected file backend, got %q", cfg.Backend.Type)
	}
	if !cfg.Backend.SQLite.WALEnabled() {
		t.Error("expected WAL enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log:
  level: debug
editor:
  history_limit: 20
  save_debounce: 250ms
  published_id: wf-live
backend:
  type: sqlite
  sqlite:
    path: /tmp/rb.db
    wal: false
observability:
  metrics_addr: ":9464"
  tracing:
    enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("log format = %q, want default text", cfg.Log.Format)
	}
	if cfg.Editor.HistoryLimit != 20 || cfg.Editor.SaveDebounce != 250*time.Millisecond {
		t.Errorf("editor = %+v", cfg.Editor)
	}
	if cfg.Editor.DefaultModel != "gpt-4.1" {
		t.Errorf("default model = %q, want gpt-4.1", cfg.Editor.DefaultModel)
	}
	if cfg.Editor.PublishedID != "wf-live" {
		t.Errorf("published id = %q", cfg.Editor.PublishedID)
	}
	if cfg.Backend.Type != BackendSQLite || cfg.Backend.SQLite.Path != "/tmp/rb.db" || cfg.Backend.SQLite.WALEnabled() {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Observability.MetricsAddr != ":9464" || !cfg.Observability.Tracing.Enabled {
		t.Errorf("observability = %+v", cfg.Observability)
	}
	if cfg.Observability.Tracing.Exporter != "stdout" {
		t.Errorf("exporter = %q, want stdout", cfg.Observability.Tracing.Exporter)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROWBOAT_HISTORY_LIMIT", "5")
	t.Setenv("ROWBOAT_SAVE_DEBOUNCE", "2s")
	t.Setenv("ROWBOAT_DEFAULT_MODEL", "claude")
	t.Setenv("ROWBOAT_BACKEND", "MEMORY")
	t.Setenv("ROWBOAT_WORKFLOWS_DIR", "/srv/workflows")
	t.Setenv("ROWBOAT_TRACING", "1")
	t.Setenv("ROWBOAT_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Editor.HistoryLimit != 5 {
		t.Errorf("history limit = %d, want 5", cfg.Editor.HistoryLimit)
	}
	if cfg.Editor.SaveDebounce != 2*time.Second {
		t.Errorf("save debounce = %v, want 2s", cfg.Editor.SaveDebounce)
	}
	if cfg.Editor.DefaultModel != "claude" {
		t.Errorf("default model = %q", cfg.Editor.DefaultModel)
	}
	if cfg.Backend.Type != BackendMemory {
		t.Errorf("backend = %q, want memory", cfg.Backend.Type)
	}
	if cfg.Backend.File.Dir != "/srv/workflows" {
		t.Errorf("workflows dir = %q", cfg.Backend.File.Dir)
	}
	if !cfg.Observability.Tracing.Enabled {
		t.Error("tracing should be enabled")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var cfgErr *rowboaterrors.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Key != "config_file" {
		t.Fatalf("expected config_file ConfigError, got %v", err)
	}

	t.Setenv("ROWBOAT_BACKEND", "postgres")
	_, err = Load("")
	if !errors.As(err, &cfgErr) || cfgErr.Key != "validation" {
		t.Fatalf("expected validation ConfigError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig in chain, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "history limit", mutate: func(c *Config) { c.Editor.HistoryLimit = 0 }, wantErr: "editor.history_limit"},
		{name: "negative debounce", mutate: func(c *Config) { c.Editor.SaveDebounce = -time.Second }, wantErr: "editor.save_debounce"},
		{name: "sqlite path", mutate: func(c *Config) { c.Backend.Type = BackendSQLite; c.Backend.SQLite.Path = "" }, wantErr: "backend.sqlite.path"},
		{name: "file dir", mutate: func(c *Config) { c.Backend.File.Dir = "" }, wantErr: "backend.file.dir"},
		{name: "exporter", mutate: func(c *Config) { c.Observability.Tracing.Exporter = "otlp" }, wantErr: "exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if got := ResolvePath("/explicit.yaml"); got != "/explicit.yaml" {
		t.Errorf("explicit path = %q", got)
	}
	if got := ResolvePath(""); got != "" {
		t.Errorf("missing default should resolve to empty, got %q", got)
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := ResolvePath(""); got != path {
		t.Errorf("ResolvePath = %q, want %q", got, path)
	}
}

func TestValidateWorkflowsDir(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Backend.File.Dir = dir

	good := "name: ok\nagents:\n  - name: A\n"
	bad := "name: broken\nagents:\n  - name: A\n  - name: A\n"
	if err := os.WriteFile(filepath.Join(dir, "ok.yaml"), []byte(good), 0600); err != nil {
		t.Fatal(err)
	}
	if err := ValidateWorkflowsDir(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.yml"), []byte(bad), 0600); err != nil {
		t.Fatal(err)
	}
	err := ValidateWorkflowsDir(cfg)
	if err == nil || !strings.Contains(err.Error(), "broken.yml") {
		t.Fatalf("expected broken.yml to be reported, got %v", err)
	}

	cfg.Backend.Type = BackendMemory
	if err := ValidateWorkflowsDir(cfg); err != nil {
		t.Errorf("non-file backends are not scanned: %v", err)
	}
}
