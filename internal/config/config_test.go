package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CHROMIUM_EXECUTABLE_PATH",
		"CHROMIUM_USERDATA_PATH",
		"PROFILESHOT_ENGINE",
		"PROFILESHOT_HEADLESS",
		"PROFILESHOT_OUTPUT_DIR",
		"PROFILESHOT_DEFAULT_URL",
		"PROFILESHOT_ISOLATE",
		"PROFILESHOT_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

// browserPaths creates a fake executable and user-data root.
func browserPaths(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, "chrome")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	userData := filepath.Join(dir, "User Data")
	if err := os.Mkdir(userData, 0o755); err != nil {
		t.Fatal(err)
	}
	return exe, userData
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Browser.ExecutablePath != DefaultExecutablePath {
		t.Fatalf("unexpected executable: %q", cfg.Browser.ExecutablePath)
	}
	if !strings.HasSuffix(cfg.Browser.UserDataPath, filepath.Join("Library", "Application Support", "Google", "Chrome")) {
		t.Fatalf("unexpected user data path: %q", cfg.Browser.UserDataPath)
	}
	if cfg.Browser.Engine != EnginePlaywright {
		t.Fatalf("unexpected engine: %q", cfg.Browser.Engine)
	}
	if got := cfg.Capture.NavigationTimeout(); got != 30*time.Second {
		t.Fatalf("navigation timeout = %v", got)
	}
	if got := cfg.Capture.SettleDelay(); got != 3*time.Second {
		t.Fatalf("settle delay = %v", got)
	}
	if cfg.Capture.OutputDir != "./screenshots" {
		t.Fatalf("unexpected output dir: %q", cfg.Capture.OutputDir)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHROMIUM_EXECUTABLE_PATH", "/opt/chromium/chrome")
	t.Setenv("CHROMIUM_USERDATA_PATH", "/var/chromium")
	t.Setenv("PROFILESHOT_ENGINE", " Rod ")
	t.Setenv("PROFILESHOT_HEADLESS", "true")
	t.Setenv("PROFILESHOT_ISOLATE", "not-a-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Browser.ExecutablePath != "/opt/chromium/chrome" {
		t.Fatalf("executable = %q", cfg.Browser.ExecutablePath)
	}
	if cfg.Browser.UserDataPath != "/var/chromium" {
		t.Fatalf("user data = %q", cfg.Browser.UserDataPath)
	}
	if cfg.Browser.Engine != EngineRod {
		t.Fatalf("engine = %q", cfg.Browser.Engine)
	}
	if !cfg.Browser.Headless {
		t.Fatal("expected headless from env")
	}
	if cfg.Capture.Isolate {
		t.Fatal("unparseable bool must leave the default in place")
	}
}

func TestLoadFromFilesPriority(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")
	if err := os.WriteFile(base, []byte(`
[browser]
executable_path = "/from/base"
engine = "chromedp"
extra_args = ["--lang=ko-KR"]

[capture]
settle_delay_ms = 500
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(override, []byte(`
[capture]
settle_delay_ms = 1500
output_dir = "shots"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHROMIUM_EXECUTABLE_PATH", "/from/env")

	cfg, err := LoadFromFiles(base, "", override)
	if err != nil {
		t.Fatalf("LoadFromFiles() error = %v", err)
	}
	if cfg.Browser.ExecutablePath != "/from/env" {
		t.Fatalf("env must win over file, got %q", cfg.Browser.ExecutablePath)
	}
	if cfg.Browser.Engine != EngineChromedp {
		t.Fatalf("engine = %q", cfg.Browser.Engine)
	}
	if len(cfg.Browser.ExtraArgs) != 1 || cfg.Browser.ExtraArgs[0] != "--lang=ko-KR" {
		t.Fatalf("extra args = %v", cfg.Browser.ExtraArgs)
	}
	if cfg.Capture.SettleDelayMs != 1500 {
		t.Fatalf("later file must win, got %d", cfg.Capture.SettleDelayMs)
	}
	if cfg.Capture.OutputDir != "shots" {
		t.Fatalf("output dir = %q", cfg.Capture.OutputDir)
	}
	if cfg.Capture.NavigationTimeoutMs != 30_000 {
		t.Fatalf("untouched default changed: %d", cfg.Capture.NavigationTimeoutMs)
	}
}

func TestLoadFromFilesErrors(t *testing.T) {
	clearEnv(t)
	if _, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("[browser\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFiles(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	yes := true
	ApplyFlagOverrides(cfg, FlagOverrides{OutputDir: "out", Engine: "CHROMEDP", Headless: &yes})
	if cfg.Capture.OutputDir != "out" || cfg.Browser.Engine != EngineChromedp || !cfg.Browser.Headless {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Capture.Isolate {
		t.Fatal("nil isolate flag must not change config")
	}
}

func TestValidate(t *testing.T) {
	exe, userData := browserPaths(t)

	tests := []struct {
		name        string
		mutate      func(*Config)
		wantMissing bool
		wantErr     bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing executable", mutate: func(c *Config) { c.Browser.ExecutablePath = filepath.Join(userData, "nope") }, wantMissing: true, wantErr: true},
		{name: "missing user data", mutate: func(c *Config) { c.Browser.UserDataPath = filepath.Join(userData, "nope") }, wantMissing: true, wantErr: true},
		{name: "user data is a file", mutate: func(c *Config) { c.Browser.UserDataPath = exe }, wantMissing: true, wantErr: true},
		{name: "unknown engine", mutate: func(c *Config) { c.Browser.Engine = "selenium" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Capture.NavigationTimeoutMs = 0 }, wantErr: true},
		{name: "bad viewport", mutate: func(c *Config) { c.Browser.ViewportWidth = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Browser.ExecutablePath = exe
			cfg.Browser.UserDataPath = userData
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrMissingPath); got != tt.wantMissing {
				t.Fatalf("errors.Is(ErrMissingPath) = %v, want %v (err: %v)", got, tt.wantMissing, err)
			}
		})
	}
}
