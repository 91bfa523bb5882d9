package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrMissingPath is returned by Validate when a configured browser path does
// not exist on disk.
var ErrMissingPath = errors.New("missing path")

// Config represents the application configuration.
type Config struct {
	Browser BrowserConfig `toml:"browser"`
	Capture CaptureConfig `toml:"capture"`
	Logging LoggingConfig `toml:"logging"`
}

// BrowserConfig describes the local Chromium installation and how to launch it.
type BrowserConfig struct {
	ExecutablePath string   `toml:"executable_path"`
	UserDataPath   string   `toml:"user_data_path"`
	Engine         string   `toml:"engine"`
	Headless       bool     `toml:"headless"`
	Stealth        bool     `toml:"stealth"`
	ExtraArgs      []string `toml:"extra_args"`
	ViewportWidth  int      `toml:"viewport_width"`
	ViewportHeight int      `toml:"viewport_height"`
}

// CaptureConfig contains the navigation and output settings for a capture.
type CaptureConfig struct {
	OutputDir           string `toml:"output_dir"`
	DefaultURL          string `toml:"default_url"`
	NavigationTimeoutMs int    `toml:"navigation_timeout_ms"`
	SettleDelayMs       int    `toml:"settle_delay_ms"`
	Isolate             bool   `toml:"isolate"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// NavigationTimeout returns the navigation timeout as a duration.
func (c CaptureConfig) NavigationTimeout() time.Duration {
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// SettleDelay returns the post-load settle delay as a duration.
func (c CaptureConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// Load builds a configuration from defaults and environment only.
func Load() (*Config, error) {
	return LoadFromFiles()
}

// LoadFromFiles loads configuration with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies CHROMIUM_* and PROFILESHOT_* environment overrides.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("CHROMIUM_EXECUTABLE_PATH"); v != "" {
		config.Browser.ExecutablePath = v
	}
	if v := os.Getenv("CHROMIUM_USERDATA_PATH"); v != "" {
		config.Browser.UserDataPath = v
	}
	if v := os.Getenv("PROFILESHOT_ENGINE"); v != "" {
		config.Browser.Engine = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("PROFILESHOT_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Browser.Headless = b
		}
	}
	if v := os.Getenv("PROFILESHOT_OUTPUT_DIR"); v != "" {
		config.Capture.OutputDir = v
	}
	if v := os.Getenv("PROFILESHOT_DEFAULT_URL"); v != "" {
		config.Capture.DefaultURL = v
	}
	if v := os.Getenv("PROFILESHOT_ISOLATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Capture.Isolate = b
		}
	}
	if v := os.Getenv("PROFILESHOT_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// FlagOverrides carries command-line values. Zero values leave the config as is.
type FlagOverrides struct {
	OutputDir string
	Engine    string
	Headless  *bool
	Isolate   *bool
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, f FlagOverrides) {
	if f.OutputDir != "" {
		config.Capture.OutputDir = f.OutputDir
	}
	if f.Engine != "" {
		config.Browser.Engine = strings.ToLower(strings.TrimSpace(f.Engine))
	}
	if f.Headless != nil {
		config.Browser.Headless = *f.Headless
	}
	if f.Isolate != nil {
		config.Capture.Isolate = *f.Isolate
	}
}

// Validate checks that both browser paths exist and that the remaining
// settings are usable. Path problems wrap ErrMissingPath.
func (c *Config) Validate() error {
	if _, err := os.Stat(c.Browser.ExecutablePath); err != nil {
		return fmt.Errorf("%w: chromium executable not found: %s", ErrMissingPath, c.Browser.ExecutablePath)
	}
	info, err := os.Stat(c.Browser.UserDataPath)
	if err != nil {
		return fmt.Errorf("%w: chromium user data path not found: %s", ErrMissingPath, c.Browser.UserDataPath)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: chromium user data path is not a directory: %s", ErrMissingPath, c.Browser.UserDataPath)
	}

	switch c.Browser.Engine {
	case EnginePlaywright, EngineChromedp, EngineRod:
	default:
		return fmt.Errorf("unsupported engine %q (supported: %s, %s, %s)", c.Browser.Engine, EnginePlaywright, EngineChromedp, EngineRod)
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	if c.Capture.NavigationTimeoutMs <= 0 {
		return errors.New("navigation_timeout_ms must be positive")
	}
	if c.Capture.SettleDelayMs < 0 {
		return errors.New("settle_delay_ms must not be negative")
	}
	if c.Capture.OutputDir == "" {
		return errors.New("output_dir must not be empty")
	}
	return nil
}
