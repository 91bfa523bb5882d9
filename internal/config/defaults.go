package config

import (
	"os"
	"path/filepath"
)

// Supported automation engines.
const (
	EnginePlaywright = "playwright"
	EngineChromedp   = "chromedp"
	EngineRod        = "rod"
)

const (
	DefaultExecutablePath = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
	DefaultURL            = "https://www.naver.com"
	DefaultOutputDir      = "./screenshots"
)

// DefaultUserDataPath returns the macOS Chrome user-data root for the current user.
func DefaultUserDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "~"
	}
	return filepath.Join(home, "Library", "Application Support", "Google", "Chrome")
}

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			ExecutablePath: DefaultExecutablePath,
			UserDataPath:   DefaultUserDataPath(),
			Engine:         EnginePlaywright,
			Headless:       false,
			ExtraArgs:      []string{},
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		},
		Capture: CaptureConfig{
			OutputDir:           DefaultOutputDir,
			DefaultURL:          DefaultURL,
			NavigationTimeoutMs: 30_000,
			SettleDelayMs:       3_000,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Outputs: []string{"console"},
		},
	}
}
