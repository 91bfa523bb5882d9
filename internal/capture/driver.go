package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"profileshot/internal/config"
)

// Viewport is the browser window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// LaunchSpec describes one browser launch bound to an on-disk profile.
type LaunchSpec struct {
	ExecutablePath   string
	UserDataDir      string
	ProfileDirectory string
	// Args is the full command line passed to the browser, including
	// --profile-directory.
	Args     []string
	Headless bool
	Stealth  bool
	Viewport Viewport
}

// Driver launches a browser session. Each engine has its own implementation.
type Driver interface {
	Open(ctx context.Context, spec LaunchSpec) (Session, error)
}

// Session is an open browser bound to a profile, positioned on one page.
type Session interface {
	// Navigate loads url and waits for network idle. It returns the HTTP
	// status of the main document when the engine reports it, 0 otherwise.
	Navigate(ctx context.Context, url string, timeout time.Duration) (int, error)
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	// Count returns how many elements on the current page match a CSS
	// selector. It does not wait for them to appear.
	Count(ctx context.Context, selector string) (int, error)
	// Screenshot writes a full-page PNG to path.
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Launch arguments applied to every engine.
var baseArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--no-first-run",
	"--no-default-browser-check",
	"--start-maximized",
}

var stealthArgs = []string{
	"--disable-blink-features=AutomationControlled",
}

// launchArgs assembles the browser command line: base flags, stealth flags,
// the profile directory, then operator supplied extras.
func launchArgs(profileDir string, stealth bool, extra []string) []string {
	args := make([]string, 0, len(baseArgs)+len(stealthArgs)+len(extra)+1)
	args = append(args, baseArgs...)
	if stealth {
		args = append(args, stealthArgs...)
	}
	args = append(args, "--profile-directory="+profileDir)
	for _, a := range extra {
		if a = strings.TrimSpace(a); a != "" {
			args = append(args, a)
		}
	}
	return args
}

// splitFlag turns "--name=value" into its parts. Bare "--name" has no value.
func splitFlag(arg string) (name, value string, hasValue bool) {
	arg = strings.TrimLeft(arg, "-")
	name, value, hasValue = strings.Cut(arg, "=")
	return name, value, hasValue
}

// NewDriver returns the driver for a configured engine name.
func NewDriver(engine string) (Driver, error) {
	switch engine {
	case config.EnginePlaywright, "":
		return &PlaywrightDriver{}, nil
	case config.EngineChromedp:
		return &ChromedpDriver{}, nil
	case config.EngineRod:
		return &RodDriver{}, nil
	default:
		return nil, fmt.Errorf("unsupported engine %q", engine)
	}
}
