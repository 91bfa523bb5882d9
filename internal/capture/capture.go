// Package capture takes full-page screenshots of a URL through a browser
// bound to an existing Chromium profile.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"profileshot/internal/config"
	"profileshot/internal/logging"
	"profileshot/internal/profile"
)

// ErrEmptyScreenshot is returned when the browser reported success but no
// image data reached the disk.
var ErrEmptyScreenshot = errors.New("screenshot file is empty")

// Captures below this size usually mean the page did not render.
const smallScreenshotBytes = 10_000

// Request is one capture: which profile, which page, where to put the file.
// Empty URL and OutputDir fall back to the configured defaults.
type Request struct {
	Profile   string
	URL       string
	OutputDir string
}

// Result describes a written screenshot.
type Result struct {
	RunID      string
	Path       string
	Profile    string
	URL        string
	FinalURL   string
	Title      string
	Login      LoginState
	Status     int
	SizeBytes  int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Tool validates profiles and captures screenshots with them.
type Tool struct {
	cfg    *config.Config
	store  *profile.Store
	driver Driver
	logger *logging.Logger
	now    func() time.Time
}

// New validates cfg and returns a Tool. A nil driver selects the one named by
// cfg.Browser.Engine. Configuration errors surface before any browser work.
func New(cfg *config.Config, driver Driver, logger *logging.Logger) (*Tool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewSilentLogger()
	}
	if driver == nil {
		d, err := NewDriver(cfg.Browser.Engine)
		if err != nil {
			return nil, err
		}
		driver = d
	}
	return &Tool{
		cfg:    cfg,
		store:  profile.NewStore(cfg.Browser.UserDataPath, logger),
		driver: driver,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Profiles exposes the profile store for listing and inspection.
func (t *Tool) Profiles() *profile.Store { return t.store }

// Capture validates the profile, opens a browser bound to it, loads the URL,
// waits for it to settle, and writes a full-page PNG. The browser is closed
// on every path.
func (t *Tool) Capture(ctx context.Context, req Request) (Result, error) {
	log, runID := t.logger.ForRun()

	if req.URL == "" {
		req.URL = t.cfg.Capture.DefaultURL
	}
	if req.OutputDir == "" {
		req.OutputDir = t.cfg.Capture.OutputDir
	}

	profilePath, err := t.store.Validate(req.Profile)
	if err != nil {
		return Result{}, err
	}
	isolate := t.cfg.Capture.Isolate
	if !isolate && t.store.InUse() {
		return Result{}, fmt.Errorf("%w: %s", profile.ErrInUse, t.store.Root())
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	started := t.now()
	out := outputPath(req.OutputDir, req.Profile, started)

	spec := t.launchSpec(t.store.Root(), req.Profile)
	if isolate {
		tmp, err := os.MkdirTemp("", "profileshot-")
		if err != nil {
			return Result{}, fmt.Errorf("create isolated user data dir: %w", err)
		}
		defer func() {
			if err := os.RemoveAll(tmp); err != nil {
				log.Warn().Str("dir", tmp).Err(err).Msg("removing isolated user data dir failed")
			}
		}()
		n, err := t.store.CopyEssentials(req.Profile, filepath.Join(tmp, profile.DefaultName))
		if err != nil {
			return Result{}, err
		}
		if err := t.store.CopyLocalState(tmp); err != nil {
			log.Warn().Err(err).Msg("copying Local State failed; saved logins may not decrypt")
		}
		if n == 0 {
			log.Warn().Str("profile", req.Profile).Msg("no profile data copied; continuing with an empty profile")
		}
		spec = t.launchSpec(tmp, profile.DefaultName)
	}

	log.Info().
		Str("profile", req.Profile).
		Str("profile_path", profilePath).
		Str("url", req.URL).
		Str("output", out).
		Bool("isolated", isolate).
		Msg("starting capture")

	sess, err := t.driver.Open(ctx, spec)
	if err != nil {
		t.logFailure(log, "launch", profilePath, err)
		return Result{}, stepError(ctx, "launch browser", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn().Err(err).Msg("closing browser failed")
		}
	}()

	status, err := sess.Navigate(ctx, req.URL, t.cfg.Capture.NavigationTimeout())
	if err != nil {
		t.logFailure(log, "navigate", profilePath, err)
		return Result{}, stepError(ctx, "navigate", err)
	}
	if status >= 400 {
		log.Warn().Int("status", status).Str("url", req.URL).Msg("page answered with an error status")
	}

	if err := sleep(ctx, t.cfg.Capture.SettleDelay()); err != nil {
		return Result{}, err
	}

	title, err := sess.Title(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("reading page title failed")
	}
	finalURL, err := sess.URL(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("reading page url failed")
	}
	if finalURL == "" {
		finalURL = req.URL
	}

	login, err := detectLogin(ctx, sess, finalURL)
	if err != nil {
		log.Warn().Err(err).Msg("checking login state failed")
	}
	log.Info().Str("url", finalURL).Str("login", string(login)).Msg("login state")

	if err := sess.Screenshot(ctx, out); err != nil {
		_ = os.Remove(out)
		t.logFailure(log, "screenshot", profilePath, err)
		return Result{}, stepError(ctx, "screenshot", err)
	}

	st, err := os.Stat(out)
	if err != nil {
		return Result{}, fmt.Errorf("screenshot: %w", err)
	}
	if st.Size() == 0 {
		_ = os.Remove(out)
		return Result{}, ErrEmptyScreenshot
	}
	if st.Size() < smallScreenshotBytes {
		log.Warn().Int("bytes", int(st.Size())).Msg("screenshot is unusually small; the page may not have rendered")
	}

	res := Result{
		RunID:      runID,
		Path:       out,
		Profile:    req.Profile,
		URL:        req.URL,
		FinalURL:   finalURL,
		Title:      title,
		Login:      login,
		Status:     status,
		SizeBytes:  st.Size(),
		StartedAt:  started,
		FinishedAt: t.now(),
	}
	log.Info().
		Str("path", res.Path).
		Str("title", res.Title).
		Str("login", string(res.Login)).
		Int("bytes", int(res.SizeBytes)).
		Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).
		Msg("capture finished")
	return res, nil
}

func (t *Tool) launchSpec(userDataDir, profileDir string) LaunchSpec {
	b := t.cfg.Browser
	return LaunchSpec{
		ExecutablePath:   b.ExecutablePath,
		UserDataDir:      userDataDir,
		ProfileDirectory: profileDir,
		Args:             launchArgs(profileDir, b.Stealth, b.ExtraArgs),
		Headless:         b.Headless,
		Stealth:          b.Stealth,
		Viewport:         Viewport{Width: b.ViewportWidth, Height: b.ViewportHeight},
	}
}

// logFailure records which of the key paths still exist next to the error.
func (t *Tool) logFailure(log *logging.Logger, step, profilePath string, err error) {
	log.Error().
		Str("step", step).
		Err(err).
		Bool("executable_exists", exists(t.cfg.Browser.ExecutablePath)).
		Bool("user_data_exists", exists(t.cfg.Browser.UserDataPath)).
		Bool("profile_exists", exists(profilePath)).
		Msg("capture failed")
}

// stepError wraps a driver failure. Engines that close the browser on cancel
// fail with their own error, so a done ctx is joined in for errors.Is.
func stepError(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%s: %w: %w", step, ctxErr, err)
	}
	return fmt.Errorf("%s: %w", step, err)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
