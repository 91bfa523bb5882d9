package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightDriver launches a persistent Chromium context through Playwright.
// Only the Playwright driver is installed; the browser is the local executable.
type PlaywrightDriver struct{}

type playwrightSession struct {
	pw   *playwright.Playwright
	bctx playwright.BrowserContext
	page playwright.Page

	stop      func() bool
	closeOnce sync.Once
	closeErr  error
}

func (d *PlaywrightDriver) Open(ctx context.Context, spec LaunchSpec) (Session, error) {
	runOpts := &playwright.RunOptions{SkipInstallBrowsers: true}
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("install playwright driver: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	ctxOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		ExecutablePath: playwright.String(spec.ExecutablePath),
		Headless:       playwright.Bool(spec.Headless),
		Args:           spec.Args,
		Viewport: &playwright.Size{
			Width:  spec.Viewport.Width,
			Height: spec.Viewport.Height,
		},
	}
	if spec.Stealth {
		ctxOpts.IgnoreDefaultArgs = []string{"--enable-automation"}
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(spec.UserDataDir, ctxOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch context: %w", err)
	}

	// A persistent context usually restores a window; reuse its first page.
	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		_ = bctx.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new page: %w", err)
	}

	s := &playwrightSession{pw: pw, bctx: bctx, page: page}
	// Closing the context aborts whatever call is in flight.
	s.stop = context.AfterFunc(ctx, func() { _ = bctx.Close() })
	return s, nil
}

func (s *playwrightSession) Navigate(ctx context.Context, url string, timeout time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return 0, err
	}
	if resp == nil {
		return 0, nil
	}
	return resp.Status(), nil
}

func (s *playwrightSession) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Title()
}

func (s *playwrightSession) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

func (s *playwrightSession) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.page.Locator(selector).Count()
}

func (s *playwrightSession) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
	})
	return err
}

func (s *playwrightSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		// When stop reports false, cancellation already closed the context.
		if s.stop() {
			if err := s.bctx.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close context: %w", err))
			}
		}
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
