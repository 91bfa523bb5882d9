package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromedpDriver launches the local browser over the DevTools protocol with chromedp.
type ChromedpDriver struct{}

type chromedpSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once

	mu       sync.Mutex
	armed    bool
	loaderID cdp.LoaderID
	idle     chan struct{}
}

func (d *ChromedpDriver) Open(ctx context.Context, spec LaunchSpec) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(spec.ExecutablePath),
		chromedp.UserDataDir(spec.UserDataDir),
		chromedp.Flag("headless", spec.Headless),
		chromedp.WindowSize(spec.Viewport.Width, spec.Viewport.Height),
	)
	if spec.Stealth {
		// A false flag drops it from the default allocator options.
		opts = append(opts, chromedp.Flag("enable-automation", false))
	}
	for _, arg := range spec.Args {
		name, value, hasValue := splitFlag(arg)
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	s := &chromedpSession{ctx: tabCtx, cancel: cancel, allocCancel: allocCancel}
	chromedp.ListenTarget(tabCtx, s.onEvent)

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx, page.SetLifecycleEventsEnabled(true)); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s, nil
}

func (s *chromedpSession) onEvent(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return
	}
	switch e.Name {
	case "init":
		// The first init after arming belongs to the main frame navigation.
		if s.loaderID == "" {
			s.loaderID = e.LoaderID
		}
	case "networkIdle":
		if s.loaderID != "" && e.LoaderID == s.loaderID {
			s.armed = false
			close(s.idle)
		}
	}
}

// arm resets idle tracking for the next navigation.
func (s *chromedpSession) arm() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = true
	s.loaderID = ""
	s.idle = make(chan struct{})
	return s.idle
}

func (s *chromedpSession) Navigate(ctx context.Context, url string, timeout time.Duration) (int, error) {
	navCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	idle := s.arm()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return 0, err
	}
	select {
	case <-idle:
		return 0, nil
	case <-navCtx.Done():
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("wait for network idle: %w", navCtx.Err())
	}
}

func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromedpSession) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

func (s *chromedpSession) URL(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (s *chromedpSession) Count(ctx context.Context, selector string) (int, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	return len(nodes), err
}

func (s *chromedpSession) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	// Quality 100 keeps the capture in PNG.
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func (s *chromedpSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if cerr := chromedp.Cancel(s.ctx); cerr != nil && !errors.Is(cerr, context.Canceled) {
			err = fmt.Errorf("close browser: %w", cerr)
		}
		s.cancel()
		s.allocCancel()
	})
	return err
}
