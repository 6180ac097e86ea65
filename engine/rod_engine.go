package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/quotegrab/models"
	"github.com/ysmood/gson"
)

// RodConfig controls the headless Chromium process.
type RodConfig struct {
	Headless   bool
	NoSandbox  bool
	BrowserBin string
	Proxy      string
}

// RodEngine renders pages in headless Chromium. One browser process is
// shared; every Session gets its own incognito browser context and page,
// so cookies, storage and cache never leak between targets.
type RodEngine struct {
	cfg RodConfig

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodEngine creates a RodEngine. The browser is launched by Start.
func NewRodEngine(cfg RodConfig) *RodEngine {
	return &RodEngine{cfg: cfg}
}

func (e *RodEngine) Name() string { return "rod" }

// Start launches and connects to the browser if it is not running yet.
func (e *RodEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(e.cfg.NoSandbox)
	if e.cfg.BrowserBin != "" {
		l = l.Bin(e.cfg.BrowserBin)
	}
	if e.cfg.Proxy != "" {
		l = l.Proxy(e.cfg.Proxy)
	}
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-plugins"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return models.NewScrapeError(models.ErrCodeEngineDown, "failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return models.NewScrapeError(models.ErrCodeEngineDown, "failed to connect to browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	e.launcher = l
	e.browser = browser
	return nil
}

// Open creates an incognito context and a page configured from opts.
func (e *RodEngine) Open(ctx context.Context, opts SessionOptions) (Session, error) {
	e.mu.Lock()
	browser := e.browser
	e.mu.Unlock()
	if browser == nil {
		return nil, models.NewScrapeError(models.ErrCodeEngineDown, "browser not started", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Resources are created without the request context so that Close
	// still works after the caller's deadline has passed.
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to create browser context", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}

	s := &rodSession{incognito: incognito, page: page}
	if err := s.configure(opts); err != nil {
		if closeErr := s.Close(); closeErr != nil {
			slog.Warn("rod: close after failed configure", "error", closeErr)
		}
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to configure page", err)
	}
	return s, nil
}

// Close shuts the browser down and removes its profile directory.
func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.launcher.Cleanup()
	e.browser = nil
	e.launcher = nil
	return err
}

type rodSession struct {
	incognito *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter

	closeOnce sync.Once
	closeErr  error
}

// configure applies emulation settings and mounts the resource filter.
// Everything here must happen before the first navigation.
func (s *rodSession) configure(opts SessionOptions) error {
	if opts.UserAgent != "" {
		if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      opts.UserAgent,
			AcceptLanguage: opts.Locale,
		}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Viewport.Width,
			Height:            opts.Viewport.Height,
			DeviceScaleFactor: 1,
		}); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}
	if opts.Locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: opts.Locale}).Call(s.page); err != nil {
			return fmt.Errorf("set locale: %w", err)
		}
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{"Accept-Language": gson.New(opts.Locale)},
		}).Call(s.page); err != nil {
			return fmt.Errorf("set headers: %w", err)
		}
	}
	if opts.ScriptDisabled {
		if err := (proto.EmulationSetScriptExecutionDisabled{Value: true}).Call(s.page); err != nil {
			return fmt.Errorf("disable scripts: %w", err)
		}
	}
	if len(opts.Blocked) > 0 {
		s.router = s.page.HijackRequests()
		if err := s.router.Add("*", "", func(h *rod.Hijack) {
			if opts.Blocks(ResourceKind(h.Request.Type())) {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
			h.ContinueRequest(&proto.FetchContinueRequest{})
		}); err != nil {
			return fmt.Errorf("mount request filter: %w", err)
		}
		// Run blocks until Stop, so it gets its own goroutine.
		go s.router.Run()
	}
	return nil
}

func (s *rodSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(navCtx)
	// The waiter must be registered before Navigate or the event is missed.
	waitDOM := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return err
	}
	waitDOM()
	return navCtx.Err()
}

func (s *rodSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := s.page.Context(waitCtx).Element(selector)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

func (s *rodSession) Query(ctx context.Context, selector string) (Element, error) {
	has, el, err := s.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrNotFound
	}
	return rodElement{el: el}, nil
}

func (s *rodSession) ClickText(ctx context.Context, selector, text string, timeout time.Duration) error {
	clickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := s.page.Context(clickCtx).ElementR(selector, regexp.QuoteMeta(text))
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Close stops the request filter, closes the page and then disposes of
// the incognito context. Both releases are attempted even if one fails.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		var errs []error
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		if err := s.incognito.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser context: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

type rodElement struct {
	el *rod.Element
}

func (e rodElement) Text() (string, error) { return e.el.Text() }

func (e rodElement) Attribute(name string) (*string, error) { return e.el.Attribute(name) }
