// Package rod provides a core.PageFetcher that renders pages in a headless
// Chromium driven by go-rod, for sites that build their content with
// JavaScript.
package rod

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/hupe1980/promptmesh/browse"
	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/logging"
)

// Options configures a Fetcher.
type Options struct {
	// ControlURL connects to a running browser instead of launching one.
	ControlURL string
	Headless   bool
	// Timeout bounds navigation and rendering of one page.
	Timeout time.Duration
	Logger  logging.Logger
}

// Fetcher renders pages in a shared browser. The browser is started on the
// first Fetch and stays up until Close.
type Fetcher struct {
	opts   Options
	logger logging.Logger

	mu      sync.Mutex
	browser *rod.Browser
	launch  *launcher.Launcher
}

var _ core.PageFetcher = (*Fetcher)(nil)

// New creates a Fetcher.
func New(optFns ...func(o *Options)) *Fetcher {
	opts := Options{
		Headless: true,
		Timeout:  30 * time.Second,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Fetcher{opts: opts, logger: logging.OrNoOp(opts.Logger)}
}

func (f *Fetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	controlURL := f.opts.ControlURL
	if controlURL == "" {
		f.launch = launcher.New().
			Leakless(true).
			Headless(f.opts.Headless)

		u, err := f.launch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	f.logger.Info("browse.rod.connected", "control_url", controlURL)
	f.browser = browser

	return browser, nil
}

// Fetch implements core.PageFetcher.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*core.Page, error) {
	if !browse.IsWebURL(pageURL) {
		return nil, fmt.Errorf("not a web url: %q", pageURL)
	}

	browser, err := f.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	p := page.Context(ctx).Timeout(f.opts.Timeout)

	if err := p.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}

	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", pageURL, err)
	}

	doc, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html %s: %w", pageURL, err)
	}

	result, err := browse.ParseHTML(pageURL, strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	f.logger.Debug("browse.rod.fetched", "url", pageURL, "chars", len(result.Content), "links", len(result.Links))

	return result, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}

	if f.launch != nil {
		f.launch.Cleanup()
		f.launch = nil
	}

	return err
}
