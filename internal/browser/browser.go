// Package browser drives a single headless Chromium page used for listing
// discovery and item extraction.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

const (
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultPageTimeout = 60 * time.Second
	DefaultSettleDelay = 3 * time.Second
)

// Loader returns the rendered HTML of a page.
type Loader interface {
	Load(ctx context.Context, url string) (string, error)
}

// Options configures the browser session.
type Options struct {
	Headless    bool
	Bin         string
	UserAgent   string
	PageTimeout time.Duration
	// SettleDelay is waited after the load event so client side rendering
	// can finish.
	SettleDelay time.Duration
}

// Session is one browser with one page, reused sequentially.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	opts    Options
}

// Launch starts the browser and opens its page.
func Launch(opts Options) (*Session, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.PageTimeout == 0 {
		opts.PageTimeout = DefaultPageTimeout
	}

	bin := opts.Bin
	if bin == "" {
		log.Info().Msg("no browser binary specified, downloading default")
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return nil, fmt.Errorf("download browser: %w", err)
		}
		bin = path
	}

	controlURL, err := launcher.New().
		Headless(opts.Headless).
		Bin(bin).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("set user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1920, Height: 1080}); err != nil {
		log.Warn().Err(err).Msg("failed to set viewport")
	}

	log.Info().Str("bin", bin).Bool("headless", opts.Headless).Msg("browser started")
	return &Session{browser: b, page: page, opts: opts}, nil
}

// Load navigates the page to url and returns its HTML once loaded.
func (s *Session) Load(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.PageTimeout)
	defer cancel()

	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load %s: %w", url, err)
	}

	if s.opts.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.opts.SettleDelay):
		}
	}

	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read html %s: %w", url, err)
	}
	return html, nil
}

// Close shuts the browser down.
func (s *Session) Close() error {
	log.Debug().Msg("closing browser")
	return s.browser.Close()
}
