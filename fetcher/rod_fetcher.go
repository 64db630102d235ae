package fetcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodFetcher implements the Fetcher interface using rod (headless browser).
// The browser is launched on the first Fetch and reused until Close.
type RodFetcher struct {
	opts Options

	mu      sync.Mutex
	browser *rod.Browser
}

// NewRodFetcher creates a new RodFetcher instance
func NewRodFetcher(opts Options) *RodFetcher {
	return &RodFetcher{opts: opts}
}

// linuxBrowserPaths are checked before letting rod download Chromium
var linuxBrowserPaths = []string{
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/snap/bin/chromium",
}

func (rf *RodFetcher) connect() (*rod.Browser, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.browser != nil {
		return rf.browser, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true).
		Leakless(false).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("mute-audio")

	if dir := os.Getenv("BROWSER_DATA_DIR"); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			rf.opts.logger().Warnf("Warning: Failed to create browser data directory %s: %v", dir, err)
		} else {
			l = l.UserDataDir(dir)
		}
	}

	for _, path := range linuxBrowserPaths {
		if _, err := os.Stat(path); err == nil {
			l = l.Bin(path)
			break
		}
	}

	browserURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	rf.browser = browser
	return browser, nil
}

// Close closes the browser
func (rf *RodFetcher) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.browser == nil {
		return nil
	}
	err := rf.browser.Close()
	rf.browser = nil
	return err
}

// Fetch implements the Fetcher interface and returns the rendered HTML.
// A document response outside the 2xx range is reported as a StatusError.
func (rf *RodFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	browser, err := rf.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if rf.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: rf.opts.UserAgent}); err != nil {
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	// first document response is the navigation target (redirects are not reported here)
	var status atomic.Int64
	waitResponse := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		status.Store(int64(e.Response.Status))
		return true
	})
	go waitResponse()

	timeout := rf.opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if err := page.Timeout(timeout).Navigate(url); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	if err := checkStatus(url, int(status.Load())); err != nil {
		return nil, err
	}

	if err := page.Timeout(10 * time.Second).WaitStable(500 * time.Millisecond); err != nil {
		rf.opts.logger().WithField("url", url).Warnf("Warning: Page did not stabilize within timeout, continuing anyway: %v", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTML: %w", err)
	}

	return []byte(html), nil
}
