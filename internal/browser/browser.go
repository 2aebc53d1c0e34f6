// Package browser is a local playwright-backed fetcher, used when no
// scraping backend key is configured. It drives a single Chromium context
// and fetches pages serially, so it is only suitable for small runs.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/mayeshco/ebay-scraper/internal/fetch"
	"github.com/mayeshco/ebay-scraper/internal/ratelimit"
)

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	Locale         string
	ProxyServer    string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-US,en;q=0.9",
		Locale:         "en-US",
	}
}

type Fetcher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	limiter ratelimit.RateLimiter
	timeout time.Duration
	logger  *slog.Logger
}

func New(opts *Options, logger *slog.Logger) (*Fetcher, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--window-size=1920,1080",
			"--user-agent=" + opts.UserAgent,
		},
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.ProxyServer}
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browserCtx, err := b.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:       &opts.UserAgent,
		AcceptDownloads: playwright.Bool(false),
		Locale:          &opts.Locale,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": opts.AcceptLanguage,
		},
	})
	if err != nil {
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Fetcher{
		pw:      pw,
		browser: b,
		context: browserCtx,
		limiter: ratelimit.NewSimpleRateLimiter(1*time.Second, 3*time.Second),
		timeout: opts.Timeout,
		logger:  logger.With("component", "browser"),
	}, nil
}

func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*fetch.Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &fetch.FetchError{URL: pageURL, Err: err}
	}

	page, err := f.context.NewPage()
	if err != nil {
		return nil, &fetch.FetchError{URL: pageURL, Err: fmt.Errorf("failed to create page: %w", err)}
	}
	defer page.Close()

	page.SetDefaultTimeout(float64(f.timeout.Milliseconds()))

	if err := f.navigateWithRetry(page, pageURL, 3); err != nil {
		return nil, &fetch.FetchError{URL: pageURL, Err: err}
	}

	html, err := page.Content()
	if err != nil {
		return nil, &fetch.FetchError{URL: pageURL, Err: fmt.Errorf("failed to read page content: %w", err)}
	}

	return fetch.NewDocumentFromString(html, page.URL())
}

// FetchMany satisfies fetch.Fetcher. Pages share one browser context, so the
// fan-out is serial here; completions still arrive on a single channel and a
// failed page never stops the rest.
func (f *Fetcher) FetchMany(ctx context.Context, urls []string) <-chan fetch.Result {
	results := make(chan fetch.Result, len(urls))
	go func() {
		defer close(results)
		for _, u := range urls {
			doc, err := f.Fetch(ctx, u)
			results <- fetch.Result{URL: u, Doc: doc, Err: err}
		}
	}()
	return results
}

func (f *Fetcher) navigateWithRetry(page playwright.Page, pageURL string, attempts int) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		_, err := page.Goto(pageURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		})
		if err == nil {
			return nil
		}
		lastErr = err
		f.logger.Warn("navigation failed", "url", pageURL, "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return fmt.Errorf("failed to navigate after %d attempts: %w", attempts, lastErr)
}

func (f *Fetcher) Close() error {
	var errs []error

	if f.context != nil {
		if err := f.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if f.pw != nil {
		if err := f.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
