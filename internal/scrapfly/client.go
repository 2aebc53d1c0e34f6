// Package scrapfly talks to the remote scraping backend. The backend owns
// HTTP retrieval, anti-bot evasion, proxying, retries and timeouts; this
// client only submits URLs and turns responses into documents.
package scrapfly

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mayeshco/ebay-scraper/internal/fetch"
	"github.com/mayeshco/ebay-scraper/internal/queue"
	"github.com/mayeshco/ebay-scraper/internal/ratelimit"
)

const defaultEndpoint = "https://api.scrapfly.io/scrape"

type Config struct {
	Key         string
	Country     string
	Lang        string
	ASP         bool
	Concurrency int
	Timeout     time.Duration
	Endpoint    string
}

func DefaultConfig(key string) Config {
	return Config{
		Key:         key,
		Country:     "US",
		Lang:        "en-US",
		ASP:         true,
		Concurrency: 5,
		Timeout:     90 * time.Second,
		Endpoint:    defaultEndpoint,
	}
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter ratelimit.RateLimiter
	cache   *PageCache
	logger  *slog.Logger
}

// Option configures optional client collaborators.
type Option func(*Client)

// WithCache enables the Redis page cache so repeated runs against the same
// search do not burn backend credits.
func WithCache(cache *PageCache) Option {
	return func(c *Client) { c.cache = cache }
}

func WithRateLimiter(limiter ratelimit.RateLimiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "scrapfly"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// scrapeResponse is the subset of the backend's envelope we consume.
type scrapeResponse struct {
	Result struct {
		Content    string `json:"content"`
		StatusCode int    `json:"status_code"`
		URL        string `json:"url"`
	} `json:"result"`
}

func (c *Client) Fetch(ctx context.Context, pageURL string) (*fetch.Document, error) {
	if c.cache != nil {
		if html, resolved, ok := c.cache.Get(ctx, pageURL); ok {
			c.logger.Debug("page cache hit", "url", pageURL)
			return fetch.NewDocumentFromString(html, resolved)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &fetch.FetchError{URL: pageURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(pageURL), nil)
	if err != nil {
		return nil, &fetch.FetchError{URL: pageURL, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &fetch.FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &fetch.FetchError{URL: pageURL, Err: fmt.Errorf("backend returned status %d", resp.StatusCode)}
	}

	var envelope scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &fetch.FetchError{URL: pageURL, Err: fmt.Errorf("failed to decode backend response: %w", err)}
	}

	if envelope.Result.StatusCode >= 400 {
		return nil, &fetch.FetchError{URL: pageURL, Err: fmt.Errorf("upstream returned status %d", envelope.Result.StatusCode)}
	}

	resolved := envelope.Result.URL
	if resolved == "" {
		resolved = pageURL
	}

	if c.cache != nil {
		c.cache.Set(ctx, pageURL, envelope.Result.Content, resolved)
	}

	return fetch.NewDocumentFromString(envelope.Result.Content, resolved)
}

// FetchMany fans the URLs out over a bounded worker pool. Results arrive on
// the returned channel in completion order; the channel closes once every
// dispatched task has reported. One failure never aborts the others.
func (c *Client) FetchMany(ctx context.Context, urls []string) <-chan fetch.Result {
	results := make(chan fetch.Result, len(urls))

	q := queue.NewInMemoryQueue()
	for _, u := range urls {
		q.Push(&queue.Task{URL: u, CreatedAt: time.Now()})
	}
	q.Close()

	workers := c.cfg.Concurrency
	if len(urls) < workers {
		workers = len(urls)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				task, err := q.Pop(ctx)
				if err != nil {
					return
				}
				doc, err := c.Fetch(ctx, task.URL)
				results <- fetch.Result{URL: task.URL, Doc: doc, Err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (c *Client) requestURL(pageURL string) string {
	params := url.Values{}
	params.Set("key", c.cfg.Key)
	params.Set("url", pageURL)
	if c.cfg.ASP {
		params.Set("asp", "true")
	}
	if c.cfg.Country != "" {
		params.Set("country", c.cfg.Country)
	}
	if c.cfg.Lang != "" {
		params.Set("lang", c.cfg.Lang)
	}
	return c.cfg.Endpoint + "?" + params.Encode()
}
