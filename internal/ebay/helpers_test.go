package ebay

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mayeshco/ebay-scraper/internal/fetch"
)

// fakeFetcher serves canned documents keyed by URL. FetchMany yields results
// synchronously in request order, so tests observe a deterministic
// completion order.
type fakeFetcher struct {
	pages      map[string]string
	errs       map[string]error
	fetchCalls []string
	manyCalls  [][]string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]string{},
		errs:  map[string]error{},
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.Document, error) {
	f.fetchCalls = append(f.fetchCalls, url)
	if err, ok := f.errs[url]; ok {
		return nil, &fetch.FetchError{URL: url, Err: err}
	}
	html, ok := f.pages[url]
	if !ok {
		return nil, &fetch.FetchError{URL: url, Err: io.EOF}
	}
	return mustDoc(html, url)
}

func (f *fakeFetcher) FetchMany(ctx context.Context, urls []string) <-chan fetch.Result {
	f.manyCalls = append(f.manyCalls, urls)
	results := make(chan fetch.Result, len(urls))
	for _, u := range urls {
		doc, err := f.Fetch(ctx, u)
		results <- fetch.Result{URL: u, Doc: doc, Err: err}
	}
	close(results)
	return results
}

func mustDoc(html, url string) (*fetch.Document, error) {
	return fetch.NewDocumentFromString(html, url)
}

func testDoc(t *testing.T, html, url string) *fetch.Document {
	t.Helper()
	doc, err := fetch.NewDocumentFromString(html, url)
	require.NoError(t, err)
	return doc
}

func testScraper(f fetch.Fetcher) *Scraper {
	return New(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
}
