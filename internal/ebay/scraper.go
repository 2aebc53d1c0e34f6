// Package ebay extracts listing previews, product records and variant
// matrices from rendered eBay documents. Document retrieval is delegated to
// a fetch.Fetcher; everything here tolerates partial failure.
package ebay

import (
	"log/slog"

	"github.com/mayeshco/ebay-scraper/internal/fetch"
)

type Scraper struct {
	fetcher fetch.Fetcher
	logger  *slog.Logger
}

func New(fetcher fetch.Fetcher, logger *slog.Logger) *Scraper {
	return &Scraper{
		fetcher: fetcher,
		logger:  logger.With("component", "ebay"),
	}
}
