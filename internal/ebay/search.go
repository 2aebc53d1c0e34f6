package ebay

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mayeshco/ebay-scraper/internal/fetch"
	"github.com/mayeshco/ebay-scraper/internal/models"
)

const defaultItemsPerPage = 60

var timeRemainingRe = regexp.MustCompile(`\((.+?)\)`)

// SearchOptions controls a search scrape run.
type SearchOptions struct {
	// MinPrice excludes listings and products priced strictly below it.
	MinPrice int
	// MaxPages caps pagination; zero means no cap.
	MaxPages int
	// StartIndex is the index assigned to the first retained listing.
	// Values below 1 are treated as 1.
	StartIndex int
	// CumulativeIndex reproduces the historical numbering, which advanced
	// each page's start index by the total accumulated so far instead of by
	// that page's own item count. Leave false for gap-free indices.
	CumulativeIndex bool
}

// ParseSearch extracts listing previews from one search results document, in
// document order. Auction listings are never returned; listings priced below
// minPrice are skipped without consuming an index. Retained items are
// numbered startIndex, startIndex+1, ...
func ParseSearch(doc *fetch.Document, startIndex, minPrice int) []models.ListingPreview {
	previews := []models.ListingPreview{}
	index := startIndex

	doc.Find(".srp-results li.s-item").Each(func(_ int, box *goquery.Selection) {
		if isAuction(box) {
			return
		}

		price := listingPrice(box)
		if !PassesThreshold(price, minPrice) {
			return
		}

		href, _ := box.Find("a.s-item__link").First().Attr("href")
		item := models.ListingPreview{
			Index:     index,
			URL:       stripQuery(href),
			Title:     textOrNil(box.Find(".s-item__title span").First().Text()),
			Price:     price,
			Location:  textOrNil(box.Find(".s-item__itemLocation").Text()),
			Photo:     listingPhoto(box),
			Condition: textOrNil(box.Find(".SECONDARY_INFO").Text()),
		}
		previews = append(previews, item)
		index++
	})

	return previews
}

// ScrapeSearch fetches a search URL and walks its pagination. Page one's
// results come first and in document order; later pages append in completion
// order. Per-page fetch failures are logged and skipped.
func (s *Scraper) ScrapeSearch(ctx context.Context, searchURL string, opts SearchOptions) ([]models.ListingPreview, error) {
	if searchURL == "" {
		return nil, fmt.Errorf("search url is required")
	}
	if opts.MinPrice < 0 {
		return nil, fmt.Errorf("min price must not be negative, got %d", opts.MinPrice)
	}
	if opts.StartIndex < 1 {
		opts.StartIndex = 1
	}

	s.logger.Info("scraping search", "url", searchURL)

	firstPage, err := s.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	results := ParseSearch(firstPage, opts.StartIndex, opts.MinPrice)

	pageURLs := s.planPages(firstPage, opts.MaxPages)
	if len(pageURLs) == 0 {
		return results, nil
	}

	s.logger.Info("scraping search pagination", "pages", len(pageURLs), "url", searchURL)

	nextIndex := opts.StartIndex + len(results)
	for res := range s.fetcher.FetchMany(ctx, pageURLs) {
		if res.Err != nil {
			s.logger.Error("failed to scrape search page", "url", res.URL, "error", res.Err)
			continue
		}
		page := ParseSearch(res.Doc, nextIndex, opts.MinPrice)
		results = append(results, page...)
		if opts.CumulativeIndex {
			nextIndex += len(results)
		} else {
			nextIndex += len(page)
		}
	}

	return results, nil
}

// planPages reads the total result count from the first page and produces
// the URLs for pages 2..totalPages, rewriting only the page-number query
// parameter. A missing or unreadable count means no extra pages.
func (s *Scraper) planPages(firstPage *fetch.Document, maxPages int) []string {
	countText := strings.TrimSpace(firstPage.Find(".srp-controls__count-heading>span").First().Text())
	if countText == "" {
		s.logger.Warn("result count not found, scraping first page only", "url", firstPage.URL())
		return nil
	}

	cleaned := strings.NewReplacer(",", "", ".", "").Replace(countText)
	totalResults, err := strconv.Atoi(cleaned)
	if err != nil {
		s.logger.Warn("result count unreadable, scraping first page only", "count", countText)
		return nil
	}

	itemsPerPage := queryParamInt(firstPage.URL(), "_ipg", defaultItemsPerPage)
	pages := totalPages(totalResults, itemsPerPage, maxPages)

	urls := make([]string, 0, pages)
	for page := 2; page <= pages; page++ {
		u, err := setQueryParam(firstPage.URL(), "_pgn", strconv.Itoa(page))
		if err != nil {
			s.logger.Warn("failed to build page url", "page", page, "error", err)
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

func totalPages(totalResults, itemsPerPage, maxPages int) int {
	if itemsPerPage < 1 {
		itemsPerPage = defaultItemsPerPage
	}
	pages := int(math.Ceil(float64(totalResults) / float64(itemsPerPage)))
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}
	return pages
}

// isAuction treats the presence of the auction badge element as the marker;
// the badge may carry only an icon and no text.
func isAuction(box *goquery.Selection) bool {
	if box.Find(".s-item__auction").Length() > 0 {
		return true
	}
	timeEnd := box.Find(".s-item__time-end").Text()
	return timeRemainingRe.MatchString(timeEnd)
}

func listingPrice(box *goquery.Selection) *int {
	text := strings.TrimSpace(box.Find(".s-item__price").First().Text())
	if text == "" {
		return nil
	}
	value, err := CleanPrice(text)
	if err != nil {
		return nil
	}
	price := int(value)
	return &price
}

func listingPhoto(box *goquery.Selection) *string {
	img := box.Find("img").First()
	if src, ok := img.Attr("data-src"); ok && src != "" {
		return &src
	}
	if src, ok := img.Attr("src"); ok && src != "" {
		return &src
	}
	return nil
}

func textOrNil(text string) *string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &text
}

func stripQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

func queryParamInt(rawURL, param string, fallback int) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	value := u.Query().Get(param)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func setQueryParam(rawURL, param, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(param, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
