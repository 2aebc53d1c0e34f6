package ebay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listingFixture struct {
	title       string
	titleBadge  string
	price       string
	auction     bool
	auctionIcon bool
	timeEnd     string
	location    string
	condition   string
	href        string
	dataSrc     string
	src         string
}

func searchPage(countHeading string, listings ...listingFixture) string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	if countHeading != "" {
		b.WriteString(`<h1 class="srp-controls__count-heading"><span>` + countHeading + `</span> results</h1>`)
	}
	b.WriteString(`<div class="srp-results"><ul>`)
	for _, l := range listings {
		b.WriteString(`<li class="s-item">`)
		if l.href != "" {
			b.WriteString(`<a class="s-item__link" href="` + l.href + `">link</a>`)
		}
		if l.dataSrc != "" || l.src != "" {
			b.WriteString(`<img`)
			if l.dataSrc != "" {
				b.WriteString(` data-src="` + l.dataSrc + `"`)
			}
			if l.src != "" {
				b.WriteString(` src="` + l.src + `"`)
			}
			b.WriteString(`>`)
		}
		if l.title != "" {
			b.WriteString(`<div class="s-item__title"><span>` + l.title + `</span>`)
			if l.titleBadge != "" {
				b.WriteString(`<span class="LIGHT_HIGHLIGHT">` + l.titleBadge + `</span>`)
			}
			b.WriteString(`</div>`)
		}
		if l.price != "" {
			b.WriteString(`<span class="s-item__price">` + l.price + `</span>`)
		}
		if l.auction {
			b.WriteString(`<span class="s-item__auction">Auction</span>`)
		}
		if l.auctionIcon {
			b.WriteString(`<span class="s-item__auction"><img src="gavel.svg"></span>`)
		}
		if l.timeEnd != "" {
			b.WriteString(`<span class="s-item__time-end">` + l.timeEnd + `</span>`)
		}
		if l.location != "" {
			b.WriteString(`<span class="s-item__itemLocation">` + l.location + `</span>`)
		}
		if l.condition != "" {
			b.WriteString(`<span class="SECONDARY_INFO">` + l.condition + `</span>`)
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul></div></body></html>`)
	return b.String()
}

func TestParseSearchThresholdAndIndexing(t *testing.T) {
	html := searchPage("3",
		listingFixture{title: "cheap", price: "$50.00", href: "https://www.ebay.com/itm/1?x=1"},
		listingFixture{title: "mid", price: "$150.00", href: "https://www.ebay.com/itm/2?x=1"},
		listingFixture{title: "high", price: "$250.00", href: "https://www.ebay.com/itm/3?x=1"},
	)
	doc := testDoc(t, html, "https://www.ebay.com/sch/i.html?_nkw=x")

	previews := ParseSearch(doc, 1, 100)

	require.Len(t, previews, 2)
	assert.Equal(t, 1, previews[0].Index)
	assert.Equal(t, 2, previews[1].Index)
	require.NotNil(t, previews[0].Price)
	require.NotNil(t, previews[1].Price)
	assert.Equal(t, 150, *previews[0].Price)
	assert.Equal(t, 250, *previews[1].Price)
	assert.Equal(t, "https://www.ebay.com/itm/2", previews[0].URL)
}

func TestParseSearchSkipsAuctions(t *testing.T) {
	html := searchPage("4",
		listingFixture{title: "badge auction", price: "$500.00", auction: true},
		listingFixture{title: "icon-only badge auction", price: "$550.00", auctionIcon: true},
		listingFixture{title: "timed auction", price: "$600.00", timeEnd: "6d 2h (Sun, 10:30 AM)"},
		listingFixture{title: "buy it now", price: "$700.00"},
	)
	doc := testDoc(t, html, "https://www.ebay.com/sch/i.html")

	previews := ParseSearch(doc, 1, 0)

	require.Len(t, previews, 1)
	assert.Equal(t, "buy it now", *previews[0].Title)
	assert.Equal(t, 1, previews[0].Index, "skipped auctions do not consume an index")
}

func TestParseSearchFieldDefaults(t *testing.T) {
	html := searchPage("2",
		listingFixture{
			title:     "full",
			price:     "$99.00",
			location:  "from Japan",
			condition: "Pre-Owned",
			href:      "https://www.ebay.com/itm/9?hash=abc",
			dataSrc:   "https://i.ebayimg.com/hi.jpg",
			src:       "https://i.ebayimg.com/lo.jpg",
		},
		listingFixture{title: "bare", price: "Tap to see price"},
	)
	doc := testDoc(t, html, "https://www.ebay.com/sch/i.html")

	previews := ParseSearch(doc, 5, 0)

	require.Len(t, previews, 2)

	full := previews[0]
	assert.Equal(t, 5, full.Index)
	assert.Equal(t, "https://www.ebay.com/itm/9", full.URL)
	assert.Equal(t, "from Japan", *full.Location)
	assert.Equal(t, "Pre-Owned", *full.Condition)
	assert.Equal(t, "https://i.ebayimg.com/hi.jpg", *full.Photo, "data-src wins over src")

	bare := previews[1]
	assert.Equal(t, 6, bare.Index)
	assert.Nil(t, bare.Price, "unparsable price text defaults to null")
	assert.Nil(t, bare.Location)
	assert.Nil(t, bare.Photo)
}

func TestParseSearchTitleTakesFirstSpan(t *testing.T) {
	html := searchPage("1",
		listingFixture{title: "Apple MacBook Pro", titleBadge: "New Listing", price: "$900.00"},
	)
	doc := testDoc(t, html, "https://www.ebay.com/sch/i.html")

	previews := ParseSearch(doc, 1, 0)

	require.Len(t, previews, 1)
	assert.Equal(t, "Apple MacBook Pro", *previews[0].Title, "promotional badge spans never bleed into the title")
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name         string
		totalResults int
		itemsPerPage int
		maxPages     int
		expected     int
	}{
		{"partial last page", 125, 60, 0, 3},
		{"capped", 125, 60, 2, 2},
		{"exact multiple", 120, 60, 0, 2},
		{"single page", 10, 60, 0, 1},
		{"no results", 0, 60, 0, 0},
		{"cap above total is ignored", 125, 60, 10, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, totalPages(tt.totalResults, tt.itemsPerPage, tt.maxPages))
		})
	}
}

func TestScrapeSearchPagination(t *testing.T) {
	firstURL := "https://www.ebay.com/sch/i.html?_ipg=60&_nkw=macbook"
	page2URL := "https://www.ebay.com/sch/i.html?_ipg=60&_nkw=macbook&_pgn=2"
	page3URL := "https://www.ebay.com/sch/i.html?_ipg=60&_nkw=macbook&_pgn=3"

	f := newFakeFetcher()
	f.pages[firstURL] = searchPage("125",
		listingFixture{title: "a", price: "$110.00"},
		listingFixture{title: "b", price: "$120.00"},
	)
	f.pages[page2URL] = searchPage("125",
		listingFixture{title: "c", price: "$130.00"},
	)
	f.pages[page3URL] = searchPage("125",
		listingFixture{title: "d", price: "$140.00"},
		listingFixture{title: "e", price: "$150.00"},
	)

	s := testScraper(f)
	results, err := s.ScrapeSearch(context.Background(), firstURL, SearchOptions{MinPrice: 100, StartIndex: 1})
	require.NoError(t, err)

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i+1, r.Index, "indices are gap-free and strictly increasing")
	}
	assert.Equal(t, "a", *results[0].Title, "page one results come first")
	assert.Equal(t, "b", *results[1].Title)

	require.Len(t, f.manyCalls, 1)
	assert.Equal(t, []string{page2URL, page3URL}, f.manyCalls[0], "page urls rewrite only the page number")
}

func TestScrapeSearchToleratesPageFailure(t *testing.T) {
	firstURL := "https://www.ebay.com/sch/i.html?_ipg=60&_nkw=x"
	page2URL := "https://www.ebay.com/sch/i.html?_ipg=60&_nkw=x&_pgn=2"
	page3URL := "https://www.ebay.com/sch/i.html?_ipg=60&_nkw=x&_pgn=3"

	f := newFakeFetcher()
	f.pages[firstURL] = searchPage("180",
		listingFixture{title: "p1", price: "$100.00"},
	)
	f.errs[page2URL] = errors.New("upstream returned status 500")
	f.pages[page3URL] = searchPage("180",
		listingFixture{title: "p3", price: "$100.00"},
	)

	s := testScraper(f)
	results, err := s.ScrapeSearch(context.Background(), firstURL, SearchOptions{StartIndex: 1})
	require.NoError(t, err, "a failed page is skipped, not raised")

	require.Len(t, results, 2)
	assert.Equal(t, "p1", *results[0].Title)
	assert.Equal(t, "p3", *results[1].Title)
	assert.Equal(t, []int{1, 2}, []int{results[0].Index, results[1].Index})
}

func TestScrapeSearchMaxPagesCap(t *testing.T) {
	firstURL := "https://www.ebay.com/sch/i.html?_ipg=60&_nkw=x"

	f := newFakeFetcher()
	f.pages[firstURL] = searchPage("600", listingFixture{title: "only", price: "$10.00"})

	s := testScraper(f)
	_, err := s.ScrapeSearch(context.Background(), firstURL, SearchOptions{MaxPages: 1})
	require.NoError(t, err)

	assert.Empty(t, f.manyCalls, "maxPages=1 plans no extra pages")
}

func TestScrapeSearchDefaultItemsPerPage(t *testing.T) {
	// No _ipg parameter: 100 results at the default 60 per page is 2 pages.
	firstURL := "https://www.ebay.com/sch/i.html?_nkw=x"
	page2URL := "https://www.ebay.com/sch/i.html?_nkw=x&_pgn=2"

	f := newFakeFetcher()
	f.pages[firstURL] = searchPage("100", listingFixture{title: "a", price: "$10.00"})
	f.pages[page2URL] = searchPage("100", listingFixture{title: "b", price: "$10.00"})

	s := testScraper(f)
	results, err := s.ScrapeSearch(context.Background(), firstURL, SearchOptions{})
	require.NoError(t, err)

	require.Len(t, results, 2)
	require.Len(t, f.manyCalls, 1)
	assert.Equal(t, []string{page2URL}, f.manyCalls[0])
}

func TestScrapeSearchCumulativeIndexing(t *testing.T) {
	// The historical numbering advances each page's start index by the total
	// accumulated so far, so later pages skip ahead of positional rank.
	firstURL := "https://www.ebay.com/sch/i.html?_ipg=60&_nkw=x"
	page2URL := "https://www.ebay.com/sch/i.html?_ipg=60&_nkw=x&_pgn=2"
	page3URL := "https://www.ebay.com/sch/i.html?_ipg=60&_nkw=x&_pgn=3"

	f := newFakeFetcher()
	f.pages[firstURL] = searchPage("150",
		listingFixture{title: "a", price: "$10.00"},
		listingFixture{title: "b", price: "$10.00"},
	)
	f.pages[page2URL] = searchPage("150",
		listingFixture{title: "c", price: "$10.00"},
		listingFixture{title: "d", price: "$10.00"},
	)
	f.pages[page3URL] = searchPage("150",
		listingFixture{title: "e", price: "$10.00"},
	)

	s := testScraper(f)
	results, err := s.ScrapeSearch(context.Background(), firstURL, SearchOptions{StartIndex: 1, CumulativeIndex: true})
	require.NoError(t, err)

	require.Len(t, results, 5)
	// Page 1 starts at 1; page 2 at 1+2=3; after its append the total is 4,
	// so page 3 starts at 3+4=7.
	indices := make([]int, len(results))
	for i, r := range results {
		indices[i] = r.Index
	}
	assert.Equal(t, []int{1, 2, 3, 4, 7}, indices)
}

func TestScrapeSearchValidatesInput(t *testing.T) {
	s := testScraper(newFakeFetcher())

	_, err := s.ScrapeSearch(context.Background(), "", SearchOptions{})
	assert.Error(t, err)

	_, err = s.ScrapeSearch(context.Background(), "https://www.ebay.com/sch/i.html", SearchOptions{MinPrice: -5})
	assert.Error(t, err)
}

func TestScrapeSearchFirstPageFailure(t *testing.T) {
	f := newFakeFetcher()
	url := "https://www.ebay.com/sch/i.html?_nkw=x"
	f.errs[url] = fmt.Errorf("blocked")

	s := testScraper(f)
	_, err := s.ScrapeSearch(context.Background(), url, SearchOptions{})
	assert.Error(t, err, "page one failure is fatal to the call")
}
