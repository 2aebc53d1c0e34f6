package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/mayeshco/ebay-scraper/internal/browser"
	"github.com/mayeshco/ebay-scraper/internal/config"
	"github.com/mayeshco/ebay-scraper/internal/ebay"
	"github.com/mayeshco/ebay-scraper/internal/fetch"
	"github.com/mayeshco/ebay-scraper/internal/models"
	"github.com/mayeshco/ebay-scraper/internal/ratelimit"
	"github.com/mayeshco/ebay-scraper/internal/scrapfly"
	"github.com/mayeshco/ebay-scraper/internal/storage"
)

const searchBase = "https://www.ebay.com/sch/i.html"

func main() {
	var (
		query      = flag.String("query", "", "search keywords (builds a search URL)")
		searchURL  = flag.String("url", "", "full search URL (overrides -query)")
		productURL = flag.String("product", "", "scrape a single product page instead of a search")
		minPrice   = flag.Int("min-price", 0, "exclude results priced below this value")
		maxPages   = flag.Int("max-pages", 2, "pagination cap, 0 for no cap")
		startIndex = flag.Int("start-index", 1, "index assigned to the first retained listing")
		outDir     = flag.String("out", "results", "output directory for csv/json exports")
		useBrowser = flag.Bool("browser", false, "fetch with a local browser instead of the scraping backend")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *minPrice < 0 {
		logger.Error("min-price must not be negative")
		os.Exit(1)
	}
	if *query == "" && *searchURL == "" && *productURL == "" {
		fmt.Fprintln(os.Stderr, "usage: scraper -query <keywords> [-min-price N] [-max-pages N]")
		fmt.Fprintln(os.Stderr, "       scraper -product <url> [-min-price N]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	fetcher, cleanup, err := buildFetcher(cfg, *useBrowser, logger)
	if err != nil {
		logger.Error("failed to build fetcher", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	scraper := ebay.New(fetcher, logger)

	if *productURL != "" {
		runProduct(ctx, scraper, *productURL, *minPrice, *outDir, logger)
		return
	}

	target := *searchURL
	if target == "" {
		target = buildSearchURL(*query)
	}

	runSearch(ctx, scraper, target, ebay.SearchOptions{
		MinPrice:   *minPrice,
		MaxPages:   *maxPages,
		StartIndex: *startIndex,
	}, *outDir, logger)
}

func buildFetcher(cfg *config.Config, useBrowser bool, logger *slog.Logger) (fetch.Fetcher, func(), error) {
	if !useBrowser && cfg.Scrapfly.Key != "" {
		client := scrapfly.New(scrapfly.Config{
			Key:         cfg.Scrapfly.Key,
			Country:     cfg.Scrapfly.Country,
			Lang:        cfg.Scrapfly.Lang,
			ASP:         cfg.Scrapfly.ASP,
			Concurrency: cfg.Scraper.ConcurrentLimit,
		}, logger,
			scrapfly.WithRateLimiter(ratelimit.NewSimpleRateLimiter(cfg.Scraper.MinDelay, cfg.Scraper.MaxDelay)),
		)
		return client, func() {}, nil
	}

	logger.Info("no backend key configured, using local browser")
	b, err := browser.New(browser.DefaultOptions(), logger)
	if err != nil {
		return nil, nil, err
	}
	return b, func() { b.Close() }, nil
}

func buildSearchURL(query string) string {
	params := url.Values{}
	params.Set("_nkw", query)
	params.Set("_sacat", "0")
	params.Set("_ipg", "60")
	return searchBase + "?" + params.Encode()
}

func runSearch(ctx context.Context, scraper *ebay.Scraper, target string, opts ebay.SearchOptions, outDir string, logger *slog.Logger) {
	listings, err := scraper.ScrapeSearch(ctx, target, opts)
	if err != nil {
		logger.Error("search scrape failed", "url", target, "error", err)
		os.Exit(1)
	}

	printListings(listings)

	csvPath := filepath.Join(outDir, "listings.csv")
	if err := storage.NewCSVWriter(csvPath).Write(listings); err != nil {
		logger.Error("failed to write csv", "path", csvPath, "error", err)
		os.Exit(1)
	}

	store, err := storage.NewRunStore(filepath.Join(outDir, "runs.json"))
	if err != nil {
		logger.Error("failed to open run store", "error", err)
		os.Exit(1)
	}
	run := &storage.Run{
		ID:        uuid.New().String(),
		SearchURL: target,
		MinPrice:  opts.MinPrice,
		Listings:  listings,
	}
	if err := store.Add(run); err != nil {
		logger.Error("failed to save run", "error", err)
		os.Exit(1)
	}

	logger.Info("search scrape saved", "listings", len(listings), "csv", csvPath, "run", run.ID)
}

func runProduct(ctx context.Context, scraper *ebay.Scraper, productURL string, minPrice int, outDir string, logger *slog.Logger) {
	product, err := scraper.ScrapeProduct(ctx, productURL, minPrice)
	if err != nil {
		if ebay.IsFiltered(err) {
			fmt.Println("product excluded by price threshold")
			return
		}
		logger.Error("product scrape failed", "url", productURL, "error", err)
		os.Exit(1)
	}

	data, err := json.MarshalIndent(product, "", "  ")
	if err != nil {
		logger.Error("failed to marshal product", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(data))

	if err := os.MkdirAll(outDir, 0755); err != nil {
		logger.Error("failed to create output dir", "error", err)
		os.Exit(1)
	}
	path := filepath.Join(outDir, "product_"+product.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Error("failed to write product file", "path", path, "error", err)
		os.Exit(1)
	}

	logger.Info("product scrape saved", "id", product.ID, "variants", len(product.Variants), "path", path)
}

func printListings(listings []models.ListingPreview) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tPRICE\tCONDITION\tTITLE")
	for _, l := range listings {
		price := ""
		if l.Price != nil {
			price = fmt.Sprintf("%d", *l.Price)
		}
		title := ""
		if l.Title != nil {
			title = *l.Title
		}
		condition := ""
		if l.Condition != nil {
			condition = *l.Condition
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", l.Index, price, condition, title)
	}
	w.Flush()
}
