package ebay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mayeshco/ebay-scraper/internal/fetch"
	"github.com/mayeshco/ebay-scraper/internal/models"
)

// ErrFiltered means the product parsed fine but its converted price fell
// below the caller's threshold. It is a policy signal, not a failure; check
// with errors.Is.
var ErrFiltered = errors.New("product excluded by price threshold")

// IsFiltered reports whether err is the price-threshold exclusion signal.
func IsFiltered(err error) bool {
	return errors.Is(err, ErrFiltered)
}

const itemPathMarker = "/itm/"

// ParseProduct extracts one product record from its document. Missing
// elements default to null or empty, never to an error. A converted price
// below minPrice returns ErrFiltered and no record.
func ParseProduct(doc *fetch.Document, minPrice int) (*models.ProductDetail, error) {
	canonical, _ := doc.Find(`link[rel="canonical"]`).First().Attr("href")

	item := &models.ProductDetail{
		URL:            canonical,
		ID:             itemID(canonical),
		PriceOriginal:  priceFromText(doc.Find(".x-price-primary>span").First().Text()),
		PriceConverted: priceFromText(doc.Find(".x-price-approx__price").Text()),
		Name:           strings.TrimSpace(doc.Find("h1 span").Text()),
		SellerName:     strings.TrimSpace(doc.Find("[data-testid=str-title] a").Text()),
		SellerURL:      stripQuery(doc.Find("[data-testid=str-title] a").AttrOr("href", "")),
		Photos:         productPhotos(doc),
		DescriptionURL: descriptionURL(doc),
		Features:       productFeatures(doc),
	}

	if !PassesThreshold(item.PriceConverted, minPrice) {
		return nil, fmt.Errorf("%w: product %s priced %d below %d", ErrFiltered, item.ID, *item.PriceConverted, minPrice)
	}

	return item, nil
}

// ScrapeProduct fetches a product page and composes the full record. A
// filtered product propagates ErrFiltered immediately. Description fetching
// and variant parsing are non-critical: their failures degrade to a null
// description and an empty variant list.
func (s *Scraper) ScrapeProduct(ctx context.Context, productURL string, minPrice int) (*models.ProductDetail, error) {
	if productURL == "" {
		return nil, fmt.Errorf("product url is required")
	}
	if minPrice < 0 {
		return nil, fmt.Errorf("min price must not be negative, got %d", minPrice)
	}

	doc, err := s.fetcher.Fetch(ctx, productURL)
	if err != nil {
		return nil, err
	}

	product, err := ParseProduct(doc, minPrice)
	if err != nil {
		if errors.Is(err, ErrFiltered) {
			s.logger.Info("product ignored by price threshold", "url", productURL, "min_price", minPrice)
		}
		return nil, err
	}

	if product.DescriptionURL != nil {
		description, err := s.FetchDescription(ctx, *product.DescriptionURL)
		if err != nil {
			s.logger.Error("failed to fetch description", "url", *product.DescriptionURL, "error", err)
		} else {
			product.Description = &description
		}
	}

	variants, err := ParseVariants(doc)
	if err != nil {
		s.logger.Warn("failed to parse variants", "url", productURL, "error", err)
		variants = []models.VariantRecord{}
	}
	product.Variants = variants

	return product, nil
}

// FetchDescription retrieves the iframe-embedded long-form description and
// flattens it to trimmed text.
func (s *Scraper) FetchDescription(ctx context.Context, descriptionURL string) (string, error) {
	doc, err := s.fetcher.Fetch(ctx, descriptionURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find("body").Text()), nil
}

func itemID(canonical string) string {
	i := strings.Index(canonical, itemPathMarker)
	if i < 0 {
		return ""
	}
	return stripQuery(canonical[i+len(itemPathMarker):])
}

func priceFromText(text string) *int {
	text = strings.TrimSpace(text)
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

// productPhotos concatenates the filmstrip and main carousel selections in
// order. Duplicates between the two are kept.
func productPhotos(doc *fetch.Document) []string {
	photos := []string{}
	collect := func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			photos = append(photos, src)
		}
	}
	doc.Find(".ux-image-filmstrip-carousel-item.image img").Each(collect)
	doc.Find(".ux-image-carousel-item.image img").Each(collect)
	return photos
}

func descriptionURL(doc *fetch.Document) *string {
	if src, ok := doc.Find("div.d-item-description iframe").First().Attr("src"); ok && src != "" {
		return &src
	}
	if src, ok := doc.Find("div#desc_div iframe").First().Attr("src"); ok && src != "" {
		return &src
	}
	return nil
}

// productFeatures pairs each label node in the feature section with its
// adjacent value node. A label with no matching value yields an empty string.
func productFeatures(doc *fetch.Document) map[string]string {
	features := map[string]string{}
	doc.Find("div.ux-layout-section--features").Find(".ux-labels-values__labels").Each(func(_ int, labelSel *goquery.Selection) {
		label := strings.Trim(labelSel.Find(".ux-textspans").Text(), ":\n ")
		if label == "" {
			return
		}
		value := labelSel.NextAllFiltered("div").First().Find(".ux-textspans").Text()
		features[label] = strings.TrimSpace(value)
	})
	return features
}
