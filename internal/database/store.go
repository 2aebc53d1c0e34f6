package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mayeshco/ebay-scraper/internal/models"
)

// Store persists scraped listings, products and variants.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables this service owns.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			url TEXT PRIMARY KEY,
			job_id UUID,
			position INT NOT NULL,
			title TEXT,
			price INT,
			location TEXT,
			photo TEXT,
			condition TEXT,
			scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			name TEXT,
			price_original INT,
			price_converted INT,
			seller_name TEXT,
			seller_url TEXT,
			photos JSONB NOT NULL DEFAULT '[]',
			description_url TEXT,
			description TEXT,
			features JSONB NOT NULL DEFAULT '{}',
			scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS product_variants (
			product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			variant_id TEXT NOT NULL,
			attributes JSONB NOT NULL DEFAULT '{}',
			price_original INT NOT NULL,
			currency_original TEXT,
			price_converted INT NOT NULL,
			currency_converted TEXT,
			out_of_stock BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (product_id, variant_id)
		)`,
		`CREATE TABLE IF NOT EXISTS scrape_jobs (
			id UUID PRIMARY KEY,
			search_url TEXT NOT NULL,
			min_price INT NOT NULL DEFAULT 0,
			max_pages INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			listings_found INT NOT NULL DEFAULT 0,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// SaveListings upserts search results, keyed by listing URL.
func (s *Store) SaveListings(ctx context.Context, jobID string, listings []models.ListingPreview) error {
	query := `
		INSERT INTO listings (url, job_id, position, title, price, location, photo, condition)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			position = EXCLUDED.position,
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			location = EXCLUDED.location,
			photo = EXCLUDED.photo,
			condition = EXCLUDED.condition,
			scraped_at = NOW()
	`

	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		for _, l := range listings {
			if l.URL == "" {
				continue
			}
			if _, err := tx.Exec(ctx, query,
				l.URL, nullableID(jobID), l.Index, l.Title, l.Price, l.Location, l.Photo, l.Condition); err != nil {
				return fmt.Errorf("failed to insert listing %s: %w", l.URL, err)
			}
		}
		return nil
	})
}

// SaveProduct upserts one product record and replaces its variants.
func (s *Store) SaveProduct(ctx context.Context, product *models.ProductDetail) error {
	photos, err := json.Marshal(product.Photos)
	if err != nil {
		return fmt.Errorf("failed to marshal photos: %w", err)
	}
	features, err := json.Marshal(product.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}

	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		productQuery := `
			INSERT INTO products (id, url, name, price_original, price_converted,
				seller_name, seller_url, photos, description_url, description, features)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				url = EXCLUDED.url,
				name = EXCLUDED.name,
				price_original = EXCLUDED.price_original,
				price_converted = EXCLUDED.price_converted,
				seller_name = EXCLUDED.seller_name,
				seller_url = EXCLUDED.seller_url,
				photos = EXCLUDED.photos,
				description_url = EXCLUDED.description_url,
				description = EXCLUDED.description,
				features = EXCLUDED.features,
				scraped_at = NOW()
		`
		if _, err := tx.Exec(ctx, productQuery,
			product.ID, product.URL, product.Name, product.PriceOriginal, product.PriceConverted,
			product.SellerName, product.SellerURL, photos, product.DescriptionURL,
			product.Description, features); err != nil {
			return fmt.Errorf("failed to insert product %s: %w", product.ID, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM product_variants WHERE product_id = $1`, product.ID); err != nil {
			return fmt.Errorf("failed to clear variants for %s: %w", product.ID, err)
		}

		variantQuery := `
			INSERT INTO product_variants (product_id, variant_id, attributes,
				price_original, currency_original, price_converted, currency_converted, out_of_stock)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		for _, v := range product.Variants {
			attrs, err := json.Marshal(v.Attributes)
			if err != nil {
				return fmt.Errorf("failed to marshal variant attributes: %w", err)
			}
			if _, err := tx.Exec(ctx, variantQuery,
				product.ID, v.ID, attrs, v.PriceOriginal, v.CurrencyOriginal,
				v.PriceConverted, v.CurrencyConverted, v.OutOfStock); err != nil {
				return fmt.Errorf("failed to insert variant %s: %w", v.ID, err)
			}
		}
		return nil
	})
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
