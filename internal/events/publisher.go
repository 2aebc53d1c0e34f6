// Package events publishes scraped records onto Redis streams for
// downstream consumers (export, recommendation). Publishing is
// fire-and-forget: a failed publish is logged, never fatal to a scrape.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mayeshco/ebay-scraper/internal/models"
)

type EventType string

const (
	EventTypeSearchCompleted EventType = "SEARCH_COMPLETED"
	EventTypeProductScraped  EventType = "PRODUCT_SCRAPED"

	listingsStream = "stream:listings"
	productsStream = "stream:products"
)

// SearchCompletedPayload carries the retained previews of one search run.
type SearchCompletedPayload struct {
	EventID     string                  `json:"event_id"`
	EventType   string                  `json:"event_type"`
	Timestamp   time.Time               `json:"timestamp"`
	JobID       string                  `json:"job_id,omitempty"`
	SearchURL   string                  `json:"search_url"`
	MinPrice    int                     `json:"min_price"`
	Listings    []models.ListingPreview `json:"listings"`
	ListingsLen int                     `json:"listings_len"`
}

// ProductScrapedPayload carries one full product record.
type ProductScrapedPayload struct {
	EventID   string                `json:"event_id"`
	EventType string                `json:"event_type"`
	Timestamp time.Time             `json:"timestamp"`
	Product   *models.ProductDetail `json:"product"`
}

type Publisher struct {
	redis  *redis.Client
	logger *slog.Logger
}

func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		redis:  client,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) PublishSearchCompleted(ctx context.Context, payload *SearchCompletedPayload) error {
	payload.EventID = uuid.New().String()
	payload.EventType = string(EventTypeSearchCompleted)
	payload.Timestamp = time.Now()
	payload.ListingsLen = len(payload.Listings)

	return p.publish(ctx, listingsStream, payload.EventID, payload.EventType, payload)
}

func (p *Publisher) PublishProductScraped(ctx context.Context, product *models.ProductDetail) error {
	payload := &ProductScrapedPayload{
		EventID:   uuid.New().String(),
		EventType: string(EventTypeProductScraped),
		Timestamp: time.Now(),
		Product:   product,
	}

	return p.publish(ctx, productsStream, payload.EventID, payload.EventType, payload)
}

func (p *Publisher) publish(ctx context.Context, stream, eventID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"event_id":   eventID,
			"event_type": eventType,
			"payload":    string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	p.logger.Info("event published", "stream", stream, "type", eventType, "event_id", eventID)
	return nil
}
