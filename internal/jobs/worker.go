package jobs

import (
	"context"
	"time"

	"github.com/mayeshco/ebay-scraper/internal/ebay"
	"github.com/mayeshco/ebay-scraper/internal/events"
)

// StartWorker polls for pending jobs until the context is cancelled.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("job worker stopping")
			return
		case <-ticker.C:
			m.processNextJob(ctx)
		}
	}
}

// processNextJob claims and runs the oldest pending job.
func (m *Manager) processNextJob(ctx context.Context) {
	query := `
		SELECT id, search_url, min_price, max_pages
		FROM scrape_jobs
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	var jobID, searchURL string
	var minPrice, maxPages int

	err := m.db.QueryRow(ctx, query).Scan(&jobID, &searchURL, &minPrice, &maxPages)
	if err != nil {
		// No pending jobs
		return
	}

	m.logger.Info("processing job", "id", jobID, "url", searchURL)

	if err := m.updateJobStatus(ctx, jobID, "running", nil); err != nil {
		m.logger.Error("failed to update job status", "error", err)
		return
	}

	if err := m.processJob(ctx, jobID, searchURL, minPrice, maxPages); err != nil {
		m.logger.Error("job failed", "id", jobID, "error", err)
		m.updateJobStatus(ctx, jobID, "failed", err)
		return
	}

	if err := m.updateJobStatus(ctx, jobID, "completed", nil); err != nil {
		m.logger.Error("failed to mark job as completed", "error", err)
	}

	m.logger.Info("job completed", "id", jobID)
}

func (m *Manager) processJob(ctx context.Context, jobID, searchURL string, minPrice, maxPages int) error {
	listings, err := m.scraper.ScrapeSearch(ctx, searchURL, ebay.SearchOptions{
		MinPrice: minPrice,
		MaxPages: maxPages,
	})
	if err != nil {
		return err
	}

	if err := m.store.SaveListings(ctx, jobID, listings); err != nil {
		return err
	}

	if _, err := m.db.Exec(ctx,
		`UPDATE scrape_jobs SET listings_found = $1 WHERE id = $2`, len(listings), jobID); err != nil {
		m.logger.Error("failed to update job progress", "error", err)
	}

	if m.publisher != nil {
		err := m.publisher.PublishSearchCompleted(ctx, &events.SearchCompletedPayload{
			JobID:     jobID,
			SearchURL: searchURL,
			MinPrice:  minPrice,
			Listings:  listings,
		})
		if err != nil {
			m.logger.Error("failed to publish event", "job", jobID, "error", err)
		}
	}

	m.logger.Info("job scrape finished", "job", jobID, "listings", len(listings))
	return nil
}
