package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mayeshco/ebay-scraper/internal/database"
	"github.com/mayeshco/ebay-scraper/internal/ebay"
	"github.com/mayeshco/ebay-scraper/internal/events"
)

var ErrJobNotFound = errors.New("job not found")

type Manager struct {
	db        *database.DB
	store     *database.Store
	scraper   *ebay.Scraper
	publisher *events.Publisher
	logger    *slog.Logger
}

func NewManager(db *database.DB, store *database.Store, scraper *ebay.Scraper, publisher *events.Publisher, logger *slog.Logger) *Manager {
	return &Manager{
		db:        db,
		store:     store,
		scraper:   scraper,
		publisher: publisher,
		logger:    logger.With("component", "job_manager"),
	}
}

// Job is a queued search scrape.
type Job struct {
	ID            string     `json:"id"`
	SearchURL     string     `json:"search_url"`
	MinPrice      int        `json:"min_price"`
	MaxPages      int        `json:"max_pages"`
	Status        string     `json:"status"`
	ListingsFound int        `json:"listings_found"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// CreateJob enqueues a search scrape for the background worker.
func (m *Manager) CreateJob(ctx context.Context, searchURL string, minPrice, maxPages int) (*Job, error) {
	if searchURL == "" {
		return nil, fmt.Errorf("search url is required")
	}
	if minPrice < 0 {
		return nil, fmt.Errorf("min price must not be negative")
	}

	job := &Job{
		ID:        uuid.New().String(),
		SearchURL: searchURL,
		MinPrice:  minPrice,
		MaxPages:  maxPages,
		Status:    "pending",
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO scrape_jobs (id, search_url, min_price, max_pages, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := m.db.Exec(ctx, query,
		job.ID, job.SearchURL, job.MinPrice, job.MaxPages, job.Status, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "url", searchURL)
	return job, nil
}

// GetJob retrieves a job by id.
func (m *Manager) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `
		SELECT id, search_url, min_price, max_pages, status, listings_found,
		       COALESCE(error, ''), created_at, started_at, completed_at
		FROM scrape_jobs
		WHERE id = $1
	`

	job := &Job{}
	err := m.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID, &job.SearchURL, &job.MinPrice, &job.MaxPages, &job.Status,
		&job.ListingsFound, &job.Error, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// ListJobs lists the most recent jobs.
func (m *Manager) ListJobs(ctx context.Context) ([]*Job, error) {
	query := `
		SELECT id, search_url, min_price, max_pages, status, listings_found,
		       COALESCE(error, ''), created_at, started_at, completed_at
		FROM scrape_jobs
		ORDER BY created_at DESC
		LIMIT 100
	`

	rows, err := m.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{}
		err := rows.Scan(
			&job.ID, &job.SearchURL, &job.MinPrice, &job.MaxPages, &job.Status,
			&job.ListingsFound, &job.Error, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
		)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func (m *Manager) updateJobStatus(ctx context.Context, jobID, status string, jobErr error) error {
	var query string
	var args []interface{}

	now := time.Now()
	switch {
	case status == "running":
		query = `UPDATE scrape_jobs SET status = $1, started_at = $2 WHERE id = $3`
		args = []interface{}{status, now, jobID}
	case status == "failed" && jobErr != nil:
		query = `UPDATE scrape_jobs SET status = $1, completed_at = $2, error = $3 WHERE id = $4`
		args = []interface{}{status, now, jobErr.Error(), jobID}
	case status == "completed":
		query = `UPDATE scrape_jobs SET status = $1, completed_at = $2 WHERE id = $3`
		args = []interface{}{status, now, jobID}
	default:
		query = `UPDATE scrape_jobs SET status = $1 WHERE id = $2`
		args = []interface{}{status, jobID}
	}

	_, err := m.db.Exec(ctx, query, args...)
	return err
}
