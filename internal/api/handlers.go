package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mayeshco/ebay-scraper/internal/ebay"
	"github.com/mayeshco/ebay-scraper/internal/fetch"
	"github.com/mayeshco/ebay-scraper/internal/jobs"
	"github.com/mayeshco/ebay-scraper/internal/models"
)

// ProductStore persists scraped product records. Satisfied by
// database.Store.
type ProductStore interface {
	SaveProduct(ctx context.Context, product *models.ProductDetail) error
}

// ProductPublisher announces scraped products to downstream consumers.
// Satisfied by events.Publisher.
type ProductPublisher interface {
	PublishProductScraped(ctx context.Context, product *models.ProductDetail) error
}

type Handlers struct {
	scraper   *ebay.Scraper
	jobs      *jobs.Manager
	store     ProductStore
	publisher ProductPublisher
	logger    *slog.Logger
}

func NewHandlers(scraper *ebay.Scraper, jobManager *jobs.Manager, store ProductStore, publisher ProductPublisher, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper:   scraper,
		jobs:      jobManager,
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "api"),
	}
}

func (h *Handlers) Register(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", h.ScrapeSearch)
		r.Post("/product", h.ScrapeProduct)
		r.Post("/jobs", h.CreateJob)
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{id}", h.GetJob)
	})
}

type SearchRequest struct {
	URL        string `json:"url"`
	MinPrice   int    `json:"min_price"`
	MaxPages   int    `json:"max_pages"`
	StartIndex int    `json:"start_index"`
}

type SearchResponse struct {
	Listings []models.ListingPreview `json:"listings"`
	Count    int                     `json:"count"`
}

// ScrapeSearch runs a synchronous search scrape.
func (h *Handlers) ScrapeSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.MinPrice < 0 {
		h.respondError(w, http.StatusBadRequest, "min_price must not be negative")
		return
	}

	listings, err := h.scraper.ScrapeSearch(r.Context(), req.URL, ebay.SearchOptions{
		MinPrice:   req.MinPrice,
		MaxPages:   req.MaxPages,
		StartIndex: req.StartIndex,
	})
	if err != nil {
		h.logger.Error("search scrape failed", "url", req.URL, "error", err)
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, SearchResponse{Listings: listings, Count: len(listings)})
}

type ProductRequest struct {
	URL      string `json:"url"`
	MinPrice int    `json:"min_price"`
}

type ProductResponse struct {
	Product  *models.ProductDetail `json:"product,omitempty"`
	Filtered bool                  `json:"filtered"`
	Error    string                `json:"error,omitempty"`
}

// ScrapeProduct runs a synchronous product scrape. A product excluded by the
// price threshold reports filtered=true, which is not a failure. Successful
// records are persisted and published; failures there are logged, never
// surfaced, so the caller still gets the scrape result.
func (h *Handlers) ScrapeProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.MinPrice < 0 {
		h.respondError(w, http.StatusBadRequest, "min_price must not be negative")
		return
	}

	product, err := h.scraper.ScrapeProduct(r.Context(), req.URL, req.MinPrice)
	if err != nil {
		if errors.Is(err, ebay.ErrFiltered) {
			h.respondJSON(w, http.StatusOK, ProductResponse{Filtered: true})
			return
		}
		var fetchErr *fetch.FetchError
		if errors.As(err, &fetchErr) {
			h.logger.Error("product fetch failed", "url", req.URL, "error", err)
			h.respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		h.logger.Error("product scrape failed", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.store != nil {
		if err := h.store.SaveProduct(r.Context(), product); err != nil {
			h.logger.Error("failed to persist product", "id", product.ID, "error", err)
		}
	}
	if h.publisher != nil {
		if err := h.publisher.PublishProductScraped(r.Context(), product); err != nil {
			h.logger.Error("failed to publish product event", "id", product.ID, "error", err)
		}
	}

	h.respondJSON(w, http.StatusOK, ProductResponse{Product: product})
}

type CreateJobRequest struct {
	SearchURL string `json:"search_url"`
	MinPrice  int    `json:"min_price"`
	MaxPages  int    `json:"max_pages"`
}

func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), req.SearchURL, req.MinPrice, req.MaxPages)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusCreated, job)
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	list, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
