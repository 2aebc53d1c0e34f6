package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mayeshco/ebay-scraper/internal/models"
)

// Run is one persisted scrape run: the search results plus any product
// records collected alongside them.
type Run struct {
	ID          string                  `json:"id"`
	SearchURL   string                  `json:"search_url"`
	MinPrice    int                     `json:"min_price"`
	Listings    []models.ListingPreview `json:"listings"`
	Products    []*models.ProductDetail `json:"products,omitempty"`
	CompletedAt time.Time               `json:"completed_at"`
}

// RunStore keeps scrape runs in a single JSON file, written atomically.
type RunStore struct {
	mu       sync.RWMutex
	runs     map[string]*Run
	filename string
}

func NewRunStore(filename string) (*RunStore, error) {
	rs := &RunStore{
		runs:     make(map[string]*Run),
		filename: filename,
	}

	if err := rs.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return rs, nil
}

func (rs *RunStore) Add(run *Run) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.CompletedAt.IsZero() {
		run.CompletedAt = time.Now()
	}

	rs.runs[run.ID] = run
	return rs.save()
}

func (rs *RunStore) Get(id string) (*Run, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	run, exists := rs.runs[id]
	return run, exists
}

func (rs *RunStore) List() []*Run {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	runs := make([]*Run, 0, len(rs.runs))
	for _, run := range rs.runs {
		runs = append(runs, run)
	}
	return runs
}

func (rs *RunStore) save() error {
	data, err := json.MarshalIndent(rs.runs, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first for atomicity
	tmpFile := rs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, rs.filename)
}

func (rs *RunStore) load() error {
	data, err := os.ReadFile(rs.filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &rs.runs)
}
