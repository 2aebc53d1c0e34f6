package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mayeshco/ebay-scraper/internal/models"
)

// CSVWriter exports listing previews for spreadsheet consumers.
type CSVWriter struct {
	path string
}

func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Write saves all listings to the CSV file, creating the output directory
// if needed. Columns: index, url, title, price, location, condition, photo.
func (w *CSVWriter) Write(listings []models.ListingPreview) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("could not create output dir: %w", err)
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"index", "url", "title", "price", "location", "condition", "photo"})

	for _, l := range listings {
		writer.Write([]string{
			strconv.Itoa(l.Index),
			l.URL,
			deref(l.Title),
			derefInt(l.Price),
			deref(l.Location),
			deref(l.Condition),
			deref(l.Photo),
		})
	}

	if err := writer.Error(); err != nil {
		return fmt.Errorf("csv write error: %w", err)
	}

	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
