package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayeshco/ebay-scraper/internal/models"
)

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }

func TestRunStoreRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "runs.json")

	rs, err := NewRunStore(filename)
	require.NoError(t, err)

	run := &Run{
		ID:        "run-1",
		SearchURL: "https://www.ebay.com/sch/i.html?_nkw=macbook",
		MinPrice:  100,
		Listings: []models.ListingPreview{
			{Index: 1, URL: "https://www.ebay.com/itm/1", Title: strptr("a"), Price: intptr(150)},
		},
	}
	require.NoError(t, rs.Add(run))
	assert.False(t, run.CompletedAt.IsZero(), "add stamps completion time")

	// A fresh store reads the persisted file back.
	reopened, err := NewRunStore(filename)
	require.NoError(t, err)

	loaded, ok := reopened.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, run.SearchURL, loaded.SearchURL)
	assert.Equal(t, run.MinPrice, loaded.MinPrice)
	require.Len(t, loaded.Listings, 1)
	assert.Equal(t, "a", *loaded.Listings[0].Title)

	assert.Len(t, reopened.List(), 1)
}

func TestRunStoreRequiresID(t *testing.T) {
	rs, err := NewRunStore(filepath.Join(t.TempDir(), "runs.json"))
	require.NoError(t, err)

	assert.Error(t, rs.Add(&Run{SearchURL: "https://www.ebay.com/sch/i.html"}))
}

func TestRunStoreMissingFileIsEmpty(t *testing.T) {
	rs, err := NewRunStore(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Empty(t, rs.List())
}

func TestRunStoreRejectsCorruptFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "runs.json")
	require.NoError(t, os.WriteFile(filename, []byte("{not json"), 0o644))

	_, err := NewRunStore(filename)
	assert.Error(t, err)
}

func TestCSVWriter(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "listings.csv")

	listings := []models.ListingPreview{
		{Index: 1, URL: "https://www.ebay.com/itm/1", Title: strptr("first"), Price: intptr(150), Location: strptr("from Japan")},
		{Index: 2, URL: "https://www.ebay.com/itm/2"},
	}
	require.NoError(t, NewCSVWriter(filename).Write(listings))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)

	lines := string(data)
	assert.Contains(t, lines, "index,url,title,price,location,condition,photo")
	assert.Contains(t, lines, "1,https://www.ebay.com/itm/1,first,150,from Japan,,")
	assert.Contains(t, lines, "2,https://www.ebay.com/itm/2,,,,,", "missing fields serialize as empty cells")
}
