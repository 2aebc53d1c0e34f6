// Package fetch defines the boundary to the document retrieval backend.
// Implementations live in internal/scrapfly (remote scraping API) and
// internal/browser (local playwright fallback).
package fetch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher retrieves rendered documents. FetchMany runs its requests with
// bounded concurrency and yields one Result per URL as completions arrive;
// a failed fetch never cancels its siblings.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Document, error)
	FetchMany(ctx context.Context, urls []string) <-chan Result
}

// Result is a single FetchMany completion: either Doc or Err is set.
type Result struct {
	URL string
	Doc *Document
	Err error
}

// FetchError reports that the backend could not retrieve a page. Callers
// distinguish it from parse gaps, which default fields to null instead.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Document is a fetched page plus the URL it resolved to after redirects.
type Document struct {
	doc *goquery.Document
	url string
}

func NewDocument(r io.Reader, resolvedURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{doc: doc, url: resolvedURL}, nil
}

func NewDocumentFromString(html, resolvedURL string) (*Document, error) {
	return NewDocument(strings.NewReader(html), resolvedURL)
}

// Find runs a CSS selector query against the document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Text returns the flattened text content of the whole document.
func (d *Document) Text() string {
	return d.doc.Text()
}

// URL returns the resolved request URL.
func (d *Document) URL() string {
	return d.url
}
