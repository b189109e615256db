// Package importer orchestrates the extraction pipeline: batch discovery of
// provider documents, per-document fetch and extraction, and human review
// into materialized Lead/Quote records.
package importer

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/proposal-intel/internal/model"
	"github.com/sells-group/proposal-intel/internal/pdf"
	"github.com/sells-group/proposal-intel/internal/resilience"
	"github.com/sells-group/proposal-intel/internal/store"
	"github.com/sells-group/proposal-intel/pkg/pandadoc"
)

// Extractor produces structured quote data from rasterized PDF pages.
// Satisfied by vision.Pipeline.
type Extractor interface {
	Extract(ctx context.Context, images []pdf.PageImage) (*model.ExtractedQuoteData, error)
}

// Converter turns a PDF file into page images and raw text. Satisfied by
// pdf.Converter.
type Converter interface {
	Rasterize(ctx context.Context, pdfPath string, dpi, maxPages int) ([]pdf.PageImage, error)
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// Config tunes the import pipeline.
type Config struct {
	// PageSize is the provider listing page size.
	PageSize int
	// PageDelay is slept between listing pages during batch sync.
	PageDelay time.Duration
	// DocumentDelay is slept between documents in ProcessAllPending.
	DocumentDelay time.Duration
	// SweepPageSize bounds each pending-list page in ProcessAllPending; the
	// sweep pages until the pending set is exhausted.
	SweepPageSize int
	// RasterDPI is the rasterization resolution for vision extraction.
	RasterDPI int
	// RasterMaxPages caps how many pages are rasterized per document (0 = all).
	RasterMaxPages int

	// FetchRetry and DownloadRetry keep distinct tunables: metadata fetches
	// get 3 attempts at 1s base, binary downloads 2 attempts at 2s base.
	FetchRetry    resilience.RetryConfig
	DownloadRetry resilience.RetryConfig
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		PageSize:       50,
		PageDelay:      300 * time.Millisecond,
		DocumentDelay:  500 * time.Millisecond,
		SweepPageSize:  200,
		RasterDPI:      150,
		RasterMaxPages: 20,
		FetchRetry: resilience.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			OnRetry:     resilience.RetryLogger("pandadoc", "get_document"),
		},
		DownloadRetry: resilience.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   2 * time.Second,
			OnRetry:     resilience.RetryLogger("pandadoc", "download_pdf"),
		},
	}
}

// Importer wires the provider client, the store and the extraction paths.
type Importer struct {
	store    store.Store
	provider pandadoc.Client
	vision   Extractor
	conv     Converter
	cfg      Config

	// Per-document serialization: two concurrent ProcessDocument calls on
	// the same row would race on status transitions.
	mu    sync.Mutex
	locks map[string]*docLock
}

// docLock is a refcounted per-document mutex; the map entry is pruned when
// the last holder releases it.
type docLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an Importer. vision may be nil to disable the model path and
// run on provider fields plus the text parser only.
func New(st store.Store, provider pandadoc.Client, vision Extractor, conv Converter, cfg Config) *Importer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = 300 * time.Millisecond
	}
	if cfg.RasterDPI <= 0 {
		cfg.RasterDPI = 150
	}
	if cfg.SweepPageSize <= 0 {
		cfg.SweepPageSize = 200
	}
	return &Importer{
		store:    st,
		provider: provider,
		vision:   vision,
		conv:     conv,
		cfg:      cfg,
		locks:    map[string]*docLock{},
	}
}

// lockDocument acquires the per-document mutex, returning the unlock func.
func (imp *Importer) lockDocument(id string) func() {
	imp.mu.Lock()
	l, ok := imp.locks[id]
	if !ok {
		l = &docLock{}
		imp.locks[id] = l
	}
	l.refs++
	imp.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		imp.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(imp.locks, id)
		}
		imp.mu.Unlock()
	}
}
