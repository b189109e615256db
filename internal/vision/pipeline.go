// Package vision implements the two-phase multimodal extraction pipeline:
// page classification followed by structured quote extraction, with
// best-effort reconstruction when the model's JSON fails schema validation.
package vision

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-intel/internal/model"
	"github.com/sells-group/proposal-intel/internal/pdf"
	"github.com/sells-group/proposal-intel/pkg/anthropic"
)

// Config tunes the vision pipeline.
type Config struct {
	Model            string
	ClassifyMaxPages int
	DPI              int
	CallTimeout      time.Duration
}

// DefaultConfig returns pipeline defaults: 10 classification pages, 150 DPI
// rasterization, 90s per model call.
func DefaultConfig(modelID string) Config {
	return Config{
		Model:            modelID,
		ClassifyMaxPages: 10,
		DPI:              150,
		CallTimeout:      90 * time.Second,
	}
}

// Pipeline runs the two-phase extraction over rasterized PDF pages.
type Pipeline struct {
	ai  anthropic.Client
	cfg Config
}

// New creates a Pipeline with explicit dependencies; no hidden globals.
func New(ai anthropic.Client, cfg Config) *Pipeline {
	if cfg.ClassifyMaxPages <= 0 {
		cfg.ClassifyMaxPages = 10
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 90 * time.Second
	}
	return &Pipeline{ai: ai, cfg: cfg}
}

// Extract locates the estimate page and extracts structured quote data from
// the page window. Internal failures degrade (lower confidence, notes); an
// error is returned only when no structured result can be produced, in which
// case the caller falls back to the deterministic text parser.
func (p *Pipeline) Extract(ctx context.Context, images []pdf.PageImage) (*model.ExtractedQuoteData, error) {
	if len(images) == 0 {
		return nil, eris.New("vision: no page images")
	}

	loc := p.classifyPages(ctx, images)
	zap.L().Info("vision: estimate page located",
		zap.Int("page_index", loc.PageIndex),
		zap.Float64("confidence", loc.Confidence),
		zap.String("reason", loc.Reason),
	)

	return p.extractFromImages(ctx, images, loc)
}
