package vision

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/proposal-intel/internal/pdf"
	"github.com/sells-group/proposal-intel/pkg/anthropic"
)

// Classification fallback confidences. A heuristic midpoint pick is more
// trustworthy than "scan everything", hence the higher score.
const (
	heuristicPageConfidence = 40
	allPagesConfidence      = 20
)

// AllPages is the PageIndex sentinel meaning phase 1 could not localize and
// phase 2 should scan the whole document.
const AllPages = -1

const classifySystem = "You are a document analyst. You classify PDF pages from service proposals. Respond with valid JSON only, no prose."

const classifyPrompt = `These are the pages of a service proposal document, in order.
Identify which page contains the estimate/quote table: the page with line items, quantities, rates and a total price.

Return a JSON object:
{"pages": [{"pageNumber": <1-based page number>, "isEstimatePage": <bool>, "confidence": <0-100>, "reason": "<short reason>"}]}

Include one entry per page shown.`

// pageClassification is the per-page verdict from the model.
type pageClassification struct {
	PageNumber     int     `json:"pageNumber"`
	IsEstimatePage bool    `json:"isEstimatePage"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
}

// PageLocation is the outcome of phase 1: where the estimate page sits.
// PageIndex is 0-based; AllPages means unlocalized.
type PageLocation struct {
	PageIndex  int
	Confidence float64
	Reason     string
}

// classifyPages sends up to cfg.ClassifyMaxPages page images in one
// deterministic model call and picks the highest-confidence estimate page.
// Model failure degrades to scanning all pages; an unflagged document
// degrades to the middle page. Never returns an error.
func (p *Pipeline) classifyPages(ctx context.Context, images []pdf.PageImage) PageLocation {
	pageCount := len(images)
	window := images
	if len(window) > p.cfg.ClassifyMaxPages {
		window = window[:p.cfg.ClassifyMaxPages]
	}

	parts := make([]anthropic.ContentPart, 0, len(window)+1)
	for _, img := range window {
		parts = append(parts, anthropic.ImagePart(img.MediaType, img.Data))
	}
	parts = append(parts, anthropic.TextPart(classifyPrompt))

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	temp := 0.0
	resp, err := p.ai.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:       p.cfg.Model,
		MaxTokens:   1024,
		System:      classifySystem,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Parts: parts},
		},
	})
	if err != nil {
		zap.L().Warn("vision: page classification call failed, scanning all pages",
			zap.Error(err),
		)
		return PageLocation{PageIndex: AllPages, Confidence: allPagesConfidence, Reason: "classification call failed"}
	}
	resp.Usage.LogCost(p.cfg.Model, "classify_pages")

	var parsed struct {
		Pages []pageClassification `json:"pages"`
	}
	if err := json.Unmarshal([]byte(CleanJSON(resp.Text())), &parsed); err != nil {
		zap.L().Warn("vision: unparseable classification response, scanning all pages",
			zap.Error(err),
		)
		return PageLocation{PageIndex: AllPages, Confidence: allPagesConfidence, Reason: "unparseable classification"}
	}

	best := PageLocation{PageIndex: AllPages}
	for _, pc := range parsed.Pages {
		if !pc.IsEstimatePage || pc.PageNumber < 1 || pc.PageNumber > pageCount {
			continue
		}
		if pc.Confidence > best.Confidence {
			best = PageLocation{
				PageIndex:  pc.PageNumber - 1,
				Confidence: pc.Confidence,
				Reason:     pc.Reason,
			}
		}
	}

	if best.PageIndex == AllPages {
		// Nothing flagged: estimates usually sit mid-document, between the
		// cover pages and the signature block.
		return PageLocation{
			PageIndex:  pageCount / 2,
			Confidence: heuristicPageConfidence,
			Reason:     fmt.Sprintf("no page flagged; middle page of %d assumed", pageCount),
		}
	}
	return best
}
