package vision

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-intel/internal/model"
	"github.com/sells-group/proposal-intel/internal/pdf"
	"github.com/sells-group/proposal-intel/pkg/anthropic"
)

const extractSystem = "You are a data-entry specialist extracting structured quote data from service proposal pages. Respond with valid JSON only, no prose, no code fences."

const extractPrompt = `Extract the quote data from these proposal pages.

Return a JSON object with exactly this schema:
{
  "client": {"name": "<string>", "company": "<string>", "email": "<string>", "confidence": <0-100>},
  "project": {"address": "<string>", "date": "<string>", "confidence": <0-100>},
  "lineItems": [{"sku": "<string>", "title": "<string>", "description": "<string>", "qty": <number>, "unit": "<string>", "rate": <number>, "total": <number>, "confidence": <0-100>}],
  "grandTotal": <number>,
  "subtotal": <number>,
  "tax": <number>,
  "discount": <number>,
  "estimatePageNumber": <1-based page number of the estimate table>,
  "extractionNotes": ["<anything ambiguous or unreadable>"]
}

Use null for values not present. Numbers must be plain numbers without currency symbols or thousands separators.`

// visionResult mirrors the fixed extraction schema.
type visionResult struct {
	Client struct {
		Name       string  `json:"name"`
		Company    string  `json:"company"`
		Email      string  `json:"email"`
		Confidence float64 `json:"confidence"`
	} `json:"client"`
	Project struct {
		Address    string  `json:"address"`
		Date       string  `json:"date"`
		Confidence float64 `json:"confidence"`
	} `json:"project"`
	LineItems          []visionLineItem `json:"lineItems"`
	GrandTotal         float64          `json:"grandTotal"`
	Subtotal           float64          `json:"subtotal"`
	Tax                float64          `json:"tax"`
	Discount           float64          `json:"discount"`
	EstimatePageNumber int              `json:"estimatePageNumber"`
	ExtractionNotes    []string         `json:"extractionNotes"`
}

type visionLineItem struct {
	SKU         string   `json:"sku"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Qty         *float64 `json:"qty"`
	Unit        string   `json:"unit"`
	Rate        *float64 `json:"rate"`
	Total       *float64 `json:"total"`
	Confidence  float64  `json:"confidence"`
}

// extractFromImages runs phase 2: structured extraction over the page window
// anchored at the located estimate page. Returns an error only when no
// parseable result can be produced at all; the caller then delegates to the
// deterministic fallback parser.
func (p *Pipeline) extractFromImages(ctx context.Context, images []pdf.PageImage, loc PageLocation) (*model.ExtractedQuoteData, error) {
	// Window: one page before the estimate page through the end of the
	// document, so totals and signature blocks on later pages stay visible.
	window := images
	if loc.PageIndex != AllPages {
		start := loc.PageIndex - 1
		if start < 0 {
			start = 0
		}
		window = images[start:]
	}

	parts := make([]anthropic.ContentPart, 0, len(window)+1)
	for _, img := range window {
		parts = append(parts, anthropic.ImagePart(img.MediaType, img.Data))
	}
	parts = append(parts, anthropic.TextPart(extractPrompt))

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	temp := 0.1
	resp, err := p.ai.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:       p.cfg.Model,
		MaxTokens:   4096,
		System:      extractSystem,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Parts: parts},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "vision: extraction call")
	}
	resp.Usage.LogCost(p.cfg.Model, "extract_quote")

	raw := CleanJSON(resp.Text())

	var parsed visionResult
	reconstructed := false
	if uErr := json.Unmarshal([]byte(raw), &parsed); uErr != nil || !schemaValid(&parsed) {
		rec, ok := Reconstruct(raw)
		if !ok {
			return nil, eris.New("vision: response failed schema validation and reconstruction")
		}
		zap.L().Warn("vision: schema validation failed, reconstructed field-by-field",
			zap.NamedError("schema_error", uErr),
		)
		parsed = *rec
		reconstructed = true
	}

	return p.toQuoteData(&parsed, loc, reconstructed), nil
}

// schemaValid checks that a parsed response carries enough structure to be
// usable without reconstruction.
func schemaValid(v *visionResult) bool {
	return v.Client.Name != "" || len(v.LineItems) > 0 || v.GrandTotal > 0
}

// toQuoteData converts the schema result into the persistent extraction
// shape, runs the sum-vs-total consistency check, and scores confidence.
func (p *Pipeline) toQuoteData(v *visionResult, loc PageLocation, reconstructed bool) *model.ExtractedQuoteData {
	out := &model.ExtractedQuoteData{
		ClientName:      v.Client.Name,
		ClientCompany:   v.Client.Company,
		ClientEmail:     v.Client.Email,
		ProjectAddress:  v.Project.Address,
		EstimateDate:    v.Project.Date,
		TotalPrice:      v.GrandTotal,
		Currency:        "USD",
		Subtotal:        v.Subtotal,
		Tax:             v.Tax,
		Discount:        v.Discount,
		ExtractionNotes: append([]string(nil), v.ExtractionNotes...),
	}

	var fieldConfs []float64
	if v.Client.Confidence > 0 {
		fieldConfs = append(fieldConfs, v.Client.Confidence)
	}
	if v.Project.Confidence > 0 {
		fieldConfs = append(fieldConfs, v.Project.Confidence)
	}

	for _, li := range v.LineItems {
		if li.Title == "" {
			continue
		}
		out.LineItems = append(out.LineItems, model.LineItem{
			SKU:         li.SKU,
			Title:       li.Title,
			Description: li.Description,
			Quantity:    li.Qty,
			Unit:        li.Unit,
			Rate:        li.Rate,
			Total:       li.Total,
			Confidence:  li.Confidence,
		})
		out.Services = append(out.Services, li.Title)
		if li.Confidence > 0 {
			fieldConfs = append(fieldConfs, li.Confidence)
		}
	}

	if v.Client.Name != "" {
		out.Contacts = append(out.Contacts, model.Contact{
			Name:    v.Client.Name,
			Email:   v.Client.Email,
			Company: v.Client.Company,
			Role:    "client",
		})
	}

	discrepancy := 0.0
	if out.TotalPrice > 0 && len(out.LineItems) > 0 {
		sum := model.SumLineItems(out.LineItems)
		discrepancy = relativeDiff(sum, out.TotalPrice)
		if discrepancy > lineItemNoteThreshold {
			out.ExtractionNotes = append(out.ExtractionNotes, fmt.Sprintf(
				"line items sum to %.2f but grand total is %.2f (%.1f%% apart)",
				sum, out.TotalPrice, discrepancy*100,
			))
		}
	}

	if reconstructed {
		out.ExtractionNotes = append(out.ExtractionNotes,
			"model output failed schema validation; fields reconstructed best-effort")
	}
	if loc.PageIndex == AllPages {
		out.ExtractionNotes = append(out.ExtractionNotes,
			"estimate page could not be localized; extracted from all pages")
	}

	out.Confidence = scoreConfidence(fieldConfs, discrepancy, countWarnings(out.ExtractionNotes), reconstructed)
	return out
}

// relativeDiff returns |a-b| relative to b. Zero when b is zero.
func relativeDiff(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return d / b
}

func countWarnings(notes []string) int {
	return len(notes)
}
