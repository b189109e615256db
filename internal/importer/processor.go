package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-intel/internal/fallback"
	"github.com/sells-group/proposal-intel/internal/model"
	"github.com/sells-group/proposal-intel/internal/pdf"
	"github.com/sells-group/proposal-intel/internal/resilience"
	"github.com/sells-group/proposal-intel/internal/scorer"
	"github.com/sells-group/proposal-intel/internal/store"
	"github.com/sells-group/proposal-intel/pkg/pandadoc"
)

// ProcessSummary reports a ProcessAllPending sweep.
type ProcessSummary struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ProcessDocument runs one document through fetch and extraction:
// pending|error -> fetching -> extracted. Extraction-internal failures are
// absorbed into a lower-confidence result; only an unrecoverable details
// fetch marks the document error and rethrows.
func (imp *Importer) ProcessDocument(ctx context.Context, documentID string) (*model.Document, error) {
	unlock := imp.lockDocument(documentID)
	defer unlock()

	doc, err := imp.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	switch doc.ImportStatus {
	case model.ImportStatusPending, model.ImportStatusError:
	default:
		return nil, eris.Errorf("importer: document %s is %s, not processable", documentID, doc.ImportStatus)
	}

	if err := imp.store.SetImportStatus(ctx, documentID, model.ImportStatusFetching); err != nil {
		return nil, err
	}

	details, err := resilience.DoVal(ctx, imp.cfg.FetchRetry, func(ctx context.Context) (*pandadoc.DocumentDetails, error) {
		return imp.provider.GetDocument(ctx, doc.ExternalID)
	})
	if err != nil {
		perr := classifyError(err)
		if sErr := imp.store.SaveProcessingError(ctx, documentID, perr); sErr != nil {
			zap.L().Error("importer: failed to persist processing error",
				zap.String("document_id", documentID), zap.Error(sErr))
		}
		return nil, eris.Wrapf(err, "importer: fetch details %s", doc.ExternalID)
	}

	data, pdfText := imp.extract(ctx, doc, details)

	upd := store.ExtractionUpdate{
		RawData:          details.Raw,
		PricingTableData: marshalJSON(details.PricingTables),
		RecipientsData:   marshalJSON(details.Recipients),
		VariablesData:    marshalJSON(details.Tokens),
		ExtractedData:    data,
		Confidence:       data.Confidence,
		PDFURL:           fmt.Sprintf("https://api.pandadoc.com/public/v1/documents/%s/download", doc.ExternalID),
	}
	if err := imp.store.SaveExtraction(ctx, documentID, upd); err != nil {
		return nil, err
	}
	if err := imp.store.SetImportStatus(ctx, documentID, model.ImportStatusExtracted); err != nil {
		return nil, err
	}

	zap.L().Info("importer: document extracted",
		zap.String("document_id", documentID),
		zap.String("external_id", doc.ExternalID),
		zap.Float64("confidence", data.Confidence),
		zap.Int("line_items", len(data.LineItems)),
		zap.Bool("had_pdf_text", pdfText != ""),
	)

	return imp.store.GetDocument(ctx, documentID)
}

// ProcessAllPending sweeps pending documents sequentially with a fixed
// inter-document delay, paging the pending list until it is exhausted.
// Individual failures are absorbed and counted; the sweep continues. A
// document that stays pending after an attempt is not retried within the
// same sweep.
func (imp *Importer) ProcessAllPending(ctx context.Context) (*ProcessSummary, error) {
	summary := &ProcessSummary{}
	attempted := map[string]bool{}

	for {
		docs, err := imp.store.ListDocuments(ctx, store.DocumentFilter{
			ImportStatus: model.ImportStatusPending,
			Limit:        imp.cfg.SweepPageSize,
		})
		if err != nil {
			return nil, err
		}

		progressed := false
		for _, doc := range docs {
			if attempted[doc.ID] {
				continue
			}
			attempted[doc.ID] = true
			progressed = true

			if summary.Processed+summary.Failed > 0 && imp.cfg.DocumentDelay > 0 {
				select {
				case <-ctx.Done():
					return summary, ctx.Err()
				case <-time.After(imp.cfg.DocumentDelay):
				}
			}

			if _, err := imp.ProcessDocument(ctx, doc.ID); err != nil {
				summary.Failed++
				zap.L().Warn("importer: document processing failed",
					zap.String("document_id", doc.ID),
					zap.String("external_id", doc.ExternalID),
					zap.Error(err),
				)
				continue
			}
			summary.Processed++
		}

		if !progressed || len(docs) < imp.cfg.SweepPageSize {
			break
		}
	}
	return summary, nil
}

// extract attempts the vision path and degrades to provider fields plus the
// deterministic text parser. Always returns a usable result.
func (imp *Importer) extract(ctx context.Context, doc *model.Document, details *pandadoc.DocumentDetails) (*model.ExtractedQuoteData, string) {
	data, pdfText, err := imp.visionExtract(ctx, doc)
	if err == nil {
		return data, pdfText
	}

	zap.L().Warn("importer: vision path unavailable, using field extraction",
		zap.String("document_id", doc.ID),
		zap.Error(err),
	)
	return imp.fieldExtract(details, pdfText), pdfText
}

// visionExtract downloads and rasterizes the PDF, then runs the model
// pipeline. The extracted text is returned even on failure so the caller can
// seed the fallback parser with it.
func (imp *Importer) visionExtract(ctx context.Context, doc *model.Document) (*model.ExtractedQuoteData, string, error) {
	if imp.vision == nil || imp.conv == nil {
		return nil, "", eris.New("vision extraction disabled")
	}

	pdfBytes, err := resilience.DoVal(ctx, imp.cfg.DownloadRetry, func(ctx context.Context) ([]byte, error) {
		return imp.provider.DownloadPDF(ctx, doc.ExternalID)
	})
	if err != nil {
		return nil, "", &resilience.DownloadError{DocumentID: doc.ExternalID, Err: err}
	}

	path, cleanup, err := pdf.WriteTemp(pdfBytes)
	if err != nil {
		return nil, "", err
	}
	defer cleanup()

	// Best-effort text for the fallback parser; a text failure alone does
	// not abort the vision path.
	pdfText, textErr := imp.conv.ExtractText(ctx, path)
	if textErr != nil {
		zap.L().Debug("importer: pdftotext failed", zap.String("document_id", doc.ID), zap.Error(textErr))
	}

	images, err := imp.conv.Rasterize(ctx, path, imp.cfg.RasterDPI, imp.cfg.RasterMaxPages)
	if err != nil {
		return nil, pdfText, eris.Wrap(err, "rasterize")
	}

	data, err := imp.vision.Extract(ctx, images)
	if err != nil {
		return nil, pdfText, err
	}
	return data, pdfText, nil
}

// fieldExtract builds the result from structured provider fields overlaid on
// whatever the deterministic text parser recovered, scored by corroborated
// signals.
func (imp *Importer) fieldExtract(details *pandadoc.DocumentDetails, pdfText string) *model.ExtractedQuoteData {
	var data *model.ExtractedQuoteData
	textCorroborated := false
	if pdfText != "" {
		data = fallback.Parse(pdfText)
		textCorroborated = data.TotalPrice > 0 || len(data.LineItems) > 0 || data.EstimateNumber != ""
	} else {
		data = &model.ExtractedQuoteData{
			Currency:        "USD",
			ExtractionNotes: []string{"no PDF text available; extracted from provider fields only"},
		}
	}

	applyProviderFields(data, details)

	signals := scorer.FromExtraction(data)
	signals.TextCorroborated = textCorroborated

	conf := scorer.Score(signals)
	if note, warned := scorer.ValidateTotals(data.LineItems, data.TotalPrice); warned {
		data.ExtractionNotes = append(data.ExtractionNotes, note)
		conf -= scorer.DiscrepancyPenalty
	}
	if conf < 0 {
		conf = 0
	}
	data.Confidence = conf
	return data
}

// applyProviderFields overlays structured provider data; structured fields
// outrank regex guesses from the text parser.
func applyProviderFields(data *model.ExtractedQuoteData, details *pandadoc.DocumentDetails) {
	if details == nil {
		return
	}

	if data.ProjectName == "" {
		data.ProjectName = details.Name
	}

	for _, r := range details.Recipients {
		name := strings.TrimSpace(r.FirstName + " " + r.LastName)
		if name == "" && r.Email == "" {
			continue
		}
		data.Contacts = append(data.Contacts, model.Contact{
			Name:    name,
			Email:   r.Email,
			Company: r.CompanyName,
			Role:    r.Role,
		})
		if data.ClientName == "" {
			data.ClientName = name
			data.ClientEmail = r.Email
			data.ClientCompany = r.CompanyName
		}
	}

	if len(details.Tokens) > 0 {
		if data.Variables == nil {
			data.Variables = make(map[string]string, len(details.Tokens))
		}
		for _, tok := range details.Tokens {
			if tok.Value == "" {
				continue
			}
			data.Variables[tok.Name] = tok.Value
		}
		if data.ProjectAddress == "" {
			for _, key := range []string{"Client.Address", "Client.StreetAddress", "Project.Address", "Client.City"} {
				if v := data.Variables[key]; v != "" {
					data.ProjectAddress = v
					break
				}
			}
		}
	}

	// Provider pricing tables replace any regex-derived items wholesale.
	var items []model.LineItem
	var services []string
	var tableTotal float64
	seenCustom := map[string]bool{}
	for _, table := range details.PricingTables {
		if t, ok := parseMoneyString(table.Total); ok && tableTotal == 0 {
			tableTotal = t
		}
		for _, row := range table.Items {
			li := model.LineItem{
				SKU:         row.SKU,
				Title:       row.Name,
				Description: row.Description,
			}
			if qty, ok := parseMoneyString(row.Qty); ok {
				li.Quantity = &qty
			}
			if price, ok := parseMoneyString(row.Price); ok {
				li.Rate = &price
			}
			if sub, ok := parseMoneyString(row.Subtotal); ok {
				li.Total = &sub
			} else if li.Quantity != nil && li.Rate != nil {
				derived := *li.Quantity * *li.Rate
				li.Total = &derived
			}
			items = append(items, li)
			services = append(services, row.Name)

			for k := range row.CustomFields {
				if !seenCustom[k] {
					seenCustom[k] = true
					data.UnmappedFields = append(data.UnmappedFields, "pricing.custom_fields."+k)
				}
			}
		}
	}
	if len(items) > 0 {
		data.LineItems = items
		data.Services = services
	}

	if details.GrandTotal != nil {
		if total, ok := parseMoneyString(details.GrandTotal.Amount); ok {
			data.TotalPrice = total
			if details.GrandTotal.Currency != "" {
				data.Currency = details.GrandTotal.Currency
			}
		}
	} else if data.TotalPrice == 0 && tableTotal > 0 {
		data.TotalPrice = tableTotal
	}
}

// classifyError maps a fetch failure into the persisted error taxonomy.
func classifyError(err error) *model.ProcessingError {
	perr := &model.ProcessingError{
		Message:   err.Error(),
		Type:      "unknown",
		Timestamp: time.Now().UTC(),
	}

	var ce *resilience.ConfigurationError
	var de *resilience.DownloadError
	var pe *resilience.ProviderError
	switch {
	case errors.As(err, &ce):
		perr.Type = "configuration"
	case errors.As(err, &de):
		perr.Type = "download"
	case errors.As(err, &pe):
		perr.Status = pe.StatusCode
		if resilience.IsRetryableStatus(pe.StatusCode) {
			perr.Type = "transient_provider"
		} else {
			perr.Type = "permanent_provider"
		}
	}
	return perr
}

func parseMoneyString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func marshalJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
