package importer

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-intel/internal/model"
	"github.com/sells-group/proposal-intel/internal/store"
)

// ApprovalResult bundles everything materialized by an approval.
type ApprovalResult struct {
	Document *model.Document `json:"document"`
	Lead     *model.Lead     `json:"lead"`
	Quote    *model.Quote    `json:"quote"`
}

// ApproveDocument merges reviewer edits over the stored extraction,
// materializes a Lead and a linked Quote, and transitions the document to
// approved. Only extracted documents are approvable.
func (imp *Importer) ApproveDocument(ctx context.Context, documentID, reviewedBy string, edited *model.ExtractedQuoteData, reviewNotes string) (*ApprovalResult, error) {
	unlock := imp.lockDocument(documentID)
	defer unlock()

	doc, err := imp.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ImportStatus != model.ImportStatusExtracted {
		return nil, eris.Errorf("importer: document %s is %s, only extracted documents can be approved", documentID, doc.ImportStatus)
	}
	if doc.ExtractedData == nil {
		return nil, eris.Errorf("importer: document %s has no extracted data", documentID)
	}

	data := mergeExtractedData(doc.ExtractedData, edited)

	dealStage, probability := mapDealStage(doc.Stage)

	lead := &model.Lead{
		Name:        leadName(doc, data),
		ClientName:  data.ClientName,
		Address:     data.ProjectAddress,
		DealStage:   dealStage,
		Probability: probability,
		Source:      "proposal_import",
	}
	if err := imp.store.CreateLead(ctx, lead); err != nil {
		return nil, err
	}

	quote := &model.Quote{
		LeadID:      lead.ID,
		QuoteNumber: quoteNumber(doc.ExternalID),
		ProjectName: data.ProjectName,
		TotalPrice:  data.TotalPrice,
		Currency:    data.Currency,
		Status:      doc.Stage,
		LineItems:   data.LineItems,
	}
	if err := imp.store.CreateQuote(ctx, quote); err != nil {
		return nil, err
	}

	err = imp.store.SaveReview(ctx, documentID, store.ReviewUpdate{
		Status:        model.ImportStatusApproved,
		ReviewedBy:    reviewedBy,
		ReviewedAt:    time.Now().UTC(),
		ReviewNotes:   reviewNotes,
		ExtractedData: data,
		LinkedQuoteID: quote.ID,
		LinkedLeadID:  lead.ID,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("importer: document approved",
		zap.String("document_id", documentID),
		zap.String("reviewed_by", reviewedBy),
		zap.String("deal_stage", dealStage),
		zap.String("lead_id", lead.ID),
		zap.String("quote_id", quote.ID),
	)

	updated, err := imp.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &ApprovalResult{Document: updated, Lead: lead, Quote: quote}, nil
}

// RejectDocument transitions an extracted document to rejected. Nothing is
// materialized.
func (imp *Importer) RejectDocument(ctx context.Context, documentID, reviewedBy, reviewNotes string) (*model.Document, error) {
	unlock := imp.lockDocument(documentID)
	defer unlock()

	doc, err := imp.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ImportStatus != model.ImportStatusExtracted {
		return nil, eris.Errorf("importer: document %s is %s, only extracted documents can be rejected", documentID, doc.ImportStatus)
	}

	err = imp.store.SaveReview(ctx, documentID, store.ReviewUpdate{
		Status:      model.ImportStatusRejected,
		ReviewedBy:  reviewedBy,
		ReviewedAt:  time.Now().UTC(),
		ReviewNotes: reviewNotes,
	})
	if err != nil {
		return nil, err
	}
	return imp.store.GetDocument(ctx, documentID)
}

// GetStats returns aggregate document counts grouped by import status.
func (imp *Importer) GetStats(ctx context.Context) (model.StatusCounts, error) {
	return imp.store.CountByImportStatus(ctx)
}

// mapDealStage maps a provider stage to the deal-pipeline label and win
// probability.
func mapDealStage(stage string) (string, int) {
	switch stage {
	case "paid", "closed_won":
		return "Closed Won", 100
	case "voided", "declined", "closed_lost":
		return "Closed Lost", 0
	case "sent", "viewed":
		return "Proposal", 50
	default:
		return "Proposal", 50
	}
}

// quoteNumber derives a stable quote number from the provider document id.
func quoteNumber(externalID string) string {
	id := strings.ToUpper(externalID)
	if len(id) > 12 {
		id = id[:12]
	}
	return "Q-" + id
}

func leadName(doc *model.Document, data *model.ExtractedQuoteData) string {
	if data.ProjectName != "" {
		return data.ProjectName
	}
	if doc.ExternalName != "" {
		return doc.ExternalName
	}
	return "Imported proposal " + doc.ExternalID
}

// mergeExtractedData overlays reviewer edits on the stored extraction:
// non-zero edited fields win, untouched fields keep their extracted values.
func mergeExtractedData(base, edits *model.ExtractedQuoteData) *model.ExtractedQuoteData {
	merged := *base
	if edits == nil {
		return &merged
	}

	if edits.ProjectName != "" {
		merged.ProjectName = edits.ProjectName
	}
	if edits.ClientName != "" {
		merged.ClientName = edits.ClientName
	}
	if edits.ClientCompany != "" {
		merged.ClientCompany = edits.ClientCompany
	}
	if edits.ClientEmail != "" {
		merged.ClientEmail = edits.ClientEmail
	}
	if edits.ProjectAddress != "" {
		merged.ProjectAddress = edits.ProjectAddress
	}
	if edits.TotalPrice != 0 {
		merged.TotalPrice = edits.TotalPrice
	}
	if edits.Currency != "" {
		merged.Currency = edits.Currency
	}
	if edits.Subtotal != 0 {
		merged.Subtotal = edits.Subtotal
	}
	if edits.Tax != 0 {
		merged.Tax = edits.Tax
	}
	if edits.Discount != 0 {
		merged.Discount = edits.Discount
	}
	if edits.EstimateNumber != "" {
		merged.EstimateNumber = edits.EstimateNumber
	}
	if edits.EstimateDate != "" {
		merged.EstimateDate = edits.EstimateDate
	}
	if len(edits.Areas) > 0 {
		merged.Areas = edits.Areas
	}
	if len(edits.Services) > 0 {
		merged.Services = edits.Services
	}
	if len(edits.LineItems) > 0 {
		merged.LineItems = edits.LineItems
	}
	if len(edits.Contacts) > 0 {
		merged.Contacts = edits.Contacts
	}
	if len(edits.Variables) > 0 {
		merged.Variables = edits.Variables
	}
	return &merged
}
