// Package store persists import batches, documents and materialized business
// records. Two implementations share the Store interface: Postgres via
// pgxpool for deployments, SQLite via modernc.org/sqlite for local use.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sells-group/proposal-intel/internal/model"
)

// DocumentFilter specifies criteria for listing documents.
type DocumentFilter struct {
	ImportStatus model.ImportStatus `json:"import_status,omitempty"`
	BatchID      string             `json:"batch_id,omitempty"`
	Limit        int                `json:"limit,omitempty"`
	Offset       int                `json:"offset,omitempty"`
}

// ExtractionUpdate carries everything persisted when a document finishes
// extraction: the raw provider payloads, the structured result and its
// confidence, and the PDF location.
type ExtractionUpdate struct {
	RawData          json.RawMessage
	PricingTableData json.RawMessage
	RecipientsData   json.RawMessage
	VariablesData    json.RawMessage
	ExtractedData    *model.ExtractedQuoteData
	Confidence       float64
	PDFURL           string
}

// ReviewUpdate records a human review decision. ExtractedData is the edited
// result to persist on approval; nil keeps the stored extraction.
type ReviewUpdate struct {
	Status        model.ImportStatus
	ReviewedBy    string
	ReviewedAt    time.Time
	ReviewNotes   string
	ExtractedData *model.ExtractedQuoteData
	LinkedQuoteID string
	LinkedLeadID  string
}

// Store defines the persistence interface for the extraction pipeline.
type Store interface {
	// Batches
	CreateBatch(ctx context.Context, name, createdBy string) (*model.ImportBatch, error)
	GetBatch(ctx context.Context, batchID string) (*model.ImportBatch, error)
	UpdateBatchStatus(ctx context.Context, batchID string, status model.BatchStatus) error
	UpdateBatchProgress(ctx context.Context, batchID string, total, processed, successful int) error

	// Documents
	InsertDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	GetDocumentByExternalID(ctx context.Context, externalID string) (*model.Document, error)
	UpdateDocumentStatus(ctx context.Context, id, externalStatus string, statusCode int, stage string) error
	SetImportStatus(ctx context.Context, id string, status model.ImportStatus) error
	SaveExtraction(ctx context.Context, id string, upd ExtractionUpdate) error
	SaveProcessingError(ctx context.Context, id string, perr *model.ProcessingError) error
	SaveReview(ctx context.Context, id string, upd ReviewUpdate) error
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error)
	CountByImportStatus(ctx context.Context) (model.StatusCounts, error)

	// Materialized records
	CreateLead(ctx context.Context, lead *model.Lead) error
	CreateQuote(ctx context.Context, quote *model.Quote) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
