package model

import (
	"encoding/json"
	"time"
)

// ImportStatus represents where a document sits in the review pipeline.
// Transitions are monotone: pending|error -> fetching -> extracted ->
// approved|rejected. Only error is re-enterable.
type ImportStatus string

const (
	ImportStatusPending   ImportStatus = "pending"
	ImportStatusFetching  ImportStatus = "fetching"
	ImportStatusExtracted ImportStatus = "extracted"
	ImportStatusApproved  ImportStatus = "approved"
	ImportStatusRejected  ImportStatus = "rejected"
	ImportStatusError     ImportStatus = "error"
)

// Document is one provider document tracked through import, extraction and
// review. Uniquely identified by ExternalID; batch sync upserts on that key.
type Document struct {
	ID                   string              `json:"id"`
	BatchID              string              `json:"batch_id,omitempty"`
	ExternalID           string              `json:"external_id"`
	ExternalName         string              `json:"external_name"`
	ExternalStatus       string              `json:"external_status"`
	ExternalStatusCode   int                 `json:"external_status_code"`
	Stage                string              `json:"stage"`
	Version              string              `json:"version,omitempty"`
	ExternalCreatedAt    *time.Time          `json:"external_created_at,omitempty"`
	ExternalUpdatedAt    *time.Time          `json:"external_updated_at,omitempty"`
	ImportStatus         ImportStatus        `json:"import_status"`
	RawData              json.RawMessage     `json:"raw_data,omitempty"`
	PricingTableData     json.RawMessage     `json:"pricing_table_data,omitempty"`
	RecipientsData       json.RawMessage     `json:"recipients_data,omitempty"`
	VariablesData        json.RawMessage     `json:"variables_data,omitempty"`
	ExtractedData        *ExtractedQuoteData `json:"extracted_data,omitempty"`
	ExtractionConfidence float64             `json:"extraction_confidence"`
	ExtractionError      *ProcessingError    `json:"extraction_error,omitempty"`
	PDFURL               string              `json:"pdf_url,omitempty"`
	ReviewedBy           string              `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time          `json:"reviewed_at,omitempty"`
	ReviewNotes          string              `json:"review_notes,omitempty"`
	LinkedQuoteID        string              `json:"linked_quote_id,omitempty"`
	LinkedLeadID         string              `json:"linked_lead_id,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// ProcessingError is the structured, timestamped error payload persisted
// when document processing fails unrecoverably. Shown to operators for triage.
type ProcessingError struct {
	Message   string    `json:"message"`
	Status    int       `json:"status,omitempty"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusCounts aggregates document counts grouped by import status.
type StatusCounts map[ImportStatus]int

// Total returns the sum across all statuses.
func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
