package model

import "time"

// BatchStatus represents the lifecycle state of an import batch.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// ImportBatch tracks one sync run against the document provider. Terminal
// once completed or failed; counters survive a mid-run failure so partial
// progress stays visible.
type ImportBatch struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	Status              BatchStatus `json:"status"`
	TotalDocuments      int         `json:"total_documents"`
	ProcessedDocuments  int         `json:"processed_documents"`
	SuccessfulDocuments int         `json:"successful_documents"`
	CreatedBy           string      `json:"created_by,omitempty"`
	StartedAt           *time.Time  `json:"started_at,omitempty"`
	CompletedAt         *time.Time  `json:"completed_at,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
}

// ImportResult summarizes a completed StartImport invocation.
type ImportResult struct {
	DocumentsFound    int `json:"documents_found"`
	DocumentsImported int `json:"documents_imported"`
}
