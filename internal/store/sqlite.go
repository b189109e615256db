package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/proposal-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS import_batches (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	status               TEXT NOT NULL DEFAULT 'pending',
	total_documents      INTEGER NOT NULL DEFAULT 0,
	processed_documents  INTEGER NOT NULL DEFAULT 0,
	successful_documents INTEGER NOT NULL DEFAULT 0,
	created_by           TEXT NOT NULL DEFAULT '',
	started_at           DATETIME,
	completed_at         DATETIME,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS documents (
	id                    TEXT PRIMARY KEY,
	batch_id              TEXT NOT NULL DEFAULT '',
	external_id           TEXT NOT NULL UNIQUE,
	external_name         TEXT NOT NULL DEFAULT '',
	external_status       TEXT NOT NULL DEFAULT '',
	external_status_code  INTEGER NOT NULL DEFAULT 0,
	stage                 TEXT NOT NULL DEFAULT '',
	version               TEXT NOT NULL DEFAULT '',
	external_created_at   DATETIME,
	external_updated_at   DATETIME,
	import_status         TEXT NOT NULL DEFAULT 'pending',
	raw_data              TEXT,
	pricing_table_data    TEXT,
	recipients_data       TEXT,
	variables_data        TEXT,
	extracted_data        TEXT,
	extraction_confidence REAL NOT NULL DEFAULT 0,
	extraction_error      TEXT,
	pdf_url               TEXT NOT NULL DEFAULT '',
	reviewed_by           TEXT NOT NULL DEFAULT '',
	reviewed_at           DATETIME,
	review_notes          TEXT NOT NULL DEFAULT '',
	linked_quote_id       TEXT NOT NULL DEFAULT '',
	linked_lead_id        TEXT NOT NULL DEFAULT '',
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	client_name TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	deal_stage  TEXT NOT NULL,
	probability INTEGER NOT NULL DEFAULT 0,
	source      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS quotes (
	id           TEXT PRIMARY KEY,
	lead_id      TEXT NOT NULL REFERENCES leads(id),
	quote_number TEXT NOT NULL,
	project_name TEXT NOT NULL DEFAULT '',
	total_price  REAL NOT NULL DEFAULT 0,
	currency     TEXT NOT NULL DEFAULT 'USD',
	status       TEXT NOT NULL DEFAULT 'draft',
	line_items   TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_documents_external_id ON documents(external_id);
CREATE INDEX IF NOT EXISTS idx_documents_import_status ON documents(import_status);
CREATE INDEX IF NOT EXISTS idx_documents_batch_id ON documents(batch_id);
CREATE INDEX IF NOT EXISTS idx_import_batches_status ON import_batches(status);
CREATE INDEX IF NOT EXISTS idx_quotes_lead_id ON quotes(lead_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, name, createdBy string) (*model.ImportBatch, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_batches (id, name, status, created_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, string(model.BatchStatusPending), createdBy, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert batch")
	}

	return &model.ImportBatch{
		ID:        id,
		Name:      name,
		Status:    model.BatchStatusPending,
		CreatedBy: createdBy,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*model.ImportBatch, error) {
	var b model.ImportBatch
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, total_documents, processed_documents, successful_documents,
		        created_by, started_at, completed_at, created_at
		 FROM import_batches WHERE id = ?`,
		batchID,
	).Scan(&b.ID, &b.Name, &b.Status, &b.TotalDocuments, &b.ProcessedDocuments,
		&b.SuccessfulDocuments, &b.CreatedBy, &b.StartedAt, &b.CompletedAt, &b.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch %s", batchID)
	}
	return &b, nil
}

func (s *SQLiteStore) UpdateBatchStatus(ctx context.Context, batchID string, status model.BatchStatus) error {
	now := time.Now().UTC()
	query := `UPDATE import_batches SET status = ? WHERE id = ?`
	args := []any{string(status), batchID}

	switch status {
	case model.BatchStatusInProgress:
		query = `UPDATE import_batches SET status = ?, started_at = ? WHERE id = ?`
		args = []any{string(status), now, batchID}
	case model.BatchStatusCompleted, model.BatchStatusFailed:
		query = `UPDATE import_batches SET status = ?, completed_at = ? WHERE id = ?`
		args = []any{string(status), now, batchID}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update batch status %s", batchID)
	}
	return checkRowsAffected(res, "batch", batchID)
}

func (s *SQLiteStore) UpdateBatchProgress(ctx context.Context, batchID string, total, processed, successful int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_batches SET total_documents = ?, processed_documents = ?, successful_documents = ? WHERE id = ?`,
		total, processed, successful, batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update batch progress %s", batchID)
	}
	return checkRowsAffected(res, "batch", batchID)
}

func (s *SQLiteStore) InsertDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.ImportStatus == "" {
		doc.ImportStatus = model.ImportStatusPending
	}

	extractedJSON, err := marshalNullableText(doc.ExtractedData)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extracted data")
	}
	errorJSON, err := marshalNullableText(doc.ExtractionError)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extraction error")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, batch_id, external_id, external_name, external_status, external_status_code,
		        stage, version, external_created_at, external_updated_at, import_status,
		        raw_data, pricing_table_data, recipients_data, variables_data,
		        extracted_data, extraction_confidence, extraction_error, pdf_url,
		        reviewed_by, reviewed_at, review_notes, linked_quote_id, linked_lead_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.BatchID, doc.ExternalID, doc.ExternalName, doc.ExternalStatus, doc.ExternalStatusCode,
		doc.Stage, doc.Version, doc.ExternalCreatedAt, doc.ExternalUpdatedAt, string(doc.ImportStatus),
		nullableText(doc.RawData), nullableText(doc.PricingTableData), nullableText(doc.RecipientsData), nullableText(doc.VariablesData),
		extractedJSON, doc.ExtractionConfidence, errorJSON, doc.PDFURL,
		doc.ReviewedBy, doc.ReviewedAt, doc.ReviewNotes, doc.LinkedQuoteID, doc.LinkedLeadID,
		doc.CreatedAt, doc.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert document %s", doc.ExternalID)
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	return doc, nil
}

func (s *SQLiteStore) GetDocumentByExternalID(ctx context.Context, externalID string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE external_id = ?`, externalID)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document by external id %s", externalID)
	}
	return doc, nil
}

func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, id, externalStatus string, statusCode int, stage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET external_status = ?, external_status_code = ?, stage = ?, updated_at = ? WHERE id = ?`,
		externalStatus, statusCode, stage, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document status %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) SetImportStatus(ctx context.Context, id string, status model.ImportStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET import_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set import status %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) SaveExtraction(ctx context.Context, id string, upd ExtractionUpdate) error {
	extractedJSON, err := marshalNullableText(upd.ExtractedData)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extracted data")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET raw_data = ?, pricing_table_data = ?, recipients_data = ?, variables_data = ?,
		        extracted_data = ?, extraction_confidence = ?, pdf_url = ?, extraction_error = NULL, updated_at = ?
		 WHERE id = ?`,
		nullableText(upd.RawData), nullableText(upd.PricingTableData), nullableText(upd.RecipientsData), nullableText(upd.VariablesData),
		extractedJSON, upd.Confidence, upd.PDFURL, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save extraction %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) SaveProcessingError(ctx context.Context, id string, perr *model.ProcessingError) error {
	errorJSON, err := marshalNullableText(perr)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal processing error")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET extraction_error = ?, import_status = ?, updated_at = ? WHERE id = ?`,
		errorJSON, string(model.ImportStatusError), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save processing error %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) SaveReview(ctx context.Context, id string, upd ReviewUpdate) error {
	extractedJSON, err := marshalNullableText(upd.ExtractedData)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal reviewed data")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET import_status = ?, reviewed_by = ?, reviewed_at = ?, review_notes = ?,
		        extracted_data = COALESCE(?, extracted_data), linked_quote_id = ?, linked_lead_id = ?, updated_at = ?
		 WHERE id = ?`,
		string(upd.Status), upd.ReviewedBy, upd.ReviewedAt, upd.ReviewNotes,
		extractedJSON, upd.LinkedQuoteID, upd.LinkedLeadID, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save review %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE 1=1`
	var args []any

	if filter.ImportStatus != "" {
		query += ` AND import_status = ?`
		args = append(args, string(filter.ImportStatus))
	}
	if filter.BatchID != "" {
		query += ` AND batch_id = ?`
		args = append(args, filter.BatchID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		docs = append(docs, *doc)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) CountByImportStatus(ctx context.Context) (model.StatusCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT import_status, COUNT(*) FROM documents GROUP BY import_status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by import status")
	}
	defer rows.Close()

	counts := model.StatusCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[model.ImportStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count iterate")
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	lead.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, name, client_name, address, deal_stage, probability, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Name, lead.ClientName, lead.Address, lead.DealStage, lead.Probability, lead.Source, lead.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert lead")
}

func (s *SQLiteStore) CreateQuote(ctx context.Context, quote *model.Quote) error {
	if quote.ID == "" {
		quote.ID = uuid.New().String()
	}
	quote.CreatedAt = time.Now().UTC()

	itemsJSON, err := json.Marshal(quote.LineItems)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal line items")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quotes (id, lead_id, quote_number, project_name, total_price, currency, status, line_items, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		quote.ID, quote.LeadID, quote.QuoteNumber, quote.ProjectName, quote.TotalPrice,
		quote.Currency, quote.Status, string(itemsJSON), quote.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert quote")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// nullableText maps an empty JSON payload to SQL NULL for TEXT columns.
func nullableText(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// marshalNullableText marshals a pointer value to a TEXT column, mapping nil
// to SQL NULL.
func marshalNullableText(v any) (any, error) {
	b, err := marshalNullable(v)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	return string(b.([]byte)), nil
}
