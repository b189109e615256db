package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-intel/internal/db"
	"github.com/sells-group/proposal-intel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const documentColumns = `id, batch_id, external_id, external_name, external_status, external_status_code,
	stage, version, external_created_at, external_updated_at, import_status,
	raw_data, pricing_table_data, recipients_data, variables_data,
	extracted_data, extraction_confidence, extraction_error, pdf_url,
	reviewed_by, reviewed_at, review_notes, linked_quote_id, linked_lead_id,
	created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations during batch sync.
var preparedStatements = map[string]string{
	"get_document_by_external_id": `SELECT ` + documentColumns + ` FROM documents WHERE external_id = $1`,
	"update_document_status":      `UPDATE documents SET external_status = $1, external_status_code = $2, stage = $3, updated_at = $4 WHERE id = $5`,
	"set_import_status":           `UPDATE documents SET import_status = $1, updated_at = $2 WHERE id = $3`,
	"update_batch_progress":       `UPDATE import_batches SET total_documents = $1, processed_documents = $2, successful_documents = $3 WHERE id = $4`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS import_batches (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	status               TEXT NOT NULL DEFAULT 'pending',
	total_documents      INTEGER NOT NULL DEFAULT 0,
	processed_documents  INTEGER NOT NULL DEFAULT 0,
	successful_documents INTEGER NOT NULL DEFAULT 0,
	created_by           TEXT NOT NULL DEFAULT '',
	started_at           TIMESTAMPTZ,
	completed_at         TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
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
	external_created_at   TIMESTAMPTZ,
	external_updated_at   TIMESTAMPTZ,
	import_status         TEXT NOT NULL DEFAULT 'pending',
	raw_data              JSONB,
	pricing_table_data    JSONB,
	recipients_data       JSONB,
	variables_data        JSONB,
	extracted_data        JSONB,
	extraction_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	extraction_error      JSONB,
	pdf_url               TEXT NOT NULL DEFAULT '',
	reviewed_by           TEXT NOT NULL DEFAULT '',
	reviewed_at           TIMESTAMPTZ,
	review_notes          TEXT NOT NULL DEFAULT '',
	linked_quote_id       TEXT NOT NULL DEFAULT '',
	linked_lead_id        TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	client_name TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	deal_stage  TEXT NOT NULL,
	probability INTEGER NOT NULL DEFAULT 0,
	source      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS quotes (
	id           TEXT PRIMARY KEY,
	lead_id      TEXT NOT NULL REFERENCES leads(id),
	quote_number TEXT NOT NULL,
	project_name TEXT NOT NULL DEFAULT '',
	total_price  DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency     TEXT NOT NULL DEFAULT 'USD',
	status       TEXT NOT NULL DEFAULT 'draft',
	line_items   JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_external_id ON documents(external_id);
CREATE INDEX IF NOT EXISTS idx_documents_import_status ON documents(import_status);
CREATE INDEX IF NOT EXISTS idx_documents_batch_id ON documents(batch_id);
CREATE INDEX IF NOT EXISTS idx_import_batches_status ON import_batches(status);
CREATE INDEX IF NOT EXISTS idx_quotes_lead_id ON quotes(lead_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, name, createdBy string) (*model.ImportBatch, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_batches (id, name, status, created_by, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, name, string(model.BatchStatusPending), createdBy, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert batch")
	}

	return &model.ImportBatch{
		ID:        id,
		Name:      name,
		Status:    model.BatchStatusPending,
		CreatedBy: createdBy,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*model.ImportBatch, error) {
	var b model.ImportBatch
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, status, total_documents, processed_documents, successful_documents,
		        created_by, started_at, completed_at, created_at
		 FROM import_batches WHERE id = $1`,
		batchID,
	).Scan(&b.ID, &b.Name, &b.Status, &b.TotalDocuments, &b.ProcessedDocuments,
		&b.SuccessfulDocuments, &b.CreatedBy, &b.StartedAt, &b.CompletedAt, &b.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get batch %s", batchID)
	}
	return &b, nil
}

func (s *PostgresStore) UpdateBatchStatus(ctx context.Context, batchID string, status model.BatchStatus) error {
	now := time.Now().UTC()
	query := `UPDATE import_batches SET status = $1 WHERE id = $2`
	args := []any{string(status), batchID}

	switch status {
	case model.BatchStatusInProgress:
		query = `UPDATE import_batches SET status = $1, started_at = $2 WHERE id = $3`
		args = []any{string(status), now, batchID}
	case model.BatchStatusCompleted, model.BatchStatusFailed:
		query = `UPDATE import_batches SET status = $1, completed_at = $2 WHERE id = $3`
		args = []any{string(status), now, batchID}
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update batch status %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("batch not found: %s", batchID)
	}
	return nil
}

func (s *PostgresStore) UpdateBatchProgress(ctx context.Context, batchID string, total, processed, successful int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_batches SET total_documents = $1, processed_documents = $2, successful_documents = $3 WHERE id = $4`,
		total, processed, successful, batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update batch progress %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("batch not found: %s", batchID)
	}
	return nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.ImportStatus == "" {
		doc.ImportStatus = model.ImportStatusPending
	}

	extractedJSON, err := marshalNullable(doc.ExtractedData)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extracted data")
	}
	errorJSON, err := marshalNullable(doc.ExtractionError)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extraction error")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`,
		doc.ID, doc.BatchID, doc.ExternalID, doc.ExternalName, doc.ExternalStatus, doc.ExternalStatusCode,
		doc.Stage, doc.Version, doc.ExternalCreatedAt, doc.ExternalUpdatedAt, string(doc.ImportStatus),
		nullableJSON(doc.RawData), nullableJSON(doc.PricingTableData), nullableJSON(doc.RecipientsData), nullableJSON(doc.VariablesData),
		extractedJSON, doc.ExtractionConfidence, errorJSON, doc.PDFURL,
		doc.ReviewedBy, doc.ReviewedAt, doc.ReviewNotes, doc.LinkedQuoteID, doc.LinkedLeadID,
		doc.CreatedAt, doc.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert document %s", doc.ExternalID)
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	return doc, nil
}

func (s *PostgresStore) GetDocumentByExternalID(ctx context.Context, externalID string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE external_id = $1`, externalID)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document by external id %s", externalID)
	}
	return doc, nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id, externalStatus string, statusCode int, stage string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET external_status = $1, external_status_code = $2, stage = $3, updated_at = $4 WHERE id = $5`,
		externalStatus, statusCode, stage, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SetImportStatus(ctx context.Context, id string, status model.ImportStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET import_status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set import status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SaveExtraction(ctx context.Context, id string, upd ExtractionUpdate) error {
	extractedJSON, err := marshalNullable(upd.ExtractedData)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extracted data")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET raw_data = $1, pricing_table_data = $2, recipients_data = $3, variables_data = $4,
		        extracted_data = $5, extraction_confidence = $6, pdf_url = $7, extraction_error = NULL, updated_at = $8
		 WHERE id = $9`,
		nullableJSON(upd.RawData), nullableJSON(upd.PricingTableData), nullableJSON(upd.RecipientsData), nullableJSON(upd.VariablesData),
		extractedJSON, upd.Confidence, upd.PDFURL, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save extraction %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SaveProcessingError(ctx context.Context, id string, perr *model.ProcessingError) error {
	errorJSON, err := marshalNullable(perr)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal processing error")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET extraction_error = $1, import_status = $2, updated_at = $3 WHERE id = $4`,
		errorJSON, string(model.ImportStatusError), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save processing error %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SaveReview(ctx context.Context, id string, upd ReviewUpdate) error {
	extractedJSON, err := marshalNullable(upd.ExtractedData)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal reviewed data")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET import_status = $1, reviewed_by = $2, reviewed_at = $3, review_notes = $4,
		        extracted_data = COALESCE($5, extracted_data), linked_quote_id = $6, linked_lead_id = $7, updated_at = $8
		 WHERE id = $9`,
		string(upd.Status), upd.ReviewedBy, upd.ReviewedAt, upd.ReviewNotes,
		extractedJSON, upd.LinkedQuoteID, upd.LinkedLeadID, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save review %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ImportStatus != "" {
		query += fmt.Sprintf(` AND import_status = $%d`, argIdx)
		args = append(args, string(filter.ImportStatus))
		argIdx++
	}
	if filter.BatchID != "" {
		query += fmt.Sprintf(` AND batch_id = $%d`, argIdx)
		args = append(args, filter.BatchID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, *doc)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) CountByImportStatus(ctx context.Context) (model.StatusCounts, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT import_status, COUNT(*) FROM documents GROUP BY import_status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by import status")
	}
	defer rows.Close()

	counts := model.StatusCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[model.ImportStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count iterate")
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	lead.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, name, client_name, address, deal_stage, probability, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		lead.ID, lead.Name, lead.ClientName, lead.Address, lead.DealStage, lead.Probability, lead.Source, lead.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert lead")
}

func (s *PostgresStore) CreateQuote(ctx context.Context, quote *model.Quote) error {
	if quote.ID == "" {
		quote.ID = uuid.New().String()
	}
	quote.CreatedAt = time.Now().UTC()

	itemsJSON, err := json.Marshal(quote.LineItems)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal line items")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO quotes (id, lead_id, quote_number, project_name, total_price, currency, status, line_items, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		quote.ID, quote.LeadID, quote.QuoteNumber, quote.ProjectName, quote.TotalPrice,
		quote.Currency, quote.Status, itemsJSON, quote.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert quote")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*model.Document, error) {
	var doc model.Document
	var rawData, pricingData, recipientsData, variablesData, extractedJSON, errorJSON []byte

	err := row.Scan(
		&doc.ID, &doc.BatchID, &doc.ExternalID, &doc.ExternalName, &doc.ExternalStatus, &doc.ExternalStatusCode,
		&doc.Stage, &doc.Version, &doc.ExternalCreatedAt, &doc.ExternalUpdatedAt, &doc.ImportStatus,
		&rawData, &pricingData, &recipientsData, &variablesData,
		&extractedJSON, &doc.ExtractionConfidence, &errorJSON, &doc.PDFURL,
		&doc.ReviewedBy, &doc.ReviewedAt, &doc.ReviewNotes, &doc.LinkedQuoteID, &doc.LinkedLeadID,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.RawData = rawData
	doc.PricingTableData = pricingData
	doc.RecipientsData = recipientsData
	doc.VariablesData = variablesData

	if len(extractedJSON) > 0 {
		doc.ExtractedData = &model.ExtractedQuoteData{}
		if err := json.Unmarshal(extractedJSON, doc.ExtractedData); err != nil {
			return nil, eris.Wrap(err, "unmarshal extracted data")
		}
	}
	if len(errorJSON) > 0 {
		doc.ExtractionError = &model.ProcessingError{}
		if err := json.Unmarshal(errorJSON, doc.ExtractionError); err != nil {
			return nil, eris.Wrap(err, "unmarshal extraction error")
		}
	}
	return &doc, nil
}

// nullableJSON maps an empty payload to SQL NULL; empty bytes are not valid
// JSONB.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// marshalNullable marshals a pointer value, mapping nil to SQL NULL.
func marshalNullable(v any) (any, error) {
	switch t := v.(type) {
	case *model.ExtractedQuoteData:
		if t == nil {
			return nil, nil
		}
	case *model.ProcessingError:
		if t == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
