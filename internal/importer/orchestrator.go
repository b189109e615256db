package importer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-intel/internal/model"
	"github.com/sells-group/proposal-intel/internal/resilience"
	"github.com/sells-group/proposal-intel/pkg/pandadoc"
)

// CreateBatch registers a new pending import batch.
func (imp *Importer) CreateBatch(ctx context.Context, name, createdBy string) (*model.ImportBatch, error) {
	if name == "" {
		name = "import-" + time.Now().UTC().Format("2006-01-02T15:04:05")
	}
	return imp.store.CreateBatch(ctx, name, createdBy)
}

// StartImport pages through the provider listing for the date range and
// upserts a Document row per result, keyed by external id. Re-running over
// the same range with a fresh batch creates no duplicates and touches only
// documents whose provider status actually changed. A mid-loop failure marks
// the batch failed with partial counters intact and rethrows. Batches are
// terminal once completed or failed; only a pending batch can start.
func (imp *Importer) StartImport(ctx context.Context, batchID string, dateFrom, dateTo time.Time) (*model.ImportResult, error) {
	batch, err := imp.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != model.BatchStatusPending {
		return nil, eris.Errorf("importer: batch %s is %s, only pending batches can start", batchID, batch.Status)
	}

	if err := imp.store.UpdateBatchStatus(ctx, batchID, model.BatchStatusInProgress); err != nil {
		return nil, err
	}

	result, err := imp.runImport(ctx, batchID, dateFrom, dateTo)
	if err != nil {
		if sErr := imp.store.UpdateBatchStatus(ctx, batchID, model.BatchStatusFailed); sErr != nil {
			zap.L().Error("importer: failed to mark batch failed",
				zap.String("batch_id", batchID), zap.Error(sErr))
		}
		return nil, eris.Wrapf(err, "importer: batch %s", batchID)
	}

	if err := imp.store.UpdateBatchStatus(ctx, batchID, model.BatchStatusCompleted); err != nil {
		return nil, err
	}
	return result, nil
}

func (imp *Importer) runImport(ctx context.Context, batchID string, dateFrom, dateTo time.Time) (*model.ImportResult, error) {
	var found, imported int

	for page := 1; ; page++ {
		listing, err := resilience.DoVal(ctx, imp.cfg.FetchRetry, func(ctx context.Context) (*pandadoc.ListResponse, error) {
			return imp.provider.ListDocuments(ctx, pandadoc.ListParams{
				DateFrom: dateFrom,
				DateTo:   dateTo,
				Page:     page,
				Count:    imp.cfg.PageSize,
			})
		})
		if err != nil {
			return nil, eris.Wrapf(err, "list page %d", page)
		}
		if len(listing.Results) == 0 {
			break
		}

		for _, item := range listing.Results {
			found++
			inserted, err := imp.upsertDocument(ctx, batchID, item)
			if err != nil {
				return nil, err
			}
			if inserted {
				imported++
			}
		}

		if err := imp.store.UpdateBatchProgress(ctx, batchID, found, found, imported); err != nil {
			return nil, err
		}

		zap.L().Info("importer: page synced",
			zap.String("batch_id", batchID),
			zap.Int("page", page),
			zap.Int("found", found),
			zap.Int("imported", imported),
		)

		if len(listing.Results) < imp.cfg.PageSize {
			break
		}

		// Provider rate limit: pause between pages.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(imp.cfg.PageDelay):
		}
	}

	return &model.ImportResult{DocumentsFound: found, DocumentsImported: imported}, nil
}

// upsertDocument inserts a new Document for an unseen external id, or
// updates status fields when the provider status changed. Reports whether a
// new row was inserted.
func (imp *Importer) upsertDocument(ctx context.Context, batchID string, item pandadoc.ListedDocument) (bool, error) {
	existing, err := imp.store.GetDocumentByExternalID(ctx, item.ID)
	if err != nil {
		return false, err
	}

	info := pandadoc.MapStatus(item.Status)

	if existing == nil {
		doc := &model.Document{
			BatchID:            batchID,
			ExternalID:         item.ID,
			ExternalName:       item.Name,
			ExternalStatus:     item.Status,
			ExternalStatusCode: info.Code,
			Stage:              info.Stage,
			Version:            item.Version,
			ExternalCreatedAt:  item.DateCreated,
			ExternalUpdatedAt:  item.DateModified,
			ImportStatus:       model.ImportStatusPending,
		}
		if err := imp.store.InsertDocument(ctx, doc); err != nil {
			return false, err
		}
		return true, nil
	}

	if existing.ExternalStatus == item.Status && existing.Stage == info.Stage {
		return false, nil
	}
	return false, imp.store.UpdateDocumentStatus(ctx, existing.ID, item.Status, info.Code, info.Stage)
}
