// Package pipeline contains the four stage workers that advance a
// document from ingestion to routing, and the supervision glue around
// them. Stages coordinate only through bus messages and the document
// store; nothing is handed off in memory.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/feichai0017/docflow/internal/models"
	"github.com/feichai0017/docflow/internal/notify"
	"github.com/feichai0017/docflow/internal/store"
	"github.com/feichai0017/docflow/pkg/bus"
	"github.com/feichai0017/docflow/pkg/logger"
)

// Deps are the shared resources every stage handler needs.
type Deps struct {
	Bus      bus.Bus
	Store    store.Store
	Notifier notify.Notifier
	Log      logger.Logger
}

// patchDocument applies updates to the document and returns the fresh
// record. A missing document is logged and swallowed: the stage still
// publishes downstream so the rest of the pipeline sees the event.
func (d *Deps) patchDocument(ctx context.Context, stage, docID string, updates map[string]interface{}) *models.Document {
	doc, err := d.Store.Patch(ctx, docID, updates)
	if errors.Is(err, store.ErrNotFound) {
		d.Log.Warn("Document not found during update, continuing",
			logger.String("stage", stage),
			logger.String("doc_id", docID),
		)
		return nil
	}
	if err != nil {
		d.Log.Error("Failed to update document",
			logger.String("stage", stage),
			logger.String("doc_id", docID),
			logger.Error(err),
		)
		return nil
	}
	return doc
}

// notifyUpdate pushes a document-update notification, preferring the
// stored record and falling back to event-derived values when the store
// missed.
func (d *Deps) notifyUpdate(ctx context.Context, doc *models.Document, fallback models.DocumentUpdate) {
	update := fallback
	if doc != nil {
		update = doc.Update()
	}
	if update.LastUpdated.IsZero() {
		update.LastUpdated = time.Now().UTC()
	}
	if err := d.Notifier.DocumentUpdate(ctx, update); err != nil {
		d.Log.Warn("Failed to send document update notification",
			logger.String("doc_id", update.DocID),
			logger.Error(err),
		)
	}
}
