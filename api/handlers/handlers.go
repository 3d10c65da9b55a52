package handlers

import (
	"github.com/feichai0017/docflow/internal/broadcast"
	"github.com/feichai0017/docflow/internal/service/document"
	"github.com/feichai0017/docflow/pkg/logger"
)

type Handlers struct {
	Ingestion *IngestionHandler
	Documents *DocumentHandler
	Realtime  *RealtimeHandler
}

func NewHandlers(
	documentService document.DocumentService,
	documentHub *broadcast.Hub,
	mailboxHub *broadcast.Hub,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Ingestion: NewIngestionHandler(documentService, log),
		Documents: NewDocumentHandler(documentService, log),
		Realtime:  NewRealtimeHandler(documentHub, mailboxHub, log),
	}
}
