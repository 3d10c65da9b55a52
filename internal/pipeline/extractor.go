package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/feichai0017/docflow/internal/agent"
	"github.com/feichai0017/docflow/internal/events"
	"github.com/feichai0017/docflow/internal/models"
	"github.com/feichai0017/docflow/pkg/logger"
	"github.com/feichai0017/docflow/pkg/storage"
)

// Extractor turns the stored upload into text, runs entity extraction
// over it and hands both to the classifier on doc.text.
type Extractor struct {
	Deps
	Files     storage.Storage
	Processor agent.FileProcessor
	Entities  agent.EntityExtractor
}

func (ex *Extractor) Spec() StageSpec {
	return StageSpec{Name: "extractor", InTopic: events.TopicReceived, OutTopic: events.TopicText}
}

func (ex *Extractor) Handle(ctx context.Context, payload []byte) error {
	var ev events.DocReceived
	if err := json.Unmarshal(payload, &ev); err != nil {
		return &DecodeError{Topic: events.TopicReceived, Raw: payload, Err: err}
	}
	if ev.DocID == "" {
		return &DecodeError{Topic: events.TopicReceived, Raw: payload, Err: errMissingDocID}
	}

	reader, err := ex.Files.Get(ctx, ev.FileName)
	if err != nil {
		return &CollaboratorError{DocID: ev.DocID, Op: "storage.get", Err: err}
	}
	text, err := ex.Processor.ProcessFile(ctx, reader, ev.FileName)
	reader.Close()
	if err != nil {
		return &CollaboratorError{DocID: ev.DocID, Op: "process_file", Err: err}
	}

	// The email body travels alongside the attachment text so entities
	// mentioned only in the message are not lost.
	corpus := text
	if body := ev.Metadata[events.MetaEmailBody]; body != "" {
		corpus = body + "\n" + text
	}
	entities, err := ex.Entities.ExtractEntities(ctx, corpus)
	if err != nil {
		return &CollaboratorError{DocID: ev.DocID, Op: "extract_entities", Err: err}
	}
	if len(entities) == 0 {
		entities = json.RawMessage(`{}`)
	}

	doc := ex.patchDocument(ctx, "extractor", ev.DocID, map[string]interface{}{
		"status": models.StatusExtracted,
	})

	data, err := events.Marshal(events.DocText{DocID: ev.DocID, Text: text, Entities: entities})
	if err != nil {
		return err
	}
	if err := ex.Bus.Publish(ctx, events.TopicText, data); err != nil {
		return err
	}

	ex.notifyUpdate(ctx, doc, models.DocumentUpdate{
		DocID:       ev.DocID,
		Status:      string(models.StatusExtracted),
		LastUpdated: time.Now().UTC(),
	})

	ex.Log.Info("Document text extracted",
		logger.String("doc_id", ev.DocID),
		logger.Int("text_len", len(text)),
	)
	return nil
}
