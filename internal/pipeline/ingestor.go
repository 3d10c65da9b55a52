package pipeline

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/feichai0017/docflow/internal/agent"
	"github.com/feichai0017/docflow/internal/events"
	"github.com/feichai0017/docflow/internal/models"
	"github.com/feichai0017/docflow/pkg/logger"
)

// mediumPriorityBytes is the file size above which a document is bumped
// from low to medium priority.
const mediumPriorityBytes = 10 * 1024 * 1024

// Ingestor is the first stage. It assigns a priority from the intake
// metadata, condenses email bodies so downstream prompts stay small, and
// re-announces the document on doc.received.
type Ingestor struct {
	Deps
	Summarizer   agent.Summarizer
	AllowSenders []string
}

func (in *Ingestor) Spec() StageSpec {
	return StageSpec{Name: "ingestor", InTopic: events.TopicInitialize, OutTopic: events.TopicReceived}
}

func (in *Ingestor) Handle(ctx context.Context, payload []byte) error {
	var ev events.DocReceived
	if err := json.Unmarshal(payload, &ev); err != nil {
		return &DecodeError{Topic: events.TopicInitialize, Raw: payload, Err: err}
	}
	if ev.DocID == "" {
		return &DecodeError{Topic: events.TopicInitialize, Raw: payload, Err: errMissingDocID}
	}

	if ev.Metadata == nil {
		ev.Metadata = map[string]string{}
	}
	ev.Priority = in.priority(ev.Metadata)

	if body := ev.Metadata[events.MetaEmailBody]; body != "" &&
		ev.Metadata[events.MetaInputType] == events.InputEmailHook && in.Summarizer != nil {
		summary, err := in.Summarizer.Summarize(ctx, body)
		if err != nil {
			return &CollaboratorError{DocID: ev.DocID, Op: "summarize", Err: err}
		}
		ev.Metadata[events.MetaEmailBody] = summary
	}

	doc, err := in.Store.Get(ctx, ev.DocID)
	if err != nil {
		in.Log.Warn("Document not found at ingestion, continuing",
			logger.String("doc_id", ev.DocID),
			logger.Error(err),
		)
	}

	data, err := events.Marshal(ev)
	if err != nil {
		return err
	}
	if err := in.Bus.Publish(ctx, events.TopicReceived, data); err != nil {
		return err
	}

	in.notifyUpdate(ctx, doc, models.DocumentUpdate{
		DocID:       ev.DocID,
		Status:      string(models.StatusIngested),
		LastUpdated: time.Now().UTC(),
	})

	in.Log.Info("Document ingested",
		logger.String("doc_id", ev.DocID),
		logger.String("file_name", ev.FileName),
		logger.String("priority", ev.Priority),
	)
	return nil
}

// priority ranks intake: allow-listed senders first, then large files,
// everything else low.
func (in *Ingestor) priority(meta map[string]string) string {
	if sender := meta[events.MetaSender]; sender != "" {
		for _, allowed := range in.AllowSenders {
			if sender == allowed {
				return events.PriorityHigh
			}
		}
	}
	if raw := meta[events.MetaFileSize]; raw != "" {
		if size, err := strconv.ParseInt(raw, 10, 64); err == nil && size > mediumPriorityBytes {
			return events.PriorityMedium
		}
	}
	return events.PriorityLow
}
