package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/feichai0017/docflow/internal/agent"
	"github.com/feichai0017/docflow/internal/events"
	"github.com/feichai0017/docflow/internal/models"
	"github.com/feichai0017/docflow/pkg/logger"
)

// Classifier assigns a document type and confidence from the extracted
// text and entities, then hands off to the router on doc.type.
type Classifier struct {
	Deps
	Agent agent.Classifier
}

func (c *Classifier) Spec() StageSpec {
	return StageSpec{Name: "classifier", InTopic: events.TopicText, OutTopic: events.TopicType}
}

func (c *Classifier) Handle(ctx context.Context, payload []byte) error {
	var ev events.DocText
	if err := json.Unmarshal(payload, &ev); err != nil {
		return &DecodeError{Topic: events.TopicText, Raw: payload, Err: err}
	}
	if ev.DocID == "" {
		return &DecodeError{Topic: events.TopicText, Raw: payload, Err: errMissingDocID}
	}

	result, err := c.Agent.Classify(ctx, ev.Text, ev.Entities)
	if err != nil {
		return &CollaboratorError{DocID: ev.DocID, Op: "classify", Err: err}
	}

	doc := c.patchDocument(ctx, "classifier", ev.DocID, map[string]interface{}{
		"status":     models.StatusClassified,
		"type":       result.Category,
		"confidence": result.ConfidenceScore,
	})

	data, err := events.Marshal(events.DocType{
		DocID: ev.DocID,
		Type:  result.Category,
		Score: result.ConfidenceScore,
	})
	if err != nil {
		return err
	}
	if err := c.Bus.Publish(ctx, events.TopicType, data); err != nil {
		return err
	}

	typ := result.Category
	conf := result.ConfidenceScore
	c.notifyUpdate(ctx, doc, models.DocumentUpdate{
		DocID:       ev.DocID,
		Status:      string(models.StatusClassified),
		Type:        &typ,
		Confidence:  &conf,
		LastUpdated: time.Now().UTC(),
	})

	c.Log.Info("Document classified",
		logger.String("doc_id", ev.DocID),
		logger.String("type", result.Category),
		logger.Float64("confidence", result.ConfidenceScore),
	)
	return nil
}
