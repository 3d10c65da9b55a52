package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/feichai0017/docflow/internal/events"
	"github.com/feichai0017/docflow/internal/models"
	"github.com/feichai0017/docflow/pkg/logger"
)

// RouteTable maps a document type to its delivery destination. Lookup
// is case-insensitive; unknown types fall through to the default.
type RouteTable struct {
	destinations map[string]string
	fallback     string
}

// NewRouteTable builds a table from configuration. Empty inputs get the
// built-in routes: invoices to accounting, contracts to the CRM and
// everything else to the archive.
func NewRouteTable(destinations map[string]string, fallback string) RouteTable {
	if len(destinations) == 0 {
		destinations = map[string]string{
			"invoice":  "accounting_system",
			"contract": "crm_system",
		}
	}
	normalized := make(map[string]string, len(destinations))
	for typ, dest := range destinations {
		normalized[strings.ToLower(typ)] = dest
	}
	if fallback == "" {
		fallback = "archive"
	}
	return RouteTable{destinations: normalized, fallback: fallback}
}

// Resolve returns the destination for a document type.
func (t RouteTable) Resolve(docType string) string {
	if dest, ok := t.destinations[strings.ToLower(docType)]; ok {
		return dest
	}
	return t.fallback
}

// Router is the terminal stage: it resolves a destination for the
// classified document and records the routing decision. Routing is a
// pure lookup, so redelivery of the same doc.type event lands in the
// same place.
type Router struct {
	Deps
	Table RouteTable
}

func (r *Router) Spec() StageSpec {
	return StageSpec{Name: "router", InTopic: events.TopicType, OutTopic: events.TopicRouted}
}

func (r *Router) Handle(ctx context.Context, payload []byte) error {
	var ev events.DocType
	if err := json.Unmarshal(payload, &ev); err != nil {
		return &DecodeError{Topic: events.TopicType, Raw: payload, Err: err}
	}
	if ev.DocID == "" {
		return &DecodeError{Topic: events.TopicType, Raw: payload, Err: errMissingDocID}
	}

	destination := r.Table.Resolve(ev.Type)

	doc := r.patchDocument(ctx, "router", ev.DocID, map[string]interface{}{
		"status":      models.StatusRouted,
		"destination": destination,
	})

	data, err := events.Marshal(events.DocRouted{
		DocID:       ev.DocID,
		Destination: destination,
		Status:      string(models.StatusRouted),
	})
	if err != nil {
		return err
	}
	if err := r.Bus.Publish(ctx, events.TopicRouted, data); err != nil {
		return err
	}

	r.notifyUpdate(ctx, doc, models.DocumentUpdate{
		DocID:       ev.DocID,
		Status:      string(models.StatusRouted),
		Destination: &destination,
		LastUpdated: time.Now().UTC(),
	})

	r.Log.Info("Document routed",
		logger.String("doc_id", ev.DocID),
		logger.String("type", ev.Type),
		logger.String("destination", destination),
	)
	return nil
}
