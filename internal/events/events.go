// Package events defines the messages exchanged between pipeline stages
// and the routing keys they travel on. Events are plain UTF-8 JSON;
// receivers ignore unknown fields so producers can add fields without
// breaking older consumers.
package events

import (
	"encoding/json"
	"fmt"
)

// Routing keys. The mapping of stage to input/output topic is fixed and
// forms the pipeline graph (see the pipeline package).
const (
	TopicInitialize = "doc.initialize"
	TopicReceived   = "doc.received"
	TopicText       = "doc.text"
	TopicType       = "doc.type"
	TopicRouted     = "doc.routed"
)

// Metadata keys carried on DocReceived.
const (
	MetaInputType = "input_type"
	MetaFileSize  = "file_size"
	MetaSender    = "sender"
	MetaSubject   = "subject"
	MetaFolder    = "folder"
	MetaEmailBody = "email_body"
)

// Input types recorded under MetaInputType.
const (
	InputFileUpload = "file_upload"
	InputFileShare  = "file_share"
	InputEmailHook  = "email_hook"
)

// Priorities assigned by the ingestor. Advisory only for now; nothing
// schedules on them yet.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// DocReceived announces a newly ingested document. It rides both
// doc.initialize (before the ingestor has assigned a priority) and
// doc.received (after).
type DocReceived struct {
	DocID    string            `json:"doc_id"`
	FileName string            `json:"file_name"`
	Metadata map[string]string `json:"metadata"`
	Priority string            `json:"priority,omitempty"`
}

// DocText carries the extracted text and entities to the classifier.
type DocText struct {
	DocID    string          `json:"doc_id"`
	Text     string          `json:"text"`
	Entities json.RawMessage `json:"entities"`
}

// DocType carries the classification result to the router.
type DocType struct {
	DocID string  `json:"doc_id"`
	Type  string  `json:"type"`
	Score float64 `json:"score"`
}

// DocRouted is the terminal event of the pipeline.
type DocRouted struct {
	DocID       string `json:"doc_id"`
	Destination string `json:"destination"`
	Status      string `json:"status"`
}

// Marshal serializes an event for the bus.
func Marshal(ev interface{}) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// Topics lists every routing key in pipeline order.
func Topics() []string {
	return []string{TopicInitialize, TopicReceived, TopicText, TopicType, TopicRouted}
}

// Known reports whether topic is a declared routing key.
func Known(topic string) bool {
	for _, t := range Topics() {
		if t == topic {
			return true
		}
	}
	return false
}
