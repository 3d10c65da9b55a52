// Package agent holds the external collaborators the pipeline stages
// call: file-to-text processing, entity extraction, classification and
// summarization. Each is a pure function from the pipeline's point of
// view; failures surface as errors the stage worker catches at its
// per-message boundary.
package agent

import (
	"context"
	"encoding/json"
	"io"
)

// FileProcessor turns a stored upload into normalized text.
type FileProcessor interface {
	ProcessFile(ctx context.Context, reader io.Reader, filename string) (string, error)
}

// EntityExtractor pulls a structured entities object out of text.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) (json.RawMessage, error)
}

// Classification is the result of a classify call. Scores are 0-100.
type Classification struct {
	Category        string  `json:"category"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Classifier categorizes text with its extracted entities.
type Classifier interface {
	Classify(ctx context.Context, text string, entities json.RawMessage) (Classification, error)
}

// Summarizer condenses an email body before it travels further down the
// pipeline.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
