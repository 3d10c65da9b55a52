package pipeline

import (
	"errors"
	"fmt"
)

// errMissingDocID flags an otherwise well-formed event payload with no
// document id; nothing downstream can act on it.
var errMissingDocID = errors.New("event has no doc_id")

// DecodeError reports a malformed event payload. The message is dropped
// without acknowledgement and the document stays at its prior status.
type DecodeError struct {
	Topic string
	Raw   []byte
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode event on %s: %v", e.Topic, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CollaboratorError reports a failed external call (OCR, extraction,
// classification, file I/O). Caught at the per-message boundary; the
// message is left unacknowledged and the document stalls at its last
// successful status.
type CollaboratorError struct {
	DocID string
	Op    string
	Err   error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s failed for document %s: %v", e.Op, e.DocID, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
