package models

import (
	"time"
)

// DocumentStatus is the pipeline stage a document has last completed.
type DocumentStatus string

const (
	StatusIngested   DocumentStatus = "ingested"
	StatusExtracted  DocumentStatus = "extracted"
	StatusClassified DocumentStatus = "classified"
	StatusRouted     DocumentStatus = "routed"
)

var statusOrder = map[DocumentStatus]int{
	StatusIngested:   0,
	StatusExtracted:  1,
	StatusClassified: 2,
	StatusRouted:     3,
}

// Order returns the position of s in the normal pipeline progression,
// or -1 for an unknown status.
func (s DocumentStatus) Order() int {
	if n, ok := statusOrder[s]; ok {
		return n
	}
	return -1
}

// Before reports whether s precedes other in the normal progression.
func (s DocumentStatus) Before(other DocumentStatus) bool {
	return s.Order() < other.Order()
}

// Valid reports whether s is a known pipeline status.
func (s DocumentStatus) Valid() bool {
	return s.Order() >= 0
}

// Document is the persistent record tracking one unit of work. It is
// created at the ingestion boundary and advanced by the stage workers;
// the pipeline never deletes it.
type Document struct {
	ID          string         `gorm:"primaryKey" json:"doc_id"`
	Name        string         `gorm:"not null" json:"name"`
	Status      DocumentStatus `gorm:"not null" json:"status"`
	Type        *string        `json:"type"`
	Confidence  *float64       `json:"confidence"`
	Destination *string        `json:"destination"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}

// DocumentUpdate is the payload fanned out to document observers after
// every state change.
type DocumentUpdate struct {
	DocID       string    `json:"doc_id"`
	Status      string    `json:"status"`
	Type        *string   `json:"type"`
	Confidence  *float64  `json:"confidence"`
	Destination *string   `json:"destination"`
	LastUpdated time.Time `json:"last_updated"`
}

// Update builds the observer payload for the document's current state.
func (d *Document) Update() DocumentUpdate {
	return DocumentUpdate{
		DocID:       d.ID,
		Status:      string(d.Status),
		Type:        d.Type,
		Confidence:  d.Confidence,
		Destination: d.Destination,
		LastUpdated: d.UpdatedAt,
	}
}

// MailboxStatus is the payload fanned out to mailbox observers; polling
// and webhook collaborators report connectivity and per-document intake
// through it.
type MailboxStatus struct {
	ConfigID string  `json:"config_id"`
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	DocID    *string `json:"doc_id,omitempty"`
}
