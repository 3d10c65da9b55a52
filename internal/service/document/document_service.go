package document

import (
	"context"
	"mime/multipart"

	"github.com/feichai0017/docflow/internal/models"
)

// EmailAttachment is one base64-encoded file from an inbound email.
type EmailAttachment struct {
	Filename string `json:"filename" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// EmailIngest is the payload of the email webhook.
type EmailIngest struct {
	ConfigID    string            `json:"config_id"`
	Sender      string            `json:"sender" binding:"required"`
	Subject     string            `json:"subject"`
	Folder      string            `json:"folder"`
	Body        string            `json:"body"`
	Attachments []EmailAttachment `json:"attachments" binding:"required,min=1"`
}

// Override is a manual correction of a document's classification or
// destination. At least one field must be set.
type Override struct {
	Type        *string  `json:"type"`
	Confidence  *float64 `json:"confidence"`
	Destination *string  `json:"destination"`
}

// DocumentService is the ingestion and query boundary in front of the
// pipeline. Ingestion stores the file, creates the tracking record and
// emits doc.initialize; everything after that happens in the workers.
type DocumentService interface {
	Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader, source string) (*models.Document, error)
	UploadBatch(ctx context.Context, files []*multipart.FileHeader, source string) ([]*models.Document, error)
	IngestEmail(ctx context.Context, email EmailIngest) ([]*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context) ([]*models.Document, error)
	Override(ctx context.Context, id string, req Override) (*models.Document, error)
}
