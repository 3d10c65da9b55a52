package document

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/docflow/config"
	"github.com/feichai0017/docflow/internal/events"
	"github.com/feichai0017/docflow/internal/models"
	"github.com/feichai0017/docflow/internal/notify"
	"github.com/feichai0017/docflow/internal/store"
	"github.com/feichai0017/docflow/pkg/bus"
	"github.com/feichai0017/docflow/pkg/logger"
	"github.com/feichai0017/docflow/pkg/storage"
)

type documentService struct {
	store    store.Store
	bus      bus.Bus
	files    storage.Storage
	notifier notify.Notifier
	logger   logger.Logger
	config   config.IngestConfig
}

// NewService wires the ingestion boundary.
func NewService(
	st store.Store,
	b bus.Bus,
	files storage.Storage,
	notifier notify.Notifier,
	log logger.Logger,
	cfg config.IngestConfig,
) DocumentService {
	return &documentService{
		store:    st,
		bus:      b,
		files:    files,
		notifier: notifier,
		logger:   log,
		config:   cfg,
	}
}

// Upload stores a single file and starts the pipeline for it. source is
// the intake channel, file_upload or file_share.
func (s *documentService) Upload(
	ctx context.Context,
	file multipart.File,
	header *multipart.FileHeader,
	source string,
) (*models.Document, error) {
	s.logger.Info("Starting file ingestion",
		logger.String("filename", header.Filename),
		logger.Int64("size", header.Size),
		logger.String("source", source),
	)

	if err := s.validateFile(header); err != nil {
		s.logger.Error("File validation failed",
			logger.String("filename", header.Filename),
			logger.Error(err),
		)
		return nil, err
	}
	if source == "" {
		source = events.InputFileUpload
	}

	meta := map[string]string{
		events.MetaInputType: source,
		events.MetaFileSize:  strconv.FormatInt(header.Size, 10),
	}
	return s.ingest(ctx, file, header.Filename, meta)
}

// UploadBatch ingests several files concurrently. Files that fail leave
// the rest of the batch untouched; the caller gets the documents that
// made it plus the first error.
func (s *documentService) UploadBatch(
	ctx context.Context,
	files []*multipart.FileHeader,
	source string,
) ([]*models.Document, error) {
	docs := make([]*models.Document, 0, len(files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, header := range files {
		header := header
		g.Go(func() error {
			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open file %s: %w", header.Filename, err)
			}
			defer file.Close()

			doc, err := s.Upload(ctx, file, header, source)
			if err != nil {
				return fmt.Errorf("failed to ingest file %s: %w", header.Filename, err)
			}

			mu.Lock()
			docs = append(docs, doc)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return docs, err
	}
	return docs, nil
}

// IngestEmail unpacks an email webhook: every attachment becomes its
// own document carrying the sender, subject and body as metadata.
// Mailbox observers get a status line per attachment.
func (s *documentService) IngestEmail(ctx context.Context, email EmailIngest) ([]*models.Document, error) {
	if len(email.Attachments) == 0 {
		return nil, fmt.Errorf("email from %s has no attachments", email.Sender)
	}

	s.logger.Info("Ingesting email",
		logger.String("sender", email.Sender),
		logger.String("subject", email.Subject),
		logger.Int("attachments", len(email.Attachments)),
	)

	docs := make([]*models.Document, 0, len(email.Attachments))
	for _, att := range email.Attachments {
		content, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			s.reportMailbox(ctx, email.ConfigID, "error",
				fmt.Sprintf("attachment %s is not valid base64", att.Filename), nil)
			return docs, fmt.Errorf("failed to decode attachment %s: %w", att.Filename, err)
		}
		if err := s.validateName(att.Filename, int64(len(content))); err != nil {
			s.reportMailbox(ctx, email.ConfigID, "error",
				fmt.Sprintf("attachment %s rejected: %v", att.Filename, err), nil)
			return docs, err
		}

		meta := map[string]string{
			events.MetaInputType: events.InputEmailHook,
			events.MetaFileSize:  strconv.Itoa(len(content)),
			events.MetaSender:    email.Sender,
			events.MetaSubject:   email.Subject,
			events.MetaFolder:    email.Folder,
			events.MetaEmailBody: email.Body,
		}
		doc, err := s.ingest(ctx, bytes.NewReader(content), att.Filename, meta)
		if err != nil {
			s.reportMailbox(ctx, email.ConfigID, "error",
				fmt.Sprintf("attachment %s failed: %v", att.Filename, err), nil)
			return docs, err
		}
		docs = append(docs, doc)
		s.reportMailbox(ctx, email.ConfigID, "received",
			fmt.Sprintf("attachment %s accepted", att.Filename), &doc.ID)
	}
	return docs, nil
}

func (s *documentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.store.Get(ctx, id)
}

func (s *documentService) List(ctx context.Context) ([]*models.Document, error) {
	return s.store.List(ctx)
}

// Override applies a manual correction. Setting the type or confidence
// re-announces the document on doc.type so the router picks it up;
// setting the destination records the routing directly and emits a
// single doc.routed. A destination-only override leaves the stored
// type and confidence untouched.
func (s *documentService) Override(ctx context.Context, id string, req Override) (*models.Document, error) {
	if req.Type == nil && req.Confidence == nil && req.Destination == nil {
		return nil, fmt.Errorf("override requires at least one of type, confidence or destination")
	}

	updates := map[string]interface{}{}
	if req.Type != nil {
		updates["type"] = *req.Type
	}
	if req.Confidence != nil {
		updates["confidence"] = *req.Confidence
	}
	if req.Destination != nil {
		updates["destination"] = *req.Destination
		updates["status"] = models.StatusRouted
	} else {
		updates["status"] = models.StatusClassified
	}

	doc, err := s.store.Patch(ctx, id, updates)
	if err != nil {
		return nil, err
	}

	if req.Destination != nil {
		data, err := events.Marshal(events.DocRouted{
			DocID:       id,
			Destination: *req.Destination,
			Status:      string(models.StatusRouted),
		})
		if err != nil {
			return nil, err
		}
		if err := s.bus.Publish(ctx, events.TopicRouted, data); err != nil {
			return nil, err
		}
	} else {
		// No destination given: hand the corrected classification back
		// to the router.
		docType := ""
		if req.Type != nil {
			docType = *req.Type
		} else if doc.Type != nil {
			docType = *doc.Type
		}
		score := 1.0
		if req.Confidence != nil {
			score = *req.Confidence
		} else if doc.Confidence != nil {
			score = *doc.Confidence
		}
		data, err := events.Marshal(events.DocType{DocID: id, Type: docType, Score: score})
		if err != nil {
			return nil, err
		}
		if err := s.bus.Publish(ctx, events.TopicType, data); err != nil {
			return nil, err
		}
	}

	if err := s.notifier.DocumentUpdate(ctx, doc.Update()); err != nil {
		s.logger.Warn("Failed to send override notification",
			logger.String("doc_id", id),
			logger.Error(err),
		)
	}

	s.logger.Info("Document overridden",
		logger.String("doc_id", id),
		logger.String("status", string(doc.Status)),
	)
	return doc, nil
}

// ingest is the shared tail of every intake path: store the bytes,
// create the tracking record and emit doc.initialize.
func (s *documentService) ingest(
	ctx context.Context,
	reader io.Reader,
	filename string,
	meta map[string]string,
) (*models.Document, error) {
	docID := uuid.New().String()
	storedName := docID + "_" + filepath.Base(filename)

	if _, err := s.files.Put(ctx, reader, storedName); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	doc := &models.Document{
		ID:     docID,
		Name:   filename,
		Status: models.StatusIngested,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	data, err := events.Marshal(events.DocReceived{
		DocID:    docID,
		FileName: storedName,
		Metadata: meta,
	})
	if err != nil {
		return nil, err
	}
	if err := s.bus.Publish(ctx, events.TopicInitialize, data); err != nil {
		return nil, fmt.Errorf("failed to announce document: %w", err)
	}

	if err := s.notifier.DocumentUpdate(ctx, doc.Update()); err != nil {
		s.logger.Warn("Failed to send ingestion notification",
			logger.String("doc_id", docID),
			logger.Error(err),
		)
	}

	s.logger.Info("Document ingested",
		logger.String("doc_id", docID),
		logger.String("filename", filename),
	)
	return doc, nil
}

func (s *documentService) validateFile(header *multipart.FileHeader) error {
	return s.validateName(header.Filename, header.Size)
}

func (s *documentService) validateName(filename string, size int64) error {
	if size > s.config.MaxFileSize {
		return fmt.Errorf("file size %d exceeds limit %d", size, s.config.MaxFileSize)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range s.config.AllowedTypes {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("file type %s is not supported", ext)
}

func (s *documentService) reportMailbox(ctx context.Context, configID, status, message string, docID *string) {
	err := s.notifier.MailboxStatus(ctx, models.MailboxStatus{
		ConfigID: configID,
		Status:   status,
		Message:  message,
		DocID:    docID,
	})
	if err != nil {
		s.logger.Warn("Failed to send mailbox notification",
			logger.String("config_id", configID),
			logger.Error(err),
		)
	}
}
