package document

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/feichai0017/docflow/config"
	"github.com/feichai0017/docflow/internal/events"
	"github.com/feichai0017/docflow/internal/models"
	"github.com/feichai0017/docflow/internal/notify"
	"github.com/feichai0017/docflow/internal/store"
	"github.com/feichai0017/docflow/pkg/bus"
	"github.com/feichai0017/docflow/pkg/logger"
	"github.com/feichai0017/docflow/pkg/storage/local"
)

type testEnv struct {
	svc      DocumentService
	store    store.Store
	bus      *bus.MemoryBus
	notifier *notify.MemoryNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	st, err := store.NewWithDB(db, logger.NewTestLogger())
	require.NoError(t, err)

	files, err := local.New(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)

	b := bus.NewMemoryBus()
	n := notify.NewMemoryNotifier()

	svc := NewService(st, b, files, n, logger.NewTestLogger(), config.IngestConfig{
		MaxFileSize:     1 << 20,
		AllowedTypes:    []string{".pdf", ".png"},
		SenderAllowList: []string{"urgent@example.com"},
	})
	return &testEnv{svc: svc, store: st, bus: b, notifier: n}
}

func makeUpload(t *testing.T, filename string, content []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/ingest/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	file, header, err := req.FormFile("file")
	require.NoError(t, err)
	return file, header
}

func TestUploadStartsPipeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	file, header := makeUpload(t, "invoice.pdf", []byte("%PDF-1.4 content"))
	doc, err := env.svc.Upload(ctx, file, header, events.InputFileUpload)
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "invoice.pdf", doc.Name)
	assert.Equal(t, models.StatusIngested, doc.Status)

	// the record is persisted before the announcement goes out
	stored, err := env.store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIngested, stored.Status)

	published := env.bus.Published(events.TopicInitialize)
	require.Len(t, published, 1)
	var ev events.DocReceived
	require.NoError(t, json.Unmarshal(published[0], &ev))
	assert.Equal(t, doc.ID, ev.DocID)
	assert.Equal(t, events.InputFileUpload, ev.Metadata[events.MetaInputType])

	updates := env.notifier.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, doc.ID, updates[0].DocID)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)

	file, header := makeUpload(t, "malware.exe", []byte("MZ"))
	_, err := env.svc.Upload(context.Background(), file, header, events.InputFileUpload)
	require.Error(t, err)

	// nothing reached the bus or the store
	assert.Empty(t, env.bus.Published(events.TopicInitialize))
	docs, err := env.svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	env := newTestEnv(t)

	file, header := makeUpload(t, "big.pdf", bytes.Repeat([]byte("x"), (1<<20)+1))
	_, err := env.svc.Upload(context.Background(), file, header, events.InputFileUpload)
	assert.ErrorContains(t, err, "exceeds limit")
}

func TestIngestEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	docs, err := env.svc.IngestEmail(ctx, EmailIngest{
		ConfigID: "mailbox-1",
		Sender:   "urgent@example.com",
		Subject:  "January invoice",
		Body:     "please find attached",
		Attachments: []EmailAttachment{
			{Filename: "invoice.pdf", Content: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))},
			{Filename: "scan.png", Content: base64.StdEncoding.EncodeToString([]byte("\x89PNG"))},
		},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// one doc.initialize per attachment, carrying the email metadata
	published := env.bus.Published(events.TopicInitialize)
	require.Len(t, published, 2)
	var ev events.DocReceived
	require.NoError(t, json.Unmarshal(published[0], &ev))
	assert.Equal(t, events.InputEmailHook, ev.Metadata[events.MetaInputType])
	assert.Equal(t, "urgent@example.com", ev.Metadata[events.MetaSender])
	assert.Equal(t, "please find attached", ev.Metadata[events.MetaEmailBody])

	statuses := env.notifier.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "mailbox-1", statuses[0].ConfigID)
	assert.Equal(t, "received", statuses[0].Status)
	require.NotNil(t, statuses[0].DocID)
}

func TestIngestEmailRejectsBadBase64(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.IngestEmail(context.Background(), EmailIngest{
		ConfigID: "mailbox-1",
		Sender:   "a@b.c",
		Attachments: []EmailAttachment{
			{Filename: "x.pdf", Content: "not-base64!!!"},
		},
	})
	require.Error(t, err)

	statuses := env.notifier.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "error", statuses[0].Status)
}

func TestOverrideRequiresAField(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Override(context.Background(), "doc-1", Override{})
	assert.Error(t, err)
}

func TestOverrideNotFound(t *testing.T) {
	env := newTestEnv(t)
	dest := "archive"
	_, err := env.svc.Override(context.Background(), "missing", Override{Destination: &dest})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOverrideDestinationOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	docType := "invoice"
	confidence := 77.0
	require.NoError(t, env.store.Create(ctx, &models.Document{
		ID:         "doc-1",
		Name:       "invoice.pdf",
		Status:     models.StatusClassified,
		Type:       &docType,
		Confidence: &confidence,
	}))

	dest := "crm_system"
	doc, err := env.svc.Override(ctx, "doc-1", Override{Destination: &dest})
	require.NoError(t, err)

	// classification survives a destination-only override
	assert.Equal(t, models.StatusRouted, doc.Status)
	require.NotNil(t, doc.Type)
	assert.Equal(t, "invoice", *doc.Type)
	require.NotNil(t, doc.Confidence)
	assert.Equal(t, 77.0, *doc.Confidence)
	require.NotNil(t, doc.Destination)
	assert.Equal(t, "crm_system", *doc.Destination)

	// exactly one terminal event and no re-classification
	routed := env.bus.Published(events.TopicRouted)
	require.Len(t, routed, 1)
	var ev events.DocRouted
	require.NoError(t, json.Unmarshal(routed[0], &ev))
	assert.Equal(t, "crm_system", ev.Destination)
	assert.Empty(t, env.bus.Published(events.TopicType))
}

func TestOverrideTypeRepublishesForRouting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.Create(ctx, &models.Document{
		ID:     "doc-1",
		Name:   "letter.pdf",
		Status: models.StatusClassified,
	}))

	docType := "contract"
	doc, err := env.svc.Override(ctx, "doc-1", Override{Type: &docType})
	require.NoError(t, err)

	assert.Equal(t, models.StatusClassified, doc.Status)
	require.NotNil(t, doc.Type)
	assert.Equal(t, "contract", *doc.Type)

	published := env.bus.Published(events.TopicType)
	require.Len(t, published, 1)
	var ev events.DocType
	require.NoError(t, json.Unmarshal(published[0], &ev))
	assert.Equal(t, "contract", ev.Type)
	// no confidence anywhere: the correction is published as certain
	assert.Equal(t, 1.0, ev.Score)
	assert.Empty(t, env.bus.Published(events.TopicRouted))
}

func TestOverrideConfidenceUsesProvidedScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	docType := "invoice"
	require.NoError(t, env.store.Create(ctx, &models.Document{
		ID:     "doc-1",
		Name:   "invoice.pdf",
		Status: models.StatusClassified,
		Type:   &docType,
	}))

	confidence := 55.5
	_, err := env.svc.Override(ctx, "doc-1", Override{Confidence: &confidence})
	require.NoError(t, err)

	var ev events.DocType
	require.NoError(t, json.Unmarshal(env.bus.Published(events.TopicType)[0], &ev))
	assert.Equal(t, "invoice", ev.Type)
	assert.Equal(t, 55.5, ev.Score)
}
