// Package store persists Document records. Updates are per-document
// last-writer-wins; concurrent writers racing on the same id (a stage
// worker vs. a manual override) may interleave field updates.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/feichai0017/docflow/internal/models"
	"github.com/feichai0017/docflow/pkg/logger"
)

// ErrNotFound is returned when no document exists for the given id.
var ErrNotFound = errors.New("document not found")

// Store is the keyed record store every stage reads and updates.
type Store interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	// Patch applies a partial update and refreshes updated_at. Returns
	// ErrNotFound when the document does not exist.
	Patch(ctx context.Context, id string, updates map[string]interface{}) (*models.Document, error)
	List(ctx context.Context) ([]*models.Document, error)
	// PurgeRoutedBefore deletes routed documents last touched before
	// threshold. Only the retention task calls it; the pipeline itself
	// never deletes.
	PurgeRoutedBefore(ctx context.Context, threshold time.Time) (int64, error)
}

type documentStore struct {
	db  *gorm.DB
	log logger.Logger
}

// Open connects to the database named by dsn and migrates the documents
// table. A postgres:// DSN opens postgres; anything else is an sqlite
// path.
func Open(dsn string, log logger.Logger) (Store, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&models.Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents table: %w", err)
	}

	return &documentStore{db: db, log: log}, nil
}

// NewWithDB wraps an existing gorm handle; tests use it with sqlite
// in-memory.
func NewWithDB(db *gorm.DB, log logger.Logger) (Store, error) {
	if err := db.AutoMigrate(&models.Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return &documentStore{db: db, log: log}, nil
}

func (s *documentStore) Create(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *documentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return &doc, nil
}

func (s *documentStore) Patch(ctx context.Context, id string, updates map[string]interface{}) (*models.Document, error) {
	patch := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		patch[k] = v
	}
	patch["updated_at"] = time.Now().UTC()

	res := s.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Updates(patch)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to patch document %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.Get(ctx, id)
}

func (s *documentStore) PurgeRoutedBefore(ctx context.Context, threshold time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.StatusRouted, threshold).
		Delete(&models.Document{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge routed documents: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *documentStore) List(ctx context.Context) ([]*models.Document, error) {
	var docs []*models.Document
	if err := s.db.WithContext(ctx).Order("created_at").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}
