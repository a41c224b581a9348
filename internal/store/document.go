package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/store/model"
	"gorm.io/gorm"
)

type Document interface {
	List(ctx context.Context, filter *DocumentQueryFilter) (model.DocumentList, error)
	Create(ctx context.Context, document model.Document) (*model.Document, error)
	Get(ctx context.Context, id string) (*model.Document, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status api.DocumentStatus, statusInfo string) error
	UpdatePageCount(ctx context.Context, id string, pageCount int) error
}

type DocumentQueryFilter struct {
	categoryID    string
	batchID       string
	daily         bool
	createdBefore time.Time
}

func NewDocumentQueryFilter() *DocumentQueryFilter {
	return &DocumentQueryFilter{}
}

func (f *DocumentQueryFilter) ByCategoryID(id string) *DocumentQueryFilter {
	f.categoryID = id
	return f
}

func (f *DocumentQueryFilter) ByBatchID(id string) *DocumentQueryFilter {
	f.batchID = id
	return f
}

// ByDaily restricts the query to documents uploaded through the daily flow.
func (f *DocumentQueryFilter) ByDaily() *DocumentQueryFilter {
	f.daily = true
	return f
}

func (f *DocumentQueryFilter) CreatedBefore(t time.Time) *DocumentQueryFilter {
	f.createdBefore = t
	return f
}

type DocumentStore struct {
	db *gorm.DB
}

// Make sure we conform to Document interface
var _ Document = (*DocumentStore)(nil)

func NewDocumentStore(db *gorm.DB) Document {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) List(ctx context.Context, filter *DocumentQueryFilter) (model.DocumentList, error) {
	var documents model.DocumentList
	tx := s.getDB(ctx).Model(&model.Document{}).Order("created_at")
	if filter != nil {
		if filter.categoryID != "" {
			tx = tx.Where("category_id = ?", filter.categoryID)
		}
		if filter.batchID != "" {
			tx = tx.Where("batch_id = ?", filter.batchID)
		}
		if filter.daily {
			tx = tx.Where("daily = ?", true)
		}
		if !filter.createdBefore.IsZero() {
			tx = tx.Where("created_at < ?", filter.createdBefore)
		}
	}
	if result := tx.Find(&documents); result.Error != nil {
		return nil, result.Error
	}
	return documents, nil
}

func (s *DocumentStore) Create(ctx context.Context, document model.Document) (*model.Document, error) {
	if result := s.getDB(ctx).Create(&document); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &document, nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*model.Document, error) {
	var document model.Document
	if result := s.getDB(ctx).First(&document, "id = ?", id); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying document: %w", result.Error)
	}
	return &document, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result := s.getDB(ctx).Unscoped().Delete(&model.Document{}, "id = ?", id)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

func (s *DocumentStore) UpdateStatus(ctx context.Context, id string, status api.DocumentStatus, statusInfo string) error {
	result := s.getDB(ctx).Model(&model.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "status_info": statusInfo})
	if result.Error != nil {
		return fmt.Errorf("updating document status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *DocumentStore) UpdatePageCount(ctx context.Context, id string, pageCount int) error {
	result := s.getDB(ctx).Model(&model.Document{}).Where("id = ?", id).Update("page_count", pageCount)
	if result.Error != nil {
		return fmt.Errorf("updating document page count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *DocumentStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}
