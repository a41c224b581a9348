package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/petrorag/petrorag/internal/store/model"
	"gorm.io/gorm"
)

type Category interface {
	List(ctx context.Context) (model.CategoryList, error)
	Create(ctx context.Context, category model.Category) (*model.Category, error)
	Get(ctx context.Context, id string) (*model.Category, error)
	Delete(ctx context.Context, id string) error
	IncrementDocumentCount(ctx context.Context, id string, delta int) error
}

type CategoryStore struct {
	db *gorm.DB
}

// Make sure we conform to Category interface
var _ Category = (*CategoryStore)(nil)

func NewCategoryStore(db *gorm.DB) Category {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) List(ctx context.Context) (model.CategoryList, error) {
	var categories model.CategoryList
	if result := s.getDB(ctx).Model(&model.Category{}).Order("created_at").Find(&categories); result.Error != nil {
		return nil, result.Error
	}
	return categories, nil
}

func (s *CategoryStore) Create(ctx context.Context, category model.Category) (*model.Category, error) {
	if result := s.getDB(ctx).Create(&category); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &category, nil
}

func (s *CategoryStore) Get(ctx context.Context, id string) (*model.Category, error) {
	var category model.Category
	if result := s.getDB(ctx).First(&category, "id = ?", id); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying category: %w", result.Error)
	}
	return &category, nil
}

func (s *CategoryStore) Delete(ctx context.Context, id string) error {
	result := s.getDB(ctx).Unscoped().Delete(&model.Category{}, "id = ?", id)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

func (s *CategoryStore) IncrementDocumentCount(ctx context.Context, id string, delta int) error {
	result := s.getDB(ctx).Model(&model.Category{}).
		Where("id = ?", id).
		Update("document_count", gorm.Expr("document_count + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("updating category document count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *CategoryStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}
