package store

import (
	"context"

	"github.com/petrorag/petrorag/internal/store/model"
	"gorm.io/gorm"
)

type Chunk interface {
	CreateBatch(ctx context.Context, chunks model.ChunkList) error
	ListByDocument(ctx context.Context, documentID string) (model.ChunkList, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

type ChunkStore struct {
	db *gorm.DB
}

// Make sure we conform to Chunk interface
var _ Chunk = (*ChunkStore)(nil)

func NewChunkStore(db *gorm.DB) Chunk {
	return &ChunkStore{db: db}
}

func (s *ChunkStore) CreateBatch(ctx context.Context, chunks model.ChunkList) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.getDB(ctx).CreateInBatches(chunks, 100).Error
}

func (s *ChunkStore) ListByDocument(ctx context.Context, documentID string) (model.ChunkList, error) {
	var chunks model.ChunkList
	result := s.getDB(ctx).Model(&model.Chunk{}).
		Where("document_id = ?", documentID).
		Order("page_start").
		Find(&chunks)
	if result.Error != nil {
		return nil, result.Error
	}
	return chunks, nil
}

func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return s.getDB(ctx).Unscoped().Delete(&model.Chunk{}, "document_id = ?", documentID).Error
}

func (s *ChunkStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}
