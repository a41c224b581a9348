package store

import (
	"context"

	"github.com/petrorag/petrorag/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Document() Document
	Category() Category
	Chunk() Chunk
	Chat() Chat
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	document Document
	category Category
	chunk    Chunk
	chat     Chat
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:       db,
		document: NewDocumentStore(db),
		category: NewCategoryStore(db),
		chunk:    NewChunkStore(db),
		chat:     NewChatStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Document() Document {
	return s.document
}

func (s *DataStore) Category() Category {
	return s.category
}

func (s *DataStore) Chunk() Chunk {
	return s.chunk
}

func (s *DataStore) Chat() Chat {
	return s.chat
}

func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.Category{},
		&model.Document{},
		&model.Chunk{},
		&model.Chat{},
		&model.Message{},
	)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
