package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/petrorag/petrorag/internal/store/model"
	"gorm.io/gorm"
)

type Chat interface {
	List(ctx context.Context) (model.ChatList, error)
	Create(ctx context.Context, chat model.Chat) (*model.Chat, error)
	Get(ctx context.Context, id string) (*model.Chat, error)
	Delete(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, chatID string, message model.Message) error
}

type ChatStore struct {
	db *gorm.DB
}

// Make sure we conform to Chat interface
var _ Chat = (*ChatStore)(nil)

func NewChatStore(db *gorm.DB) Chat {
	return &ChatStore{db: db}
}

func (s *ChatStore) List(ctx context.Context) (model.ChatList, error) {
	var chats model.ChatList
	if result := s.getDB(ctx).Model(&model.Chat{}).Order("updated_at desc").Find(&chats); result.Error != nil {
		return nil, result.Error
	}
	return chats, nil
}

func (s *ChatStore) Create(ctx context.Context, chat model.Chat) (*model.Chat, error) {
	if result := s.getDB(ctx).Create(&chat); result.Error != nil {
		return nil, result.Error
	}
	return &chat, nil
}

func (s *ChatStore) Get(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	result := s.getDB(ctx).Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("messages.created_at")
	}).First(&chat, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying chat: %w", result.Error)
	}
	return &chat, nil
}

func (s *ChatStore) Delete(ctx context.Context, id string) error {
	result := s.getDB(ctx).Unscoped().Select("Messages").Delete(&model.Chat{ID: id})
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, chatID string, message model.Message) error {
	message.ChatID = chatID
	if result := s.getDB(ctx).Create(&message); result.Error != nil {
		return fmt.Errorf("appending chat message: %w", result.Error)
	}
	// bump the chat's updated_at so listing stays ordered by activity
	return s.getDB(ctx).Model(&model.Chat{}).Where("id = ?", chatID).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

func (s *ChatStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}
