package model

import (
	"encoding/json"
	"time"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"gorm.io/gorm"
)

type Chat struct {
	gorm.Model
	ID         string `gorm:"primaryKey"`
	CategoryID string `gorm:"index;not null"`
	Title      string
	Messages   []Message `gorm:"foreignKey:ChatID;references:ID;constraint:OnDelete:CASCADE;"`
}

type Message struct {
	gorm.Model
	ChatID  string `gorm:"index;not null"`
	Role    string `gorm:"not null"`
	Content string `gorm:"type:text"`
}

type ChatList []Chat

func (c Chat) String() string {
	val, _ := json.Marshal(c)
	return string(val)
}

func (c Chat) ToApiResource() api.Chat {
	chat := api.Chat{
		ChatId:     c.ID,
		CategoryId: c.CategoryID,
		Title:      c.Title,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	for _, m := range c.Messages {
		chat.Messages = append(chat.Messages, m.ToApiResource())
	}
	return chat
}

func (m Message) ToApiResource() api.ChatMessage {
	ts := m.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return api.ChatMessage{Role: m.Role, Content: m.Content, Timestamp: ts}
}

func (cl ChatList) ToApiResource() api.ChatList {
	chats := make(api.ChatList, 0, len(cl))
	for _, c := range cl {
		chats = append(chats, c.ToApiResource())
	}
	return chats
}
