package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/store"
	"github.com/petrorag/petrorag/internal/store/model"
)

const chatHistoryLimit = 10

func (h *ServiceHandler) ListChats(ctx context.Context) (api.ChatList, error) {
	chats, err := h.store.Chat().List(ctx)
	if err != nil {
		return nil, err
	}
	return chats.ToApiResource(), nil
}

func (h *ServiceHandler) CreateChat(ctx context.Context, request api.ChatCreate) (*api.Chat, error) {
	if _, err := h.store.Category().Get(ctx, request.CategoryId); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrCategoryNotFound(request.CategoryId)
		}
		return nil, err
	}

	title := request.Title
	if title == "" {
		title = "New chat"
	}
	chat := model.Chat{
		ID:         "chat_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		CategoryID: request.CategoryId,
		Title:      title,
	}
	created, err := h.store.Chat().Create(ctx, chat)
	if err != nil {
		return nil, err
	}
	resource := created.ToApiResource()
	return &resource, nil
}

func (h *ServiceHandler) GetChat(ctx context.Context, id string) (*api.Chat, error) {
	chat, err := h.store.Chat().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrChatNotFound(id)
		}
		return nil, err
	}
	resource := chat.ToApiResource()
	return &resource, nil
}

func (h *ServiceHandler) DeleteChat(ctx context.Context, id string) error {
	if _, err := h.store.Chat().Get(ctx, id); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrChatNotFound(id)
		}
		return err
	}
	return h.store.Chat().Delete(ctx, id)
}

// SendChatMessage answers the user's message in the context of the chat's
// category and its recent history, persisting both sides of the exchange.
func (h *ServiceHandler) SendChatMessage(ctx context.Context, chatID string, request api.ChatMessageCreate) (*api.QueryResponse, error) {
	return h.sendChatMessage(ctx, chatID, request, nil)
}

// SendChatMessageStream is SendChatMessage with incremental delivery: every
// generated fragment is handed to onToken in order before the full response
// is returned and persisted.
func (h *ServiceHandler) SendChatMessageStream(ctx context.Context, chatID string, request api.ChatMessageCreate, onToken func(string)) (*api.QueryResponse, error) {
	return h.sendChatMessage(ctx, chatID, request, onToken)
}

func (h *ServiceHandler) sendChatMessage(ctx context.Context, chatID string, request api.ChatMessageCreate, onToken func(string)) (*api.QueryResponse, error) {
	chat, err := h.store.Chat().Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrChatNotFound(chatID)
		}
		return nil, err
	}

	passages, err := h.index.Search(ctx, request.Content, h.cfg.AI.TopK, chat.CategoryID)
	if err != nil {
		return nil, err
	}

	resource := chat.ToApiResource()
	history := resource.Messages
	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}

	var answer string
	if onToken != nil {
		answer, err = h.answerer.AnswerStream(ctx, request.Content, passages, historyFromMessages(history), onToken)
	} else {
		answer, err = h.answerer.Answer(ctx, request.Content, passages, historyFromMessages(history))
	}
	if err != nil {
		return nil, err
	}

	if err := h.store.Chat().AppendMessage(ctx, chatID, model.Message{ChatID: chatID, Role: "user", Content: request.Content}); err != nil {
		return nil, err
	}
	if err := h.store.Chat().AppendMessage(ctx, chatID, model.Message{ChatID: chatID, Role: "assistant", Content: answer}); err != nil {
		return nil, err
	}

	return &api.QueryResponse{
		Answer:  answer,
		Sources: toSources(passages),
	}, nil
}
