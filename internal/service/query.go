package service

import (
	"context"
	"errors"
	"strings"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/rag"
	"github.com/petrorag/petrorag/internal/store"
	"github.com/tmc/langchaingo/llms"
)

// Query answers a one-shot question against the indexed content of a
// category.
func (h *ServiceHandler) Query(ctx context.Context, request api.QueryRequest) (*api.QueryResponse, error) {
	if _, err := h.store.Category().Get(ctx, request.CategoryId); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrCategoryNotFound(request.CategoryId)
		}
		return nil, err
	}

	topK := request.TopK
	if topK <= 0 {
		topK = h.cfg.AI.TopK
	}

	passages, err := h.index.Search(ctx, request.Question, topK, request.CategoryId)
	if err != nil {
		return nil, err
	}

	answer, err := h.answerer.Answer(ctx, request.Question, passages, nil)
	if err != nil {
		return nil, err
	}

	return &api.QueryResponse{
		Answer:  answer,
		Sources: toSources(passages),
	}, nil
}

const (
	defaultImageSearchTopK = 5
	maxImageSearchTopK     = 20
)

// SearchImages finds indexed document figures by their generated
// descriptions.
func (h *ServiceHandler) SearchImages(ctx context.Context, request api.ImageSearchRequest) (*api.ImageSearchResponse, error) {
	if strings.TrimSpace(request.QueryText) == "" {
		return nil, NewErrInvalidRequest("query_text is required")
	}
	if request.CategoryId != "" {
		if _, err := h.store.Category().Get(ctx, request.CategoryId); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, NewErrCategoryNotFound(request.CategoryId)
			}
			return nil, err
		}
	}

	topK := request.TopK
	if topK <= 0 {
		topK = defaultImageSearchTopK
	}
	if topK > maxImageSearchTopK {
		topK = maxImageSearchTopK
	}

	hits, err := h.index.SearchImages(ctx, request.QueryText, topK, request.CategoryId)
	if err != nil {
		return nil, err
	}

	results := make([]api.ImageSearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, api.ImageSearchResult{
			ImageId:      hit.ImageID,
			DocumentId:   hit.DocumentID,
			Filename:     hit.Filename,
			PageNumber:   hit.PageNumber,
			SectionTitle: hit.SectionTitle,
			Description:  excerpt(hit.Description, 300),
			ImagePath:    hit.BlobKey,
			Score:        hit.Score,
		})
	}
	return &api.ImageSearchResponse{
		QueryText: request.QueryText,
		Results:   results,
		Count:     len(results),
	}, nil
}

func toSources(passages []rag.Passage) []api.QuerySource {
	sources := make([]api.QuerySource, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, api.QuerySource{
			DocumentId: p.DocumentID,
			Filename:   p.Filename,
			Section:    p.SectionTitle,
			Score:      p.Score,
			Excerpt:    excerpt(p.Content, 300),
		})
	}
	return sources
}

func excerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func historyFromMessages(messages []api.ChatMessage) []llms.MessageContent {
	history := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		history = append(history, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return history
}
