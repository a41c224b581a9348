// Package rag provides the AI-facing collaborators of the service: the
// document parser client, the embedding and chat model wrappers, the chunker
// and the vector index. The pipeline and the query path both build on it.
package rag

import (
	"github.com/petrorag/petrorag/internal/config"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewEmbedder builds the embedding client used for chunks, image analyses
// and table content. The base URL override makes local OpenAI-compatible
// servers work without code changes.
func NewEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	opts := []openai.Option{
		openai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
	}
	if cfg.AI.OpenAIAPIKey != "" {
		opts = append(opts, openai.WithToken(cfg.AI.OpenAIAPIKey))
	} else {
		// local OpenAI-compatible services accept any token
		opts = append(opts, openai.WithToken("none"))
	}
	if cfg.AI.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.AI.OpenAIBaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
}
