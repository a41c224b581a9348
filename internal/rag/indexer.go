package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/petrorag/petrorag/internal/config"
	"github.com/petrorag/petrorag/internal/pipeline"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/tmc/langchaingo/vectorstores/qdrant"
	"go.uber.org/zap"
)

// Passage is one retrieved unit of indexed content.
type Passage struct {
	Content      string
	DocumentID   string
	Filename     string
	SectionTitle string
	PageStart    int
	PageEnd      int
	Kind         string
	Score        float32
}

// QdrantIndex stores and retrieves embedded content in a single qdrant
// collection. Chunks, image analyses and table content share the collection,
// distinguished by a kind field in the payload.
type QdrantIndex struct {
	store      qdrant.Store
	baseURL    *url.URL
	collection string
	vectorSize int
	client     *http.Client
	logger     *zap.SugaredLogger
}

var _ pipeline.Indexer = (*QdrantIndex)(nil)

func NewQdrantIndex(cfg *config.Config, embedder embeddings.Embedder) (*QdrantIndex, error) {
	base, err := url.Parse(cfg.AI.QdrantURL)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant url: %w", err)
	}

	store, err := qdrant.New(
		qdrant.WithURL(*base),
		qdrant.WithCollectionName(cfg.AI.QdrantCollection),
		qdrant.WithEmbedder(embedder),
	)
	if err != nil {
		return nil, err
	}

	return &QdrantIndex{
		store:      store,
		baseURL:    base,
		collection: cfg.AI.QdrantCollection,
		vectorSize: cfg.AI.VectorSize,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     zap.S().Named("rag"),
	}, nil
}

// EnsureCollection creates the collection if it does not exist yet. Safe to
// call on every startup.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.vectorSize,
			"distance": "Cosine",
		},
	}
	resp, err := q.do(ctx, http.MethodPut, "/collections/"+q.collection, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// conflict means the collection is already there
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("creating collection %s: status %d: %s", q.collection, resp.StatusCode, string(msg))
	}
	return nil
}

func (q *QdrantIndex) IndexChunks(ctx context.Context, task pipeline.Task, chunks []pipeline.Chunk) error {
	docs := make([]schema.Document, 0, len(chunks))
	for _, chunk := range chunks {
		docs = append(docs, schema.Document{
			PageContent: chunk.Content,
			Metadata: map[string]any{
				"kind":          "chunk",
				"chunk_id":      chunk.ChunkID,
				"document_id":   task.DocumentID,
				"category_id":   task.CategoryID,
				"filename":      task.Filename,
				"section_title": chunk.SectionTitle,
				"page_start":    chunk.PageStart,
				"page_end":      chunk.PageEnd,
			},
		})
	}
	return q.add(ctx, docs)
}

func (q *QdrantIndex) IndexImages(ctx context.Context, task pipeline.Task, images []pipeline.ExtractedImage) error {
	docs := make([]schema.Document, 0, len(images))
	for _, img := range images {
		content := img.Analysis
		if content == "" {
			content = img.Caption
		}
		if content == "" {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: content,
			Metadata: map[string]any{
				"kind":          "image",
				"image_id":      img.ImageID,
				"document_id":   task.DocumentID,
				"category_id":   task.CategoryID,
				"filename":      task.Filename,
				"section_title": img.SectionTitle,
				"page_start":    img.PageNumber,
				"page_end":      img.PageNumber,
				"blob_key":      ImageBlobKey(task.DocumentID, img.ImageID, img.Format),
			},
		})
	}
	return q.add(ctx, docs)
}

func (q *QdrantIndex) IndexTables(ctx context.Context, task pipeline.Task, tables []pipeline.ExtractedTable) error {
	docs := make([]schema.Document, 0, len(tables))
	for _, table := range tables {
		if table.Markdown == "" {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: table.Markdown,
			Metadata: map[string]any{
				"kind":          "table",
				"table_id":      table.TableID,
				"document_id":   task.DocumentID,
				"category_id":   task.CategoryID,
				"filename":      task.Filename,
				"section_title": table.SectionTitle,
				"page_start":    table.PageNumber,
				"page_end":      table.PageNumber,
			},
		})
	}
	return q.add(ctx, docs)
}

func (q *QdrantIndex) add(ctx context.Context, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := q.store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("adding documents to index: %w", err)
	}
	return nil
}

// DeleteDocument removes every indexed point belonging to the document. The
// vectorstore client has no delete operation, so this goes straight to the
// points API.
func (q *QdrantIndex) DeleteDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	resp, err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/delete", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("deleting points for document %s: status %d: %s", documentID, resp.StatusCode, string(msg))
	}
	return nil
}

// Search retrieves the passages most similar to the query, optionally
// restricted to one category.
func (q *QdrantIndex) Search(ctx context.Context, query string, topK int, categoryID string) ([]Passage, error) {
	opts := []vectorstores.Option{}
	if categoryID != "" {
		opts = append(opts, vectorstores.WithFilters(map[string]any{
			"must": []map[string]any{
				{"key": "category_id", "match": map[string]any{"value": categoryID}},
			},
		}))
	}

	docs, err := q.store.SimilaritySearch(ctx, query, topK, opts...)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	passages := make([]Passage, 0, len(docs))
	for _, doc := range docs {
		passages = append(passages, Passage{
			Content:      doc.PageContent,
			DocumentID:   metaString(doc.Metadata, "document_id"),
			Filename:     metaString(doc.Metadata, "filename"),
			SectionTitle: metaString(doc.Metadata, "section_title"),
			PageStart:    metaInt(doc.Metadata, "page_start"),
			PageEnd:      metaInt(doc.Metadata, "page_end"),
			Kind:         metaString(doc.Metadata, "kind"),
			Score:        doc.Score,
		})
	}
	return passages, nil
}

// ImageHit is one retrieved document figure.
type ImageHit struct {
	ImageID      string
	DocumentID   string
	Filename     string
	SectionTitle string
	PageNumber   int
	BlobKey      string
	Description  string
	Score        float32
}

// SearchImages retrieves the indexed figures whose descriptions are most
// similar to the query, optionally restricted to one category.
func (q *QdrantIndex) SearchImages(ctx context.Context, query string, topK int, categoryID string) ([]ImageHit, error) {
	must := []map[string]any{
		{"key": "kind", "match": map[string]any{"value": "image"}},
	}
	if categoryID != "" {
		must = append(must, map[string]any{"key": "category_id", "match": map[string]any{"value": categoryID}})
	}

	docs, err := q.store.SimilaritySearch(ctx, query, topK,
		vectorstores.WithFilters(map[string]any{"must": must}))
	if err != nil {
		return nil, fmt.Errorf("searching image index: %w", err)
	}

	hits := make([]ImageHit, 0, len(docs))
	for _, doc := range docs {
		hits = append(hits, ImageHit{
			ImageID:      metaString(doc.Metadata, "image_id"),
			DocumentID:   metaString(doc.Metadata, "document_id"),
			Filename:     metaString(doc.Metadata, "filename"),
			SectionTitle: metaString(doc.Metadata, "section_title"),
			PageNumber:   metaInt(doc.Metadata, "page_start"),
			BlobKey:      metaString(doc.Metadata, "blob_key"),
			Description:  doc.PageContent,
			Score:        doc.Score,
		})
	}
	return hits, nil
}

func (q *QdrantIndex) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	endpoint := q.baseURL.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return q.client.Do(req)
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
