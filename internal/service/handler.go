// Package service implements the business operations behind the HTTP
// handlers. It mediates between the data store, the blob store, the batch
// coordinator and the retrieval components, and translates their failures
// into typed errors the transport layer can map to status codes.
package service

import (
	"github.com/petrorag/petrorag/internal/batch"
	"github.com/petrorag/petrorag/internal/blob"
	"github.com/petrorag/petrorag/internal/config"
	"github.com/petrorag/petrorag/internal/pipeline"
	"github.com/petrorag/petrorag/internal/rag"
	"github.com/petrorag/petrorag/internal/store"
)

type ServiceHandler struct {
	store       store.Store
	blobs       blob.Store
	coordinator *batch.Coordinator
	index       *rag.QdrantIndex
	indexer     pipeline.Indexer
	answerer    *rag.Answerer
	cfg         *config.Config
}

func NewServiceHandler(
	dataStore store.Store,
	blobs blob.Store,
	coordinator *batch.Coordinator,
	index *rag.QdrantIndex,
	indexer pipeline.Indexer,
	answerer *rag.Answerer,
	cfg *config.Config,
) *ServiceHandler {
	return &ServiceHandler{
		store:       dataStore,
		blobs:       blobs,
		coordinator: coordinator,
		index:       index,
		indexer:     indexer,
		answerer:    answerer,
		cfg:         cfg,
	}
}
