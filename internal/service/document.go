package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/batch"
	"github.com/petrorag/petrorag/internal/blob"
	"github.com/petrorag/petrorag/internal/store"
	"github.com/petrorag/petrorag/internal/store/model"
	"go.uber.org/zap"
)

// UploadDocuments admits a multi-file upload into a new batch.
func (h *ServiceHandler) UploadDocuments(ctx context.Context, categoryID string, uploads []batch.Upload) (string, []api.DocumentUploadResponse, error) {
	batchID, responses, err := h.coordinator.CreateBatch(ctx, categoryID, uploads)
	if err != nil {
		return "", nil, h.mapBatchError(err, categoryID)
	}
	return batchID, responses, nil
}

// UploadDailyDocuments admits a batch of short-lived documents. They process
// like any other upload but are removed by CleanupDailyDocuments once older
// than the daily retention window.
func (h *ServiceHandler) UploadDailyDocuments(ctx context.Context, categoryID string, uploads []batch.Upload) (string, []api.DocumentUploadResponse, error) {
	batchID, responses, err := h.coordinator.CreateDailyBatch(ctx, categoryID, uploads)
	if err != nil {
		return "", nil, h.mapBatchError(err, categoryID)
	}
	return batchID, responses, nil
}

func (h *ServiceHandler) mapBatchError(err error, categoryID string) error {
	switch {
	case errors.Is(err, batch.ErrTooManyFiles):
		return NewErrTooManyFiles(h.cfg.Service.MaxBatchFiles)
	case errors.Is(err, batch.ErrNoValidFiles):
		return NewErrNoValidFiles()
	case errors.Is(err, store.ErrRecordNotFound):
		return NewErrCategoryNotFound(categoryID)
	default:
		return err
	}
}

func (h *ServiceHandler) ListDocuments(ctx context.Context, categoryID string) (api.DocumentList, error) {
	filter := store.NewDocumentQueryFilter()
	if categoryID != "" {
		filter = filter.ByCategoryID(categoryID)
	}
	documents, err := h.store.Document().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return documents.ToApiResource(), nil
}

func (h *ServiceHandler) GetDocument(ctx context.Context, id string) (*api.Document, error) {
	document, err := h.store.Document().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrDocumentNotFound(id)
		}
		return nil, err
	}
	resource := document.ToApiResource()
	return &resource, nil
}

// DeleteDocument removes the document and all derived artifacts. Vector and
// blob deletions are best effort; the metadata row is the source of truth.
func (h *ServiceHandler) DeleteDocument(ctx context.Context, id string) error {
	document, err := h.store.Document().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrDocumentNotFound(id)
		}
		return err
	}

	if err := h.indexer.DeleteDocument(ctx, id); err != nil {
		zap.S().Named("service").Warnw("failed to delete document vectors", "document_id", id, "error", err)
	}
	if err := h.store.Chunk().DeleteByDocument(ctx, id); err != nil {
		return err
	}
	if err := h.blobs.Delete(ctx, document.BlobKey); err != nil {
		zap.S().Named("service").Warnw("failed to delete document blob", "document_id", id, "error", err)
	}
	if err := h.store.Document().Delete(ctx, id); err != nil {
		return err
	}
	if err := h.store.Category().IncrementDocumentCount(ctx, document.CategoryID, -1); err != nil {
		zap.S().Named("service").Warnw("failed to decrement category count", "category_id", document.CategoryID, "error", err)
	}
	return nil
}

// BurnDocument scrubs every trace of the document: vector entries, chunk
// rows, the stored bytes and the metadata record. Unlike DeleteDocument it
// keeps going through individual failures and reports them joined, so a
// half-broken backend still loses as much as possible.
func (h *ServiceHandler) BurnDocument(ctx context.Context, id string) error {
	document, err := h.store.Document().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrDocumentNotFound(id)
		}
		return err
	}

	var errs []error
	if err := h.indexer.DeleteDocument(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("deleting vectors: %w", err))
	}
	if err := h.store.Chunk().DeleteByDocument(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("deleting chunks: %w", err))
	}
	if err := h.blobs.Delete(ctx, document.BlobKey); err != nil {
		errs = append(errs, fmt.Errorf("deleting blob: %w", err))
	}
	if err := h.store.Document().Delete(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("deleting document record: %w", err))
	}
	if err := h.store.Category().IncrementDocumentCount(ctx, document.CategoryID, -1); err != nil {
		errs = append(errs, fmt.Errorf("decrementing category count: %w", err))
	}
	return errors.Join(errs...)
}

// CleanupDailyDocuments removes every daily document older than the daily
// retention window, burning all its artifacts. Returns how many documents
// were removed.
func (h *ServiceHandler) CleanupDailyDocuments(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(h.cfg.Service.DailyRetentionHours) * time.Hour)
	filter := store.NewDocumentQueryFilter().ByDaily().CreatedBefore(cutoff)
	documents, err := h.store.Document().List(ctx, filter)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, document := range documents {
		if err := h.BurnDocument(ctx, document.ID); err != nil {
			zap.S().Named("service").Warnw("incomplete daily cleanup for document",
				"document_id", document.ID, "error", err)
		}
		deleted++
	}
	return deleted, nil
}

// DownloadDocument streams the original uploaded bytes to dst.
func (h *ServiceHandler) DownloadDocument(ctx context.Context, id string, dst io.Writer) (*model.Document, error) {
	document, err := h.store.Document().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrDocumentNotFound(id)
		}
		return nil, err
	}
	if err := h.blobs.Get(ctx, document.BlobKey, dst); err != nil {
		if errors.Is(err, blob.ErrObjectNotFound) {
			return nil, NewErrDocumentNotFound(id)
		}
		return nil, err
	}
	return document, nil
}
