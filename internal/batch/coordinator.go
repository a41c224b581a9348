// Package batch owns the lifecycle of upload batches: admission, document
// record creation, dispatch to the processing pool, status snapshots and
// termination with partial-completion semantics.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/blob"
	"github.com/petrorag/petrorag/internal/config"
	"github.com/petrorag/petrorag/internal/events"
	"github.com/petrorag/petrorag/internal/pipeline"
	"github.com/petrorag/petrorag/internal/progress"
	"github.com/petrorag/petrorag/internal/store"
	"github.com/petrorag/petrorag/internal/store/model"
	"go.uber.org/zap"
)

var (
	ErrTooManyFiles  = errors.New("maximum 50 files allowed per batch")
	ErrNoValidFiles  = errors.New("no valid PDF files found in batch")
	ErrBatchNotFound = progress.ErrBatchNotFound
)

// Processor runs one file through the pipeline. Satisfied by
// pipeline.Executor.
type Processor interface {
	Process(ctx context.Context, task pipeline.Task) error
}

// Upload is one file of a multi-file upload request.
type Upload struct {
	Filename string
	Data     []byte
}

// Coordinator accepts batches, dispatches their files onto a bounded worker
// pool and resolves termination requests. One Coordinator serves the whole
// process.
type Coordinator struct {
	maxFiles  int
	progress  *progress.Store
	store     store.Store
	blobs     blob.Store
	processor Processor
	indexer   pipeline.Indexer
	events    *events.EventProducer
	pool      *ants.Pool
	logger    *zap.SugaredLogger

	// baseCtx parents every file context so shutdown cancels them all
	baseCtx context.Context

	mu      sync.Mutex
	cancels map[string]map[string]context.CancelFunc
}

func NewCoordinator(
	ctx context.Context,
	cfg *config.Config,
	progressStore *progress.Store,
	dataStore store.Store,
	blobs blob.Store,
	processor Processor,
	indexer pipeline.Indexer,
	eventWriter *events.EventProducer,
) (*Coordinator, error) {
	pool, err := ants.NewPool(cfg.Service.PipelineWorkers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	return &Coordinator{
		maxFiles:  cfg.Service.MaxBatchFiles,
		progress:  progressStore,
		store:     dataStore,
		blobs:     blobs,
		processor: processor,
		indexer:   indexer,
		events:    eventWriter,
		pool:      pool,
		logger:    zap.S().Named("batch"),
		baseCtx:   ctx,
		cancels:   make(map[string]map[string]context.CancelFunc),
	}, nil
}

// Close stops the worker pool. In-flight files finish their current stage
// and then observe the cancelled base context.
func (c *Coordinator) Close() {
	c.pool.Release()
}

// CreateBatch admits the uploads, persists the valid ones and dispatches
// them for processing. It returns as soon as every file is persisted; the
// pipeline runs in the background. Files that are not PDFs are recorded as
// failed immediately and never dispatched.
func (c *Coordinator) CreateBatch(ctx context.Context, categoryID string, uploads []Upload) (string, []api.DocumentUploadResponse, error) {
	return c.createBatch(ctx, categoryID, uploads, false)
}

// CreateDailyBatch is CreateBatch for short-lived documents; they are marked
// daily and reaped by the cleanup endpoint once their retention passes.
func (c *Coordinator) CreateDailyBatch(ctx context.Context, categoryID string, uploads []Upload) (string, []api.DocumentUploadResponse, error) {
	return c.createBatch(ctx, categoryID, uploads, true)
}

func (c *Coordinator) createBatch(ctx context.Context, categoryID string, uploads []Upload, daily bool) (string, []api.DocumentUploadResponse, error) {
	if len(uploads) > c.maxFiles {
		return "", nil, ErrTooManyFiles
	}

	category, err := c.store.Category().Get(ctx, categoryID)
	if err != nil {
		return "", nil, err
	}

	batchID := newID()
	seeds := make([]progress.FileSeed, 0, len(uploads))
	failures := make(map[string]string)
	responses := make([]api.DocumentUploadResponse, 0, len(uploads))
	var tasks []pipeline.Task

	for _, u := range uploads {
		if !strings.HasSuffix(strings.ToLower(u.Filename), ".pdf") {
			seeds = append(seeds, progress.FileSeed{Filename: u.Filename})
			failures[u.Filename] = "File is not a PDF"
			responses = append(responses, failedResponse(batchID, categoryID, u.Filename, "File is not a PDF"))
			continue
		}

		blobKey := fmt.Sprintf("uploads/%s/%s_%s", category.ID, newID(), u.Filename)
		if err := c.blobs.Put(ctx, blobKey, u.Data); err != nil {
			c.logger.Errorw("failed to store upload", "batch_id", batchID, "filename", u.Filename, "error", err)
			seeds = append(seeds, progress.FileSeed{Filename: u.Filename})
			failures[u.Filename] = "Failed to store file"
			responses = append(responses, failedResponse(batchID, categoryID, u.Filename, "Failed to store file"))
			continue
		}

		documentID := "doc_" + newID()[:12]
		document := model.Document{
			ID:         documentID,
			CategoryID: categoryID,
			Filename:   u.Filename,
			BlobKey:    blobKey,
			FileSize:   int64(len(u.Data)),
			Status:     string(api.DocumentStatusPending),
			BatchID:    batchID,
			Daily:      daily,
		}
		if _, err := c.store.Document().Create(ctx, document); err != nil {
			c.logger.Errorw("failed to create document record", "batch_id", batchID, "filename", u.Filename, "error", err)
			seeds = append(seeds, progress.FileSeed{Filename: u.Filename})
			failures[u.Filename] = "Failed to create document record"
			responses = append(responses, failedResponse(batchID, categoryID, u.Filename, "Failed to create document record"))
			continue
		}
		if err := c.store.Category().IncrementDocumentCount(ctx, categoryID, 1); err != nil {
			c.logger.Warnw("failed to bump category document count", "category_id", categoryID, "error", err)
		}

		seeds = append(seeds, progress.FileSeed{Filename: u.Filename, DocumentID: documentID})
		responses = append(responses, api.DocumentUploadResponse{
			DocumentId: documentID,
			CategoryId: categoryID,
			Filename:   u.Filename,
			Status:     api.DocumentStatusPending,
			BatchId:    batchID,
			Message:    "Document uploaded. Processing started.",
		})
		tasks = append(tasks, pipeline.Task{
			BatchID:    batchID,
			DocumentID: documentID,
			CategoryID: categoryID,
			Filename:   u.Filename,
			BlobKey:    blobKey,
		})
	}

	// seed first so subscribers see the rejected files too, then resolve
	// their failures as ordinary updates
	c.progress.RecordInitial(batchID, seeds)
	for filename, detail := range failures {
		c.markFailed(batchID, filename, detail)
	}

	if len(tasks) == 0 {
		return batchID, responses, ErrNoValidFiles
	}

	for _, task := range tasks {
		c.dispatch(task)
	}
	c.logger.Infow("batch created", "batch_id", batchID, "files", len(uploads), "dispatched", len(tasks))
	return batchID, responses, nil
}

// dispatch hands the task to the worker pool without blocking the caller.
// Pool admission itself blocks when all workers are busy, so the per-task
// goroutine absorbs the wait while execution concurrency stays bounded.
func (c *Coordinator) dispatch(task pipeline.Task) {
	fileCtx, cancel := context.WithCancel(c.baseCtx)
	c.registerCancel(task.BatchID, task.Filename, cancel)

	go func() {
		err := c.pool.Submit(func() {
			defer c.unregisterCancel(task.BatchID, task.Filename)
			defer cancel()

			if err := c.processor.Process(fileCtx, task); err != nil {
				if !errors.Is(err, context.Canceled) {
					c.logger.Debugw("file processing ended with error",
						"batch_id", task.BatchID, "filename", task.Filename, "error", err)
				}
				c.emitDocumentEvent(task, api.DocumentStatusFailed, err.Error())
				return
			}
			c.emitDocumentEvent(task, api.DocumentStatusCompleted, "")
		})
		if err != nil {
			// pool released during shutdown
			c.unregisterCancel(task.BatchID, task.Filename)
			cancel()
			c.logger.Warnw("failed to submit task", "batch_id", task.BatchID, "filename", task.Filename, "error", err)
			c.markFailed(task.BatchID, task.Filename, "Processing rejected")
		}
	}()
}

// Status returns a point-in-time snapshot of the batch.
func (c *Coordinator) Status(batchID string) (*progress.BatchRecord, error) {
	return c.progress.Snapshot(batchID)
}

// Subscribe attaches a live progress subscriber to the batch.
func (c *Coordinator) Subscribe(batchID string) (*progress.Subscriber, *progress.BatchRecord, error) {
	return c.progress.Subscribe(batchID)
}

// Unsubscribe detaches a subscriber obtained from Subscribe.
func (c *Coordinator) Unsubscribe(sub *progress.Subscriber) {
	c.progress.Unsubscribe(sub)
}

// Terminate cancels the batch's in-flight files, keeps completed documents
// and deletes all artifacts of incomplete ones. Calling it again after
// completion of the cleanup deletes nothing further.
func (c *Coordinator) Terminate(ctx context.Context, batchID string) (*api.BatchTerminateResponse, error) {
	record, err := c.progress.Snapshot(batchID)
	if err != nil {
		return nil, err
	}

	c.cancelBatch(batchID)

	total := len(record.Files)
	kept, deleted := 0, 0
	for _, file := range record.Files {
		if file.Status == api.FileStatusCompleted {
			kept++
			continue
		}
		if err := c.deleteFileArtifacts(ctx, batchID, file); err != nil {
			c.logger.Warnw("incomplete cleanup for terminated file",
				"batch_id", batchID, "filename", file.Filename, "error", err)
		}
		deleted++
	}

	if kept == 0 {
		c.progress.DeleteBatch(batchID)
	}

	c.emitBatchEvent(api.BatchTerminateResponse{
		BatchId:           batchID,
		TotalDocuments:    total,
		KeptCompleted:     kept,
		DeletedIncomplete: deleted,
	})
	c.logger.Infow("batch terminated", "batch_id", batchID, "total", total, "kept", kept, "deleted", deleted)

	return &api.BatchTerminateResponse{
		BatchId:           batchID,
		TotalDocuments:    total,
		KeptCompleted:     kept,
		DeletedIncomplete: deleted,
	}, nil
}

// deleteFileArtifacts removes every trace of one incomplete file: vector
// entries, chunk rows, the document record, the stored bytes and the
// progress entry. Each step is attempted even if a previous one failed.
func (c *Coordinator) deleteFileArtifacts(ctx context.Context, batchID string, file progress.FileEntry) error {
	var errs []error

	if file.DocumentID != "" {
		document, err := c.store.Document().Get(ctx, file.DocumentID)
		if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
			errs = append(errs, err)
		}

		if err := c.indexer.DeleteDocument(ctx, file.DocumentID); err != nil {
			errs = append(errs, fmt.Errorf("deleting vectors: %w", err))
		}
		if err := c.store.Chunk().DeleteByDocument(ctx, file.DocumentID); err != nil {
			errs = append(errs, fmt.Errorf("deleting chunks: %w", err))
		}
		if document != nil {
			if err := c.blobs.Delete(ctx, document.BlobKey); err != nil {
				errs = append(errs, fmt.Errorf("deleting blob: %w", err))
			}
			if err := c.store.Document().Delete(ctx, file.DocumentID); err != nil {
				errs = append(errs, fmt.Errorf("deleting document record: %w", err))
			}
			if err := c.store.Category().IncrementDocumentCount(ctx, document.CategoryID, -1); err != nil {
				errs = append(errs, fmt.Errorf("decrementing category count: %w", err))
			}
		}
	}

	if err := c.progress.DeleteFile(batchID, file.Filename); err != nil && !errors.Is(err, progress.ErrBatchNotFound) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Coordinator) markFailed(batchID, filename, detail string) {
	if err := c.progress.Update(batchID, filename, api.FileStatusFailed, detail); err != nil {
		c.logger.Debugw("failed to record file failure", "batch_id", batchID, "filename", filename, "error", err)
	}
}

func (c *Coordinator) registerCancel(batchID, filename string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancels[batchID] == nil {
		c.cancels[batchID] = make(map[string]context.CancelFunc)
	}
	c.cancels[batchID][filename] = cancel
}

func (c *Coordinator) unregisterCancel(batchID, filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cancels[batchID], filename)
	if len(c.cancels[batchID]) == 0 {
		delete(c.cancels, batchID)
	}
}

func (c *Coordinator) cancelBatch(batchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.cancels[batchID] {
		cancel()
	}
	delete(c.cancels, batchID)
}

func (c *Coordinator) emitDocumentEvent(task pipeline.Task, status api.DocumentStatus, info string) {
	if c.events == nil {
		return
	}
	payload, err := json.Marshal(events.DocumentEvent{
		BatchID:    task.BatchID,
		DocumentID: task.DocumentID,
		Filename:   task.Filename,
		Status:     string(status),
		StatusInfo: info,
	})
	if err != nil {
		return
	}
	if err := c.events.Write(context.TODO(), events.DocumentMessageKind, bytes.NewReader(payload)); err != nil {
		c.logger.Warnw("failed to emit document event", "document_id", task.DocumentID, "error", err)
	}
}

func (c *Coordinator) emitBatchEvent(resp api.BatchTerminateResponse) {
	if c.events == nil {
		return
	}
	payload, err := json.Marshal(events.BatchEvent{
		BatchID:           resp.BatchId,
		TotalDocuments:    resp.TotalDocuments,
		KeptCompleted:     resp.KeptCompleted,
		DeletedIncomplete: resp.DeletedIncomplete,
	})
	if err != nil {
		return
	}
	if err := c.events.Write(context.TODO(), events.BatchMessageKind, bytes.NewReader(payload)); err != nil {
		c.logger.Warnw("failed to emit batch event", "batch_id", resp.BatchId, "error", err)
	}
}

func failedResponse(batchID, categoryID, filename, message string) api.DocumentUploadResponse {
	return api.DocumentUploadResponse{
		CategoryId: categoryID,
		Filename:   filename,
		Status:     api.DocumentStatusFailed,
		BatchId:    batchID,
		Message:    message,
	}
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
