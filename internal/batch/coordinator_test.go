package batch_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/batch"
	"github.com/petrorag/petrorag/internal/blob"
	"github.com/petrorag/petrorag/internal/config"
	"github.com/petrorag/petrorag/internal/pipeline"
	"github.com/petrorag/petrorag/internal/progress"
	"github.com/petrorag/petrorag/internal/store"
	"github.com/petrorag/petrorag/internal/store/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingProcessor marks dispatched files completed so Terminate can
// exercise the partial-completion path.
type recordingProcessor struct {
	mu        sync.Mutex
	progress  *progress.Store
	dataStore store.Store
	complete  map[string]bool
	processed []string
	done      chan string
}

func newRecordingProcessor(p *progress.Store, s store.Store) *recordingProcessor {
	return &recordingProcessor{
		progress:  p,
		dataStore: s,
		complete:  make(map[string]bool),
		done:      make(chan string, 64),
	}
}

func (r *recordingProcessor) completeFile(filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete[filename] = true
}

func (r *recordingProcessor) Process(ctx context.Context, task pipeline.Task) error {
	r.mu.Lock()
	r.processed = append(r.processed, task.Filename)
	finish := r.complete[task.Filename]
	r.mu.Unlock()

	if finish {
		_ = r.progress.Update(task.BatchID, task.Filename, api.FileStatusCompleted, "Processing completed")
		_ = r.dataStore.Document().UpdateStatus(ctx, task.DocumentID, api.DocumentStatusCompleted, "")
	}
	r.done <- task.Filename
	return nil
}

func (r *recordingProcessor) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d files processed, saw %d", n, i)
		}
	}
}

type nopIndexer struct {
	mu      sync.Mutex
	deleted []string
}

func (*nopIndexer) IndexChunks(context.Context, pipeline.Task, []pipeline.Chunk) error { return nil }
func (*nopIndexer) IndexImages(context.Context, pipeline.Task, []pipeline.ExtractedImage) error {
	return nil
}
func (*nopIndexer) IndexTables(context.Context, pipeline.Task, []pipeline.ExtractedTable) error {
	return nil
}
func (n *nopIndexer) DeleteDocument(_ context.Context, documentID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, documentID)
	return nil
}

type fixture struct {
	coordinator *batch.Coordinator
	progress    *progress.Store
	store       store.Store
	blobs       blob.Store
	processor   *recordingProcessor
	indexer     *nopIndexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.NewDefault()
	db, err := store.InitDB(cfg)
	require.NoError(t, err)
	dataStore := store.NewStore(db)
	require.NoError(t, dataStore.InitialMigration())
	t.Cleanup(func() { dataStore.Close() })

	_, err = dataStore.Category().Create(context.Background(), model.Category{ID: "cat_1", Name: "drilling"})
	require.NoError(t, err)

	blobs, err := blob.NewFsStore(t.TempDir())
	require.NoError(t, err)

	progressStore := progress.NewStore()
	processor := newRecordingProcessor(progressStore, dataStore)
	indexer := &nopIndexer{}

	coordinator, err := batch.NewCoordinator(
		context.Background(), cfg, progressStore, dataStore, blobs, processor, indexer, nil,
	)
	require.NoError(t, err)
	t.Cleanup(coordinator.Close)

	return &fixture{
		coordinator: coordinator,
		progress:    progressStore,
		store:       dataStore,
		blobs:       blobs,
		processor:   processor,
		indexer:     indexer,
	}
}

func pdf(filename string) batch.Upload {
	return batch.Upload{Filename: filename, Data: []byte("%PDF-1.4 test")}
}

func TestCreateBatchRejectsOversizedBatch(t *testing.T) {
	f := newFixture(t)

	uploads := make([]batch.Upload, 51)
	for i := range uploads {
		uploads[i] = pdf(fmt.Sprintf("f%d.pdf", i))
	}

	_, _, err := f.coordinator.CreateBatch(context.Background(), "cat_1", uploads)
	assert.ErrorIs(t, err, batch.ErrTooManyFiles)
}

func TestCreateBatchRejectsUnknownCategory(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.coordinator.CreateBatch(context.Background(), "cat_missing", []batch.Upload{pdf("a.pdf")})
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestCreateBatchMarksNonPdfFailed(t *testing.T) {
	f := newFixture(t)
	f.processor.completeFile("a.pdf")

	batchID, responses, err := f.coordinator.CreateBatch(context.Background(), "cat_1", []batch.Upload{
		pdf("a.pdf"),
		{Filename: "notes.txt", Data: []byte("plain text")},
	})
	require.NoError(t, err)
	require.Len(t, responses, 2)

	assert.Equal(t, api.DocumentStatusPending, responses[0].Status)
	assert.Equal(t, "Document uploaded. Processing started.", responses[0].Message)
	assert.NotEmpty(t, responses[0].DocumentId)

	assert.Equal(t, api.DocumentStatusFailed, responses[1].Status)
	assert.Equal(t, "File is not a PDF", responses[1].Message)
	assert.Empty(t, responses[1].DocumentId)

	f.processor.waitFor(t, 1)

	record, err := f.coordinator.Status(batchID)
	require.NoError(t, err)
	require.Len(t, record.Files, 2)
	assert.Equal(t, api.FileStatusFailed, record.File("notes.txt").Status)
	assert.Equal(t, "File is not a PDF", record.File("notes.txt").Detail)
}

func TestCreateBatchWithOnlyInvalidFiles(t *testing.T) {
	f := newFixture(t)

	batchID, responses, err := f.coordinator.CreateBatch(context.Background(), "cat_1", []batch.Upload{
		{Filename: "a.txt", Data: []byte("x")},
		{Filename: "b.csv", Data: []byte("y")},
	})
	assert.ErrorIs(t, err, batch.ErrNoValidFiles)
	assert.Len(t, responses, 2)

	// the batch still exists so its failed entries can be inspected
	record, serr := f.coordinator.Status(batchID)
	require.NoError(t, serr)
	for _, file := range record.Files {
		assert.Equal(t, api.FileStatusFailed, file.Status)
	}
}

func TestCreateBatchDispatchesAndPersists(t *testing.T) {
	f := newFixture(t)
	f.processor.completeFile("a.pdf")
	f.processor.completeFile("b.pdf")

	batchID, responses, err := f.coordinator.CreateBatch(context.Background(), "cat_1",
		[]batch.Upload{pdf("a.pdf"), pdf("b.pdf")})
	require.NoError(t, err)
	require.Len(t, responses, 2)
	f.processor.waitFor(t, 2)

	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf"}, f.processor.processed)

	documents, err := f.store.Document().List(context.Background(),
		store.NewDocumentQueryFilter().ByBatchID(batchID))
	require.NoError(t, err)
	assert.Len(t, documents, 2)

	category, err := f.store.Category().Get(context.Background(), "cat_1")
	require.NoError(t, err)
	assert.Equal(t, 2, category.DocumentCount)
}

func TestCreateDailyBatchMarksDocuments(t *testing.T) {
	f := newFixture(t)
	f.processor.completeFile("a.pdf")

	batchID, _, err := f.coordinator.CreateDailyBatch(context.Background(), "cat_1",
		[]batch.Upload{pdf("a.pdf")})
	require.NoError(t, err)
	f.processor.waitFor(t, 1)

	documents, err := f.store.Document().List(context.Background(),
		store.NewDocumentQueryFilter().ByBatchID(batchID))
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.True(t, documents[0].Daily)

	// regular uploads stay permanent
	batchID, _, err = f.coordinator.CreateBatch(context.Background(), "cat_1",
		[]batch.Upload{pdf("b.pdf")})
	require.NoError(t, err)
	f.processor.waitFor(t, 1)

	documents, err = f.store.Document().List(context.Background(),
		store.NewDocumentQueryFilter().ByBatchID(batchID))
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.False(t, documents[0].Daily)
}

func TestTerminateKeepsCompletedAndDeletesIncomplete(t *testing.T) {
	f := newFixture(t)
	f.processor.completeFile("done.pdf")
	// pending.pdf is processed but never reaches a terminal state

	batchID, _, err := f.coordinator.CreateBatch(context.Background(), "cat_1",
		[]batch.Upload{pdf("done.pdf"), pdf("pending.pdf")})
	require.NoError(t, err)
	f.processor.waitFor(t, 2)

	resp, err := f.coordinator.Terminate(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.TotalDocuments)
	assert.Equal(t, 1, resp.KeptCompleted)
	assert.Equal(t, 1, resp.DeletedIncomplete)

	// the completed document survives with all its artifacts
	documents, err := f.store.Document().List(context.Background(),
		store.NewDocumentQueryFilter().ByBatchID(batchID))
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.Equal(t, "done.pdf", documents[0].Filename)

	// the incomplete one is fully removed
	require.Len(t, f.indexer.deleted, 1)
	fs := f.blobs.(*blob.FsStore)
	record, err := f.coordinator.Status(batchID)
	require.NoError(t, err)
	require.Len(t, record.Files, 1)
	assert.Equal(t, "done.pdf", record.Files[0].Filename)
	_, statErr := os.Stat(fs.PathFor(documents[0].BlobKey))
	assert.NoError(t, statErr)

	category, err := f.store.Category().Get(context.Background(), "cat_1")
	require.NoError(t, err)
	assert.Equal(t, 1, category.DocumentCount)

	// a second terminate finds one completed file and deletes nothing
	resp, err = f.coordinator.Terminate(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalDocuments)
	assert.Equal(t, 1, resp.KeptCompleted)
	assert.Equal(t, 0, resp.DeletedIncomplete)
}

func TestTerminateDropsBatchWithNoCompletedFiles(t *testing.T) {
	f := newFixture(t)

	batchID, _, err := f.coordinator.CreateBatch(context.Background(), "cat_1",
		[]batch.Upload{pdf("a.pdf")})
	require.NoError(t, err)
	f.processor.waitFor(t, 1)

	resp, err := f.coordinator.Terminate(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.KeptCompleted)
	assert.Equal(t, 1, resp.DeletedIncomplete)

	_, err = f.coordinator.Status(batchID)
	assert.ErrorIs(t, err, batch.ErrBatchNotFound)
}

func TestTerminateUnknownBatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Terminate(context.Background(), "no_such_batch")
	assert.ErrorIs(t, err, batch.ErrBatchNotFound)
}
