package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/progress"
	"github.com/petrorag/petrorag/internal/store"
	"github.com/petrorag/petrorag/internal/store/model"
	"go.uber.org/zap"
)

const imageContextLimit = 2000

type ExecutorOption func(e *Executor)

// WithStageTimeout bounds every stage's collaborator call. Zero disables the
// timeout; a stuck external call then stalls the file until the batch is
// terminated explicitly.
func WithStageTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.stageTimeout = d
	}
}

// Executor runs single files through the processing sequence. It is safe for
// concurrent use; every Process call is independent.
type Executor struct {
	progress     *progress.Store
	store        store.Store
	parser       Parser
	extractor    ImageExtractor
	chunker      Chunker
	analyzer     ImageAnalyzer
	indexer      Indexer
	stageTimeout time.Duration
	logger       *zap.SugaredLogger
}

func NewExecutor(
	progressStore *progress.Store,
	dataStore store.Store,
	parser Parser,
	extractor ImageExtractor,
	chunker Chunker,
	analyzer ImageAnalyzer,
	indexer Indexer,
	opts ...ExecutorOption,
) *Executor {
	e := &Executor{
		progress:  progressStore,
		store:     dataStore,
		parser:    parser,
		extractor: extractor,
		chunker:   chunker,
		analyzer:  analyzer,
		indexer:   indexer,
		logger:    zap.S().Named("pipeline"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Process runs the task through every stage in order. Cancellation is
// cooperative: the context is checked at each stage boundary, an in-flight
// collaborator call is never preempted and its result is discarded once
// cancellation is observed. A stage error marks this file failed and leaves
// sibling files untouched.
func (e *Executor) Process(ctx context.Context, task Task) error {
	if err := e.advance(ctx, task, api.FileStatusProcessing, "Starting processing"); err != nil {
		return err
	}
	if err := e.store.Document().UpdateStatus(ctx, task.DocumentID, api.DocumentStatusProcessing, ""); err != nil {
		return e.fail(ctx, task, fmt.Errorf("updating document status: %w", err))
	}

	var parsed *ParseResult
	if err := e.stage(ctx, task, api.FileStatusParsing, "Parsing document", func(ctx context.Context) error {
		var err error
		parsed, err = e.parser.Parse(ctx, task)
		return err
	}); err != nil {
		return err
	}

	var images []ExtractedImage
	if err := e.stage(ctx, task, api.FileStatusExtractingImages, "Extracting images", func(ctx context.Context) error {
		var err error
		images, err = e.extractor.Extract(ctx, task, parsed)
		return err
	}); err != nil {
		return err
	}

	var chunks []Chunk
	if err := e.stage(ctx, task, api.FileStatusChunking, "Creating chunks", func(ctx context.Context) error {
		var err error
		chunks, err = e.chunker.Chunk(ctx, task, parsed, images)
		return err
	}); err != nil {
		return err
	}

	if err := e.stage(ctx, task, api.FileStatusIndexing, fmt.Sprintf("Indexing %d chunks", len(chunks)), func(ctx context.Context) error {
		if err := e.store.Chunk().CreateBatch(ctx, chunkModels(task, chunks)); err != nil {
			return err
		}
		return e.indexer.IndexChunks(ctx, task, chunks)
	}); err != nil {
		return err
	}

	if err := e.stage(ctx, task, api.FileStatusAnalyzingImages, fmt.Sprintf("Analyzing %d images", len(images)), func(ctx context.Context) error {
		e.analyzeImages(ctx, task, images, chunks)
		return nil
	}); err != nil {
		return err
	}

	if err := e.stage(ctx, task, api.FileStatusIndexingImages, "Indexing images", func(ctx context.Context) error {
		if len(images) == 0 {
			return nil
		}
		return e.indexer.IndexImages(ctx, task, images)
	}); err != nil {
		return err
	}

	if err := e.stage(ctx, task, api.FileStatusIndexingTables, "Indexing tables", func(ctx context.Context) error {
		if len(parsed.Tables) == 0 {
			return nil
		}
		return e.indexer.IndexTables(ctx, task, parsed.Tables)
	}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// terminal writes survive a post-completion cancellation
	finishCtx := context.WithoutCancel(ctx)
	if err := e.store.Document().UpdatePageCount(finishCtx, task.DocumentID, parsed.PageCount); err != nil {
		e.logger.Warnw("failed to persist page count", "document_id", task.DocumentID, "error", err)
	}
	if err := e.store.Document().UpdateStatus(finishCtx, task.DocumentID, api.DocumentStatusCompleted, ""); err != nil {
		return e.fail(ctx, task, fmt.Errorf("updating document status: %w", err))
	}
	if err := e.progress.Update(task.BatchID, task.Filename, api.FileStatusCompleted, "Processing completed"); err != nil {
		e.logger.Debugw("progress update after completion", "batch_id", task.BatchID, "error", err)
	}

	e.logger.Infow("document processed", "document_id", task.DocumentID, "filename", task.Filename, "pages", parsed.PageCount)
	return nil
}

// stage runs one unit of work bracketed by a cancellation check and a status
// transition. On work error the file transitions to failed.
func (e *Executor) stage(ctx context.Context, task Task, status api.FileStatus, detail string, work func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		// aborted by termination; status stays unresolved for cleanup
		return err
	}

	if err := e.advance(ctx, task, status, detail); err != nil {
		return err
	}

	stageCtx := ctx
	if e.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, e.stageTimeout)
		defer cancel()
	}

	if err := work(stageCtx); err != nil {
		if ctx.Err() != nil {
			// cancelled underneath the stage; discard the result
			return ctx.Err()
		}
		return e.fail(ctx, task, fmt.Errorf("%s: %w", status, err))
	}
	return nil
}

func (e *Executor) advance(ctx context.Context, task Task, status api.FileStatus, detail string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.progress.Update(task.BatchID, task.Filename, status, detail)
}

// fail records the failure in both the progress store and the durable
// document record, then stops this file. Sibling files keep running.
func (e *Executor) fail(ctx context.Context, task Task, cause error) error {
	e.logger.Errorw("document processing failed",
		"document_id", task.DocumentID, "filename", task.Filename, "error", cause)

	failCtx := context.WithoutCancel(ctx)
	if err := e.progress.Update(task.BatchID, task.Filename, api.FileStatusFailed, cause.Error()); err != nil {
		e.logger.Debugw("progress update after failure", "batch_id", task.BatchID, "error", err)
	}
	if err := e.store.Document().UpdateStatus(failCtx, task.DocumentID, api.DocumentStatusFailed, cause.Error()); err != nil {
		e.logger.Warnw("failed to persist document failure", "document_id", task.DocumentID, "error", err)
	}
	return cause
}

// analyzeImages annotates images with a vision-model description. A single
// image failing analysis is not a stage failure.
func (e *Executor) analyzeImages(ctx context.Context, task Task, images []ExtractedImage, chunks []Chunk) {
	if len(images) == 0 {
		return
	}

	contextByImage := make(map[string][]string)
	for _, chunk := range chunks {
		for _, imageID := range chunk.ImageIDs {
			contextByImage[imageID] = append(contextByImage[imageID], chunk.Content)
		}
	}

	for i := range images {
		if ctx.Err() != nil {
			return
		}
		contextText := strings.Join(contextByImage[images[i].ImageID], "\n")
		if len(contextText) > imageContextLimit {
			contextText = contextText[:imageContextLimit]
		}
		analysis, err := e.analyzer.Analyze(ctx, images[i], contextText)
		if err != nil {
			e.logger.Warnw("image analysis failed", "image_id", images[i].ImageID, "error", err)
			continue
		}
		images[i].Analysis = analysis
		if images[i].Caption == "" {
			images[i].Caption = truncate(analysis, 200)
		}
	}
}

func chunkModels(task Task, chunks []Chunk) model.ChunkList {
	models := make(model.ChunkList, 0, len(chunks))
	for _, c := range chunks {
		models = append(models, model.Chunk{
			ID:           c.ChunkID,
			DocumentID:   task.DocumentID,
			CategoryID:   task.CategoryID,
			SectionTitle: c.SectionTitle,
			PageStart:    c.PageStart,
			PageEnd:      c.PageEnd,
			Content:      c.Content,
		})
	}
	return models
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
