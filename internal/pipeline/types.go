// Package pipeline runs one uploaded document through the processing
// sequence: parse, extract, chunk, index, analyze. The actual content work is
// delegated to collaborators; this package owns sequencing, status reporting,
// cancellation checks and error isolation.
package pipeline

import "context"

// Task identifies one file's processing run, bound to its batch.
type Task struct {
	BatchID    string
	DocumentID string
	CategoryID string
	Filename   string
	BlobKey    string
}

type ParsedSection struct {
	Title     string
	Level     int
	Content   string
	PageStart int
	PageEnd   int
}

type ExtractedTable struct {
	TableID      string
	PageNumber   int
	SectionTitle string
	Headers      []string
	Rows         [][]string
	Markdown     string
}

type ExtractedImage struct {
	ImageID      string
	PageNumber   int
	SectionTitle string
	Caption      string
	Format       string
	Width        int
	Height       int
	Data         []byte
	Analysis     string
}

// ParseResult is the structured output of the document parser.
type ParseResult struct {
	PageCount int
	Sections  []ParsedSection
	Tables    []ExtractedTable
	Images    []ExtractedImage
}

type Chunk struct {
	ChunkID      string
	DocumentID   string
	CategoryID   string
	SectionTitle string
	PageStart    int
	PageEnd      int
	Content      string
	ImageIDs     []string
}

// Parser turns the raw uploaded bytes into sections, tables and raw images.
type Parser interface {
	Parse(ctx context.Context, task Task) (*ParseResult, error)
}

// ImageExtractor materializes the images found during parsing (decoding,
// resizing, persisting the image files) and returns their records.
type ImageExtractor interface {
	Extract(ctx context.Context, task Task, parsed *ParseResult) ([]ExtractedImage, error)
}

// Chunker splits parsed sections into indexable chunks, linking images and
// tables that fall inside each chunk's page range.
type Chunker interface {
	Chunk(ctx context.Context, task Task, parsed *ParseResult, images []ExtractedImage) ([]Chunk, error)
}

// ImageAnalyzer produces a textual description of one image, given optional
// surrounding text.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, image ExtractedImage, contextText string) (string, error)
}

// Indexer writes chunks, images and tables into the vector index and removes
// every trace of a document on deletion.
type Indexer interface {
	IndexChunks(ctx context.Context, task Task, chunks []Chunk) error
	IndexImages(ctx context.Context, task Task, images []ExtractedImage) error
	IndexTables(ctx context.Context, task Task, tables []ExtractedTable) error
	DeleteDocument(ctx context.Context, documentID string) error
}
