// Package v1alpha1 holds the wire types of the PetroRAG HTTP API.
package v1alpha1

import "time"

// DocumentStatus is the coarse, durable status of a document.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// FileStatus is the granular per-stage status of a file inside a batch.
type FileStatus string

const (
	FileStatusPending          FileStatus = "pending"
	FileStatusProcessing       FileStatus = "processing"
	FileStatusParsing          FileStatus = "parsing"
	FileStatusExtractingImages FileStatus = "extracting_images"
	FileStatusChunking         FileStatus = "chunking"
	FileStatusIndexing         FileStatus = "indexing"
	FileStatusAnalyzingImages  FileStatus = "analyzing_images"
	FileStatusIndexingImages   FileStatus = "indexing_images"
	FileStatusIndexingTables   FileStatus = "indexing_tables"
	FileStatusCompleted        FileStatus = "completed"
	FileStatusFailed           FileStatus = "failed"
)

// Terminal reports whether no further transitions can happen for this status.
func (s FileStatus) Terminal() bool {
	return s == FileStatusCompleted || s == FileStatusFailed
}

type Error struct {
	Message   string  `json:"message"`
	RequestId *string `json:"request_id,omitempty"`
}

type DocumentUploadResponse struct {
	DocumentId string         `json:"document_id"`
	CategoryId string         `json:"category_id"`
	Filename   string         `json:"filename"`
	Status     DocumentStatus `json:"status"`
	BatchId    string         `json:"batch_id"`
	Message    string         `json:"message"`
}

type Document struct {
	DocumentId string         `json:"document_id"`
	CategoryId string         `json:"category_id"`
	Filename   string         `json:"filename"`
	FileSize   int64          `json:"file_size"`
	PageCount  int            `json:"page_count"`
	Status     DocumentStatus `json:"status"`
	StatusInfo string         `json:"status_info,omitempty"`
	BatchId    string         `json:"batch_id,omitempty"`
	IsDaily    bool           `json:"is_daily"`
	UploadDate time.Time      `json:"upload_date"`
}

// DailyCleanupResponse reports how many expired daily documents were removed.
type DailyCleanupResponse struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

type DocumentList []Document

// FileProgress is the snapshot entry for one file of a batch.
type FileProgress struct {
	Status    FileStatus `json:"status"`
	Detail    string     `json:"detail"`
	Timestamp time.Time  `json:"timestamp"`
}

// BatchStatus is the one-shot snapshot of a batch.
type BatchStatus struct {
	BatchId   string                  `json:"batch_id"`
	Files     map[string]FileProgress `json:"files"`
	Timestamp time.Time               `json:"timestamp"`
}

// Progress stream event types. Every SSE payload carrying a "type" field is
// either an initial_state or a heartbeat; file updates carry no type, matching
// the shape subscribers already parse.
const (
	EventTypeInitialState = "initial_state"
	EventTypeHeartbeat    = "heartbeat"
)

type InitialStateEvent struct {
	Type    string                  `json:"type"`
	BatchId string                  `json:"batch_id"`
	Files   map[string]FileProgress `json:"files"`
}

type HeartbeatEvent struct {
	Type      string    `json:"type"`
	BatchId   string    `json:"batch_id"`
	Timestamp time.Time `json:"timestamp"`
}

type FileUpdateEvent struct {
	BatchId   string     `json:"batch_id"`
	Filename  string     `json:"filename"`
	Status    FileStatus `json:"status"`
	Detail    string     `json:"detail"`
	Timestamp time.Time  `json:"timestamp"`
}

type BatchTerminateResponse struct {
	BatchId           string `json:"batch_id"`
	TotalDocuments    int    `json:"total_documents"`
	KeptCompleted     int    `json:"kept_completed"`
	DeletedIncomplete int    `json:"deleted_incomplete"`
}

type Category struct {
	CategoryId    string    `json:"category_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type CategoryList []Category

type CategoryCreate struct {
	Name        string `json:"name" validate:"required,min=1,max=100,category_name"`
	Description string `json:"description" validate:"max=500"`
}

type Chat struct {
	ChatId     string        `json:"chat_id"`
	CategoryId string        `json:"category_id"`
	Title      string        `json:"title"`
	Messages   []ChatMessage `json:"messages,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type ChatList []Chat

type ChatCreate struct {
	CategoryId string `json:"category_id" validate:"required"`
	Title      string `json:"title" validate:"max=200"`
}

type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatMessageCreate struct {
	Content string `json:"content" validate:"required,min=1"`
}

type QueryRequest struct {
	CategoryId string `json:"category_id" validate:"required"`
	Question   string `json:"question" validate:"required,min=1"`
	TopK       int    `json:"top_k" validate:"omitempty,min=1,max=100"`
}

type QuerySource struct {
	DocumentId string  `json:"document_id"`
	Filename   string  `json:"filename,omitempty"`
	Section    string  `json:"section,omitempty"`
	Score      float32 `json:"score"`
	Excerpt    string  `json:"excerpt"`
}

type QueryResponse struct {
	Answer  string        `json:"answer"`
	Sources []QuerySource `json:"sources"`
}

type ImageSearchRequest struct {
	QueryText  string `json:"query_text" validate:"required,min=1"`
	CategoryId string `json:"category_id"`
	TopK       int    `json:"top_k" validate:"omitempty,min=1,max=20"`
}

type ImageSearchResult struct {
	ImageId      string  `json:"image_id"`
	DocumentId   string  `json:"document_id"`
	Filename     string  `json:"filename,omitempty"`
	PageNumber   int     `json:"page_number"`
	SectionTitle string  `json:"section_title,omitempty"`
	Description  string  `json:"description,omitempty"`
	ImagePath    string  `json:"image_path"`
	Score        float32 `json:"score"`
}

type ImageSearchResponse struct {
	QueryText string              `json:"query_text"`
	Results   []ImageSearchResult `json:"results"`
	Count     int                 `json:"count"`
}

// ChatStreamDone is the final event of a streamed chat answer, sent after the
// per-token events.
type ChatStreamDone struct {
	Done    bool          `json:"done"`
	ChatId  string        `json:"chat_id"`
	Answer  string        `json:"answer"`
	Sources []QuerySource `json:"sources"`
}

// ChatStreamToken carries one incremental piece of a streamed answer.
type ChatStreamToken struct {
	Token string `json:"token"`
}
