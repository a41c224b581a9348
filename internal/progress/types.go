// Package progress is the single source of truth for per-file pipeline
// progress. It tracks every file of every in-flight batch, and fans updates
// out to any number of live subscribers without ever blocking the writers.
package progress

import (
	"time"

	api "github.com/petrorag/petrorag/api/v1alpha1"
)

// FileProgress is the granular state of one file inside a batch.
type FileProgress struct {
	Status     api.FileStatus
	Detail     string
	Timestamp  time.Time
	DocumentID string
}

// FileEntry pairs a filename with its progress. Entries keep upload order.
type FileEntry struct {
	Filename string
	FileProgress
}

// BatchRecord is a value snapshot of one batch. Mutating it never affects
// the store.
type BatchRecord struct {
	BatchID   string
	Files     []FileEntry
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether every file of the snapshot reached a terminal
// status. An empty batch counts as terminal.
func (r *BatchRecord) Terminal() bool {
	for _, f := range r.Files {
		if !f.Status.Terminal() {
			return false
		}
	}
	return true
}

// File returns the entry for the given filename, or nil.
func (r *BatchRecord) File(filename string) *FileEntry {
	for i := range r.Files {
		if r.Files[i].Filename == filename {
			return &r.Files[i]
		}
	}
	return nil
}

// ToApiResource converts the snapshot into its wire representation.
func (r *BatchRecord) ToApiResource() api.BatchStatus {
	files := make(map[string]api.FileProgress, len(r.Files))
	for _, f := range r.Files {
		files[f.Filename] = api.FileProgress{
			Status:    f.Status,
			Detail:    f.Detail,
			Timestamp: f.Timestamp,
		}
	}
	return api.BatchStatus{
		BatchId:   r.BatchID,
		Files:     files,
		Timestamp: r.UpdatedAt,
	}
}

// FileSeed describes one file at batch creation time.
type FileSeed struct {
	Filename   string
	DocumentID string
}

// stageRank orders the granular statuses so regressions can be rejected.
// failed is reachable from anywhere and completed/failed never move again.
var stageRank = map[api.FileStatus]int{
	api.FileStatusPending:          0,
	api.FileStatusProcessing:       1,
	api.FileStatusParsing:          2,
	api.FileStatusExtractingImages: 3,
	api.FileStatusChunking:         4,
	api.FileStatusIndexing:         5,
	api.FileStatusAnalyzingImages:  6,
	api.FileStatusIndexingImages:   7,
	api.FileStatusIndexingTables:   8,
	api.FileStatusCompleted:        9,
	api.FileStatusFailed:           10,
}

func allowedTransition(from, to api.FileStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == api.FileStatusFailed {
		return true
	}
	return stageRank[to] > stageRank[from]
}
