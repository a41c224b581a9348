package model

import (
	"encoding/json"
	"time"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"gorm.io/gorm"
)

type Document struct {
	gorm.Model
	ID         string `gorm:"primaryKey"`
	CategoryID string `gorm:"index;not null"`
	Filename   string `gorm:"not null"`
	BlobKey    string `gorm:"not null"`
	FileSize   int64
	PageCount  int
	Status     string `gorm:"index;default:pending"`
	StatusInfo string
	BatchID    string `gorm:"index"`
	Daily      bool   `gorm:"index"`
}

type DocumentList []Document

func (d Document) String() string {
	val, _ := json.Marshal(d)
	return string(val)
}

func (d Document) ToApiResource() api.Document {
	uploadDate := d.CreatedAt
	if uploadDate.IsZero() {
		uploadDate = time.Now().UTC()
	}
	return api.Document{
		DocumentId: d.ID,
		CategoryId: d.CategoryID,
		Filename:   d.Filename,
		FileSize:   d.FileSize,
		PageCount:  d.PageCount,
		Status:     api.DocumentStatus(d.Status),
		StatusInfo: d.StatusInfo,
		BatchId:    d.BatchID,
		IsDaily:    d.Daily,
		UploadDate: uploadDate,
	}
}

func (dl DocumentList) ToApiResource() api.DocumentList {
	documents := make(api.DocumentList, 0, len(dl))
	for _, d := range dl {
		documents = append(documents, d.ToApiResource())
	}
	return documents
}
