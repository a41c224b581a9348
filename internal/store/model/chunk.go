package model

import "gorm.io/gorm"

// Chunk is one indexed slice of a document's text. The vector lives in the
// vector index; this row keeps the durable text and its provenance.
type Chunk struct {
	gorm.Model
	ID           string `gorm:"primaryKey"`
	DocumentID   string `gorm:"index;not null"`
	CategoryID   string `gorm:"index;not null"`
	SectionTitle string
	PageStart    int
	PageEnd      int
	Content      string `gorm:"type:text"`
}

type ChunkList []Chunk
