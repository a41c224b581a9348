package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/petrorag/petrorag/internal/pipeline"
)

const (
	minChunkSize      = 100
	defaultChunkSize  = 2000
	defaultOverlapPct = 0.20
)

var splitSeparators = []string{"\n\n", "\n", ". ", " "}

// SectionChunker splits parsed sections into indexable chunks. Sections that
// fit the size limit become one chunk; larger ones are split recursively on
// paragraph, line and sentence boundaries with a proportional overlap.
// Images and tables are attached to chunks by page range.
type SectionChunker struct {
	maxSize    int
	overlapPct float64
}

var _ pipeline.Chunker = (*SectionChunker)(nil)

func NewSectionChunker() *SectionChunker {
	return &SectionChunker{maxSize: defaultChunkSize, overlapPct: defaultOverlapPct}
}

func (c *SectionChunker) Chunk(ctx context.Context, task pipeline.Task, parsed *pipeline.ParseResult, images []pipeline.ExtractedImage) ([]pipeline.Chunk, error) {
	var chunks []pipeline.Chunk
	for _, section := range parsed.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks = append(chunks, c.chunkSection(task, section, images)...)
	}

	chunks = mergeSmallChunks(chunks, c.maxSize)

	// drop leftovers too small to retrieve meaningfully
	kept := chunks[:0]
	for _, chunk := range chunks {
		if len(strings.TrimSpace(chunk.Content)) >= minChunkSize {
			kept = append(kept, chunk)
		}
	}

	for i := range kept {
		kept[i].ChunkID = fmt.Sprintf("%s_chunk_%d", task.DocumentID, i)
	}
	return kept, nil
}

func (c *SectionChunker) chunkSection(task pipeline.Task, section pipeline.ParsedSection, images []pipeline.ExtractedImage) []pipeline.Chunk {
	content := strings.TrimSpace(section.Content)
	if len(content) < minChunkSize {
		return nil
	}

	newChunk := func(text string, pageStart, pageEnd int) pipeline.Chunk {
		return pipeline.Chunk{
			DocumentID:   task.DocumentID,
			CategoryID:   task.CategoryID,
			SectionTitle: section.Title,
			PageStart:    pageStart,
			PageEnd:      pageEnd,
			Content:      text,
			ImageIDs:     imageIDsInRange(images, pageStart, pageEnd),
		}
	}

	if len(content) <= c.maxSize {
		return []pipeline.Chunk{newChunk(content, section.PageStart, section.PageEnd)}
	}

	overlap := int(float64(c.maxSize) * c.overlapPct)
	parts := recursiveSplit(content, splitSeparators, c.maxSize, overlap)

	chunks := make([]pipeline.Chunk, 0, len(parts))
	offset := 0
	for _, part := range parts {
		if len(strings.TrimSpace(part)) < 50 {
			continue
		}
		start := strings.Index(content[offset:], part)
		if start >= 0 {
			offset += start
		}
		pageStart, pageEnd := interpolatePages(section, len(content), offset, offset+len(part))
		chunks = append(chunks, newChunk(part, pageStart, pageEnd))
	}
	return chunks
}

// interpolatePages estimates a split chunk's page range from its character
// position within the section.
func interpolatePages(section pipeline.ParsedSection, totalLen, startPos, endPos int) (int, int) {
	if totalLen == 0 {
		return section.PageStart, section.PageEnd
	}
	totalPages := section.PageEnd - section.PageStart + 1
	pageStart := section.PageStart + startPos*totalPages/totalLen
	pageEnd := section.PageStart + endPos*totalPages/totalLen
	return clampPage(pageStart, section), clampPage(pageEnd, section)
}

func clampPage(p int, section pipeline.ParsedSection) int {
	if p < section.PageStart {
		return section.PageStart
	}
	if p > section.PageEnd {
		return section.PageEnd
	}
	return p
}

func imageIDsInRange(images []pipeline.ExtractedImage, pageStart, pageEnd int) []string {
	var ids []string
	for _, img := range images {
		if img.PageNumber >= pageStart && img.PageNumber <= pageEnd {
			ids = append(ids, img.ImageID)
		}
	}
	return ids
}

// recursiveSplit breaks text into pieces of at most chunkSize characters,
// preferring the earliest separator that produces fitting pieces, with
// trailing overlap carried into the next piece.
func recursiveSplit(text string, separators []string, chunkSize, overlap int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return hardSplit(text, chunkSize, overlap)
	}

	sep := separators[0]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return recursiveSplit(text, separators[1:], chunkSize, overlap)
	}

	var out []string
	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		piece := current.String()
		out = append(out, piece)
		current.Reset()
		if overlap > 0 && len(piece) > overlap {
			current.WriteString(piece[len(piece)-overlap:])
			current.WriteString(sep)
		}
	}

	for _, part := range parts {
		if current.Len()+len(sep)+len(part) > chunkSize {
			flush()
		}
		if len(part) > chunkSize {
			flush()
			out = append(out, recursiveSplit(part, separators[1:], chunkSize, overlap)...)
			continue
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
	}
	flush()
	return out
}

func hardSplit(text string, chunkSize, overlap int) []string {
	var out []string
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}
	for start := 0; start < len(text); start += step {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[start:end])
		if end == len(text) {
			break
		}
	}
	return out
}

// mergeSmallChunks folds undersized chunks into their predecessor when both
// belong to the same section and the result still fits.
func mergeSmallChunks(chunks []pipeline.Chunk, maxSize int) []pipeline.Chunk {
	mergeThreshold := maxSize * 3 / 10
	var out []pipeline.Chunk
	for _, chunk := range chunks {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if len(chunk.Content) < mergeThreshold &&
				prev.SectionTitle == chunk.SectionTitle &&
				len(prev.Content)+len(chunk.Content) <= maxSize {
				prev.Content += "\n\n" + chunk.Content
				if chunk.PageEnd > prev.PageEnd {
					prev.PageEnd = chunk.PageEnd
				}
				prev.ImageIDs = append(prev.ImageIDs, chunk.ImageIDs...)
				continue
			}
		}
		out = append(out, chunk)
	}
	return out
}
