package rag

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/petrorag/petrorag/internal/blob"
	"github.com/petrorag/petrorag/internal/pipeline"
	"go.uber.org/zap"
)

// minImageDim filters decorative artifacts (rules, bullets, logos) the
// parser tends to report alongside real figures.
const minImageDim = 50

// ImageExtractor materializes the parser's raw images: fills in identity and
// geometry, drops tiny artifacts and persists the bytes alongside the
// original upload.
type ImageExtractor struct {
	blobs  blob.Store
	logger *zap.SugaredLogger
}

var _ pipeline.ImageExtractor = (*ImageExtractor)(nil)

func NewImageExtractor(blobs blob.Store) *ImageExtractor {
	return &ImageExtractor{blobs: blobs, logger: zap.S().Named("rag")}
}

func (e *ImageExtractor) Extract(ctx context.Context, task pipeline.Task, parsed *pipeline.ParseResult) ([]pipeline.ExtractedImage, error) {
	images := make([]pipeline.ExtractedImage, 0, len(parsed.Images))
	for _, img := range parsed.Images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if img.ImageID == "" {
			img.ImageID = uuid.NewString()
		}

		if img.Width == 0 || img.Height == 0 || img.Format == "" {
			cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
			if err != nil {
				e.logger.Debugw("skipping undecodable image",
					"document_id", task.DocumentID, "image_id", img.ImageID, "error", err)
				continue
			}
			img.Width, img.Height, img.Format = cfg.Width, cfg.Height, format
		}
		if img.Width < minImageDim || img.Height < minImageDim {
			continue
		}

		if err := e.blobs.Put(ctx, ImageBlobKey(task.DocumentID, img.ImageID, img.Format), img.Data); err != nil {
			return nil, fmt.Errorf("storing image %s: %w", img.ImageID, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// ImageBlobKey names the stored bytes of one extracted image.
func ImageBlobKey(documentID, imageID, format string) string {
	return fmt.Sprintf("images/%s/%s.%s", documentID, imageID, format)
}
