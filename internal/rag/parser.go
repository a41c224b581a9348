package rag

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/petrorag/petrorag/internal/blob"
	"github.com/petrorag/petrorag/internal/config"
	"github.com/petrorag/petrorag/internal/pipeline"
)

// HTTPParser sends the stored PDF to the external parsing service and maps
// its response onto the pipeline types.
type HTTPParser struct {
	baseURL string
	blobs   blob.Store
	client  *http.Client
}

var _ pipeline.Parser = (*HTTPParser)(nil)

func NewHTTPParser(cfg *config.Config, blobs blob.Store) *HTTPParser {
	return &HTTPParser{
		baseURL: cfg.AI.ParserURL,
		blobs:   blobs,
		// parsing large PDFs is slow; stage timeouts bound it further
		client: &http.Client{Timeout: 10 * time.Minute},
	}
}

type parsedDocument struct {
	PageCount int `json:"page_count"`
	Sections  []struct {
		Title     string `json:"title"`
		Level     int    `json:"level"`
		Content   string `json:"content"`
		PageStart int    `json:"page_start"`
		PageEnd   int    `json:"page_end"`
	} `json:"sections"`
	Tables []struct {
		TableID      string     `json:"table_id"`
		PageNumber   int        `json:"page_number"`
		SectionTitle string     `json:"section_title"`
		Headers      []string   `json:"headers"`
		Rows         [][]string `json:"rows"`
		Markdown     string     `json:"markdown"`
	} `json:"tables"`
	Images []struct {
		ImageID      string `json:"image_id"`
		PageNumber   int    `json:"page_number"`
		SectionTitle string `json:"section_title"`
		Caption      string `json:"caption"`
		Format       string `json:"format"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		Data         string `json:"data"`
	} `json:"images"`
}

func (p *HTTPParser) Parse(ctx context.Context, task pipeline.Task) (*pipeline.ParseResult, error) {
	var raw bytes.Buffer
	if err := p.blobs.Get(ctx, task.BlobKey, &raw); err != nil {
		return nil, fmt.Errorf("reading uploaded file: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", task.Filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/parse", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling parser service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("parser service returned %d: %s", resp.StatusCode, string(msg))
	}

	var parsed parsedDocument
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding parser response: %w", err)
	}
	return toParseResult(&parsed)
}

func toParseResult(parsed *parsedDocument) (*pipeline.ParseResult, error) {
	result := &pipeline.ParseResult{PageCount: parsed.PageCount}

	for _, s := range parsed.Sections {
		result.Sections = append(result.Sections, pipeline.ParsedSection{
			Title:     s.Title,
			Level:     s.Level,
			Content:   s.Content,
			PageStart: s.PageStart,
			PageEnd:   s.PageEnd,
		})
	}
	for _, t := range parsed.Tables {
		result.Tables = append(result.Tables, pipeline.ExtractedTable{
			TableID:      t.TableID,
			PageNumber:   t.PageNumber,
			SectionTitle: t.SectionTitle,
			Headers:      t.Headers,
			Rows:         t.Rows,
			Markdown:     t.Markdown,
		})
	}
	for _, img := range parsed.Images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			return nil, fmt.Errorf("decoding image %s: %w", img.ImageID, err)
		}
		result.Images = append(result.Images, pipeline.ExtractedImage{
			ImageID:      img.ImageID,
			PageNumber:   img.PageNumber,
			SectionTitle: img.SectionTitle,
			Caption:      img.Caption,
			Format:       img.Format,
			Width:        img.Width,
			Height:       img.Height,
			Data:         data,
		})
	}
	return result, nil
}
