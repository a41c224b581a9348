package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/petrorag/petrorag/internal/config"
	"github.com/petrorag/petrorag/internal/pipeline"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const analyzeSystemPrompt = `You are a technical analyst for petroleum industry documents.
Describe the supplied figure precisely: what it shows, axes and units if it is a chart,
and any values that can be read off it. Use the surrounding document text for context.
Answer in plain prose, no markdown.`

const answerSystemPrompt = `You are an assistant answering questions about petroleum
industry documents. Answer using only the supplied context passages. When the context
does not contain the answer, say so. Cite the source document names you used.`

func newChatClient(cfg *config.Config, model string) (*openai.LLM, error) {
	opts := []openai.Option{openai.WithModel(model)}
	if cfg.AI.OpenAIAPIKey != "" {
		opts = append(opts, openai.WithToken(cfg.AI.OpenAIAPIKey))
	} else {
		opts = append(opts, openai.WithToken("none"))
	}
	if cfg.AI.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.AI.OpenAIBaseURL))
	}
	return openai.New(opts...)
}

// ImageAnalyzer describes document figures with a vision-capable chat model.
type ImageAnalyzer struct {
	client llms.Model
	logger *zap.SugaredLogger
}

var _ pipeline.ImageAnalyzer = (*ImageAnalyzer)(nil)

func NewImageAnalyzer(cfg *config.Config) (*ImageAnalyzer, error) {
	client, err := newChatClient(cfg, cfg.AI.VisionModel)
	if err != nil {
		return nil, err
	}
	return &ImageAnalyzer{client: client, logger: zap.S().Named("rag")}, nil
}

func (a *ImageAnalyzer) Analyze(ctx context.Context, image pipeline.ExtractedImage, contextText string) (string, error) {
	prompt := "Describe this figure."
	if contextText != "" {
		prompt = fmt.Sprintf("Surrounding document text:\n%s\n\nDescribe this figure.", contextText)
	}
	mimeType := "image/png"
	if image.Format != "" {
		mimeType = "image/" + image.Format
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(analyzeSystemPrompt)},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(mimeType, image.Data),
				llms.TextPart(prompt),
			},
		},
	}

	resp, err := a.client.GenerateContent(ctx, content, llms.WithTemperature(0.1))
	if err != nil {
		return "", fmt.Errorf("analyzing image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("analyzing image: empty model response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// Answerer generates grounded answers from retrieved passages.
type Answerer struct {
	client llms.Model
}

func NewAnswerer(cfg *config.Config) (*Answerer, error) {
	client, err := newChatClient(cfg, cfg.AI.TextModel)
	if err != nil {
		return nil, err
	}
	return &Answerer{client: client}, nil
}

// Answer produces an answer to the question from the passages, optionally
// continuing a prior conversation.
func (a *Answerer) Answer(ctx context.Context, question string, passages []Passage, history []llms.MessageContent) (string, error) {
	resp, err := a.client.GenerateContent(ctx, answerContent(question, passages, history), llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generating answer: empty model response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// AnswerStream is Answer with incremental delivery: onToken is called for
// every generated fragment, in order, before the full answer is returned.
func (a *Answerer) AnswerStream(ctx context.Context, question string, passages []Passage, history []llms.MessageContent, onToken func(string)) (string, error) {
	var full strings.Builder
	resp, err := a.client.GenerateContent(ctx, answerContent(question, passages, history),
		llms.WithTemperature(0.2),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			full.Write(chunk)
			onToken(string(chunk))
			return nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	answer := strings.TrimSpace(full.String())
	if answer == "" && len(resp.Choices) > 0 {
		answer = strings.TrimSpace(resp.Choices[0].Content)
	}
	if answer == "" {
		return "", fmt.Errorf("generating answer: empty model response")
	}
	return answer, nil
}

func answerContent(question string, passages []Passage, history []llms.MessageContent) []llms.MessageContent {
	var sb strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&sb, "[%d] %s (page %d)\n%s\n\n", i+1, p.Filename, p.PageStart, p.Content)
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(answerSystemPrompt)},
		},
	}
	content = append(content, history...)
	content = append(content, llms.MessageContent{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.TextPart(fmt.Sprintf("Context passages:\n\n%sQuestion: %s", sb.String(), question)),
		},
	})
	return content
}
