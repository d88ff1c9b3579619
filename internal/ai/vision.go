// Package ai escalates OCR to a remote vision model through an
// OpenAI-compatible chat completion API.
//
// AI_BASE_URL points the client at any compatible endpoint, including
// Gemini's (https://generativelanguage.googleapis.com/v1beta/openai/).
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"ocrbot/internal/logger"
)

// extractionPrompt asks for the text only.
const extractionPrompt = "Extract all text from this image. Return only the text, no commentary."

// MaxImageBytes bounds the image embedded in the request (20MB).
const MaxImageBytes = 20 * 1024 * 1024

var (
	// ErrNoChoices is returned when the model answers without any choice.
	ErrNoChoices = errors.New("no response choices from AI model")

	// ErrNotAnImage is returned when the file is not an image.
	ErrNotAnImage = errors.New("file is not an image")

	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("AI API key is required")
)

// Config configures the remote recognizer.
type Config struct {
	APIKey  string
	BaseURL string // empty means api.openai.com
	Model   string // defaults to gpt-4o-mini
	Timeout time.Duration
}

// VisionRecognizer implements services.AIRecognizer with a multimodal chat completion.
type VisionRecognizer struct {
	openaiClient *openai.Client
	model        string
	timeout      time.Duration
	log          zerolog.Logger
}

// NewVisionRecognizer creates a recognizer from cfg.
func NewVisionRecognizer(cfg Config) (*VisionRecognizer, error) {
	const op = "NewVisionRecognizer"

	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingAPIKey)
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &VisionRecognizer{
		openaiClient: openai.NewClientWithConfig(clientConfig),
		model:        model,
		timeout:      timeout,
		log:          logger.WithComponent("ai-vision"),
	}, nil
}

// RecognizeTextAI sends the image at path to the model and returns the extracted text.
func (r *VisionRecognizer) RecognizeTextAI(ctx context.Context, path string) (string, error) {
	const op = "RecognizeTextAI"
	startTime := time.Now()

	dataURL, err := imageDataURL(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.openaiClient.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: extractionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		Temperature: 0,
		MaxTokens:   4096,
	})
	if err != nil {
		return "", fmt.Errorf("%s: AI request failed: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrNoChoices)
	}

	text := stripCodeFence(resp.Choices[0].Message.Content)
	r.log.Debug().
		Str("file", path).
		Str("model", r.model).
		Int("text_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("AI OCR completed")
	return text, nil
}

// imageDataURL inlines the image as a base64 data URL.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", fmt.Errorf("image too large: %d bytes", len(data))
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotAnImage, mime.String())
	}
	return "data:" + mime.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// stripCodeFence removes a markdown code block the model sometimes wraps its answer in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], " ") {
		// drop a language tag such as ```text
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
