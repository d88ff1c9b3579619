// Package ocr provides local text recognition for chat images using Google Cloud.
//
// Two engines implement services.TextRecognizer:
//   - VisionRecognizer: Cloud Vision DOCUMENT_TEXT_DETECTION (default)
//   - DocumentAIRecognizer: a Document AI OCR processor
//
// Both accept the bot's "+"-joined language specs ("eng+hin") and translate
// them into BCP-47 language hints. An empty spec lets the engine auto-detect.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID: Document AI engine only
package ocr

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"

	"ocrbot/pkg/services"
)

const (
	// MaxFileSizeBytes is the largest image sent to the OCR backends (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// EngineVision selects VisionRecognizer.
	EngineVision = "vision"

	// EngineDocumentAI selects DocumentAIRecognizer.
	EngineDocumentAI = "documentai"
)

// Recognizer is a TextRecognizer holding a backend connection.
type Recognizer interface {
	services.TextRecognizer
	Close() error
}

// Options selects and configures the OCR engine.
type Options struct {
	Engine      string
	ProjectID   string
	Location    string
	ProcessorID string
}

// New creates the recognizer named by opts.Engine.
func New(ctx context.Context, opts Options) (Recognizer, error) {
	switch opts.Engine {
	case "", EngineVision:
		return NewVisionRecognizer(ctx)
	case EngineDocumentAI:
		return NewDocumentAIRecognizer(ctx, DocumentAIConfig{
			ProjectID:   opts.ProjectID,
			Location:    opts.Location,
			ProcessorID: opts.ProcessorID,
		})
	default:
		return nil, WrapOCRError("New", ErrUnknownEngine, opts.Engine)
	}
}

// credentialOptions resolves Google credentials from the environment.
// An empty result means Application Default Credentials.
func credentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}

// readImage loads and size-checks an image file.
func readImage(op, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read image")
	}
	if len(data) == 0 {
		return nil, WrapOCRError(op, ErrEmptyImage, path)
	}
	if len(data) > MaxFileSizeBytes {
		return nil, WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("file size: %d bytes", len(data)))
	}
	return data, nil
}
