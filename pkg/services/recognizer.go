package services

import "context"

// TextRecognizer runs local OCR on an image file.
type TextRecognizer interface {
	// RecognizeText extracts text from the image at path.
	// lang is a "+"-joined list of language codes; empty means auto-detect over every supported language.
	RecognizeText(ctx context.Context, path string, lang string) (string, error)
}

// AIRecognizer runs the remote vision model on an image file.
type AIRecognizer interface {
	// RecognizeTextAI extracts text from the image at path. It takes no language parameter.
	RecognizeTextAI(ctx context.Context, path string) (string, error)
}
