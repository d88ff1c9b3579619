package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"

	"ocrbot/internal/logger"
)

// imageAnnotator is the part of the Vision client the recognizer uses.
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionRecognizer implements services.TextRecognizer using Google Cloud Vision API.
type VisionRecognizer struct {
	client imageAnnotator
	log    zerolog.Logger
}

// NewVisionRecognizer creates a recognizer with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env,
// falling back to Application Default Credentials.
func NewVisionRecognizer(ctx context.Context) (*VisionRecognizer, error) {
	const op = "NewVisionRecognizer"

	opts := credentialOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}
	return newVisionRecognizer(client), nil
}

func newVisionRecognizer(client imageAnnotator) *VisionRecognizer {
	return &VisionRecognizer{
		client: client,
		log:    logger.WithComponent("ocr-vision"),
	}
}

// RecognizeText extracts text from the image at path. An image without text yields "".
func (v *VisionRecognizer) RecognizeText(ctx context.Context, path string, lang string) (string, error) {
	const op = "RecognizeText"
	startTime := time.Now()

	content, err := readImage(op, path)
	if err != nil {
		return "", err
	}
	hints, err := LanguageHints(lang)
	if err != nil {
		return "", WrapOCRError(op, err, "invalid language spec")
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: hints},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.GetResponses()) == 0 {
		return "", WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}
	imageResp := resp.GetResponses()[0]
	if imageResp.GetError() != nil {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imageResp.GetError().GetMessage()))
	}

	text := strings.TrimSpace(imageResp.GetFullTextAnnotation().GetText())
	v.log.Debug().
		Str("file", path).
		Strs("hints", hints).
		Int("text_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Vision OCR completed")
	return text, nil
}

// Close closes the underlying Vision client.
func (v *VisionRecognizer) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
