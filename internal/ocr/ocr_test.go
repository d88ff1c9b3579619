package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/genproto/googleapis/rpc/status"
)

type fakeAnnotator struct {
	req  *visionpb.BatchAnnotateImagesRequest
	resp *visionpb.BatchAnnotateImagesResponse
	err  error
}

func (f *fakeAnnotator) BatchAnnotateImages(_ context.Context, req *visionpb.BatchAnnotateImagesRequest, _ ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeAnnotator) Close() error { return nil }

type fakeProcessor struct {
	req  *documentaipb.ProcessRequest
	resp *documentaipb.ProcessResponse
}

func (f *fakeProcessor) ProcessDocument(_ context.Context, req *documentaipb.ProcessRequest, _ ...gax.CallOption) (*documentaipb.ProcessResponse, error) {
	f.req = req
	return f.resp, nil
}

func (f *fakeProcessor) Close() error { return nil }

// pngHeader is enough for mime sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeTestImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.png")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestParseLanguageSpec(t *testing.T) {
	codes, err := ParseLanguageSpec(" ENG+hin+eng ")
	if err != nil {
		t.Fatalf("ParseLanguageSpec() error = %v", err)
	}
	if strings.Join(codes, ",") != "eng,hin" {
		t.Fatalf("codes = %v, want [eng hin]", codes)
	}
	if _, err := ParseLanguageSpec("eng+klingon"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("unsupported code error = %v", err)
	}
	if _, err := ParseLanguageSpec("+"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("empty spec error = %v", err)
	}
}

func TestLanguageHints(t *testing.T) {
	hints, err := LanguageHints("eng+chi_sim")
	if err != nil {
		t.Fatalf("LanguageHints() error = %v", err)
	}
	if strings.Join(hints, ",") != "en,zh" {
		t.Fatalf("hints = %v", hints)
	}
	if hints, _ := LanguageHints(""); hints != nil {
		t.Fatalf("empty spec hints = %v, want nil", hints)
	}
	if hints, _ := LanguageHints(AutoDetect()); hints != nil {
		t.Fatalf("auto-detect hints = %v, want nil", hints)
	}
}

func TestVisionRecognizeText(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{
			{FullTextAnnotation: &visionpb.TextAnnotation{Text: "Hello World\n"}},
		},
	}}
	v := newVisionRecognizer(fake)
	path := writeTestImage(t, pngHeader)

	text, err := v.RecognizeText(context.Background(), path, "eng+hin")
	if err != nil {
		t.Fatalf("RecognizeText() error = %v", err)
	}
	if text != "Hello World" {
		t.Fatalf("text = %q", text)
	}
	sent := fake.req.GetRequests()[0]
	if got := strings.Join(sent.GetImageContext().GetLanguageHints(), ","); got != "en,hi" {
		t.Fatalf("language hints = %q", got)
	}
	if sent.GetFeatures()[0].GetType() != visionpb.Feature_DOCUMENT_TEXT_DETECTION {
		t.Fatalf("feature = %v", sent.GetFeatures()[0].GetType())
	}
}

func TestVisionRecognizeTextAPIError(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{
			{Error: &status.Status{Message: "bad image"}},
		},
	}}
	v := newVisionRecognizer(fake)
	_, err := v.RecognizeText(context.Background(), writeTestImage(t, pngHeader), "")
	if !errors.Is(err, ErrOCRFailed) {
		t.Fatalf("error = %v, want ErrOCRFailed", err)
	}
	if !strings.Contains(err.Error(), "bad image") {
		t.Fatalf("error %q does not carry the API message", err)
	}
}

func TestVisionRejectsEmptyImage(t *testing.T) {
	v := newVisionRecognizer(&fakeAnnotator{})
	_, err := v.RecognizeText(context.Background(), writeTestImage(t, nil), "")
	if !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("error = %v, want ErrEmptyImage", err)
	}
}

func TestDocumentAIRecognizeText(t *testing.T) {
	fake := &fakeProcessor{resp: &documentaipb.ProcessResponse{
		Document: &documentaipb.Document{Text: "  Rechnung 42 "},
	}}
	p := newDocumentAIRecognizer(fake, DocumentAIConfig{ProjectID: "proj", Location: "eu", ProcessorID: "abc"})

	text, err := p.RecognizeText(context.Background(), writeTestImage(t, pngHeader), "deu")
	if err != nil {
		t.Fatalf("RecognizeText() error = %v", err)
	}
	if text != "Rechnung 42" {
		t.Fatalf("text = %q", text)
	}
	if fake.req.GetName() != "projects/proj/locations/eu/processors/abc" {
		t.Fatalf("processor name = %q", fake.req.GetName())
	}
	if got := fake.req.GetRawDocument().GetMimeType(); got != "image/png" {
		t.Fatalf("mime type = %q", got)
	}
	if got := fake.req.GetProcessOptions().GetOcrConfig().GetHints().GetLanguageHints(); len(got) != 1 || got[0] != "de" {
		t.Fatalf("hints = %v", got)
	}
}

func TestNewRejectsUnknownEngine(t *testing.T) {
	if _, err := New(context.Background(), Options{Engine: "tesseract"}); !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("error = %v, want ErrUnknownEngine", err)
	}
}
