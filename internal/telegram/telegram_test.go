package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ocrbot/internal/flow"
)

// pngHeader is enough for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type staticLocator struct {
	url string
	err error
}

func (l staticLocator) GetFileDirectURL(string) (string, error) {
	return l.url, l.err
}

func TestDownloadNamesFileByContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngHeader)
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "downloads")
	d, err := NewDownloader(staticLocator{url: srv.URL + "/file/bot/photos/a"}, dir)
	if err != nil {
		t.Fatalf("NewDownloader() error = %v", err)
	}

	first, err := d.Download(context.Background(), flow.Media{FileID: "a", Kind: flow.MediaPhoto})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	second, err := d.Download(context.Background(), flow.Media{FileID: "a", Kind: flow.MediaPhoto})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if first == second {
		t.Fatalf("two downloads share path %s", first)
	}
	if filepath.Dir(first) != dir || filepath.Ext(first) != ".png" {
		t.Fatalf("path = %s", first)
	}
	data, err := os.ReadFile(first)
	if err != nil || string(data) != string(pngHeader) {
		t.Fatalf("stored content mismatch: %v", err)
	}
}

func TestDownloadFailures(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer empty.Close()
	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()

	tests := []struct {
		name    string
		locator staticLocator
		want    error
	}{
		{"resolve", staticLocator{err: errors.New("file is too big")}, nil},
		{"empty body", staticLocator{url: empty.URL}, ErrEmptyFile},
		{"status", staticLocator{url: missing.URL}, nil},
	}
	for _, tt := range tests {
		dir := t.TempDir()
		d, err := NewDownloader(tt.locator, dir)
		if err != nil {
			t.Fatalf("NewDownloader() error = %v", err)
		}
		_, err = d.Download(context.Background(), flow.Media{FileID: "x"})
		if err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Fatalf("%s: error = %v, want %v", tt.name, err, tt.want)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Fatalf("%s: left %d files behind", tt.name, len(entries))
		}
	}
}

func TestToMessagePicksLargestPhotoAndCaption(t *testing.T) {
	m := &tgbotapi.Message{
		MessageID: 12,
		Date:      1714564800,
		From:      &tgbotapi.User{ID: 7, FirstName: "Asha", UserName: "asha"},
		Chat:      &tgbotapi.Chat{ID: 7, Type: "private"},
		Caption:   "/ocr",
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "large", Width: 1280, Height: 960},
			{FileID: "medium", Width: 320, Height: 240},
		},
	}
	msg, ok := toMessage(m)
	if !ok {
		t.Fatalf("toMessage() dropped a valid message")
	}
	if !msg.Private || msg.Text != "/ocr" || msg.User.Username != "asha" || msg.SentAt.Unix() != 1714564800 {
		t.Fatalf("msg = %+v", msg)
	}
	if msg.Media == nil || msg.Media.FileID != "large" || !msg.Media.IsImage() {
		t.Fatalf("media = %+v", msg.Media)
	}
}

func TestToMessageReadsReplyMedia(t *testing.T) {
	m := &tgbotapi.Message{
		MessageID: 13,
		From:      &tgbotapi.User{ID: 7},
		Chat:      &tgbotapi.Chat{ID: -100, Type: "supergroup"},
		Text:      "/ocr",
		ReplyToMessage: &tgbotapi.Message{
			Document: &tgbotapi.Document{FileID: "scan", MimeType: "IMAGE/JPEG"},
		},
	}
	msg, ok := toMessage(m)
	if !ok {
		t.Fatalf("toMessage() dropped a valid message")
	}
	if msg.Private || msg.Media != nil {
		t.Fatalf("msg = %+v", msg)
	}
	if msg.ReplyMedia == nil || msg.ReplyMedia.Kind != flow.MediaDocument || !msg.ReplyMedia.IsImage() {
		t.Fatalf("reply media = %+v", msg.ReplyMedia)
	}
}

func TestMediaOfRejectsNonImageDocuments(t *testing.T) {
	media := mediaOf(&tgbotapi.Message{Document: &tgbotapi.Document{FileID: "f", MimeType: "application/pdf"}})
	if media == nil || media.IsImage() {
		t.Fatalf("media = %+v, want non-image document", media)
	}
	sticker := mediaOf(&tgbotapi.Message{Sticker: &tgbotapi.Sticker{FileID: "s"}})
	if sticker == nil || !sticker.IsImage() {
		t.Fatalf("sticker = %+v", sticker)
	}
	if got := mediaOf(&tgbotapi.Message{Text: "hi"}); got != nil {
		t.Fatalf("text message media = %+v", got)
	}
}

func TestToChoice(t *testing.T) {
	q := &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{MessageID: 44, Chat: &tgbotapi.Chat{ID: 7}},
		Data:    "useai|7|12",
	}
	choice, ok := toChoice(q)
	if !ok {
		t.Fatalf("toChoice() dropped a valid query")
	}
	if choice.ID != "cb-1" || choice.ChatID != 7 || choice.MessageID != 44 || choice.Payload != "useai|7|12" {
		t.Fatalf("choice = %+v", choice)
	}
	if _, ok := toChoice(&tgbotapi.CallbackQuery{ID: "inline", From: &tgbotapi.User{ID: 7}}); ok {
		t.Fatalf("inline query without message should be dropped")
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("New() error = %v", err)
	}
}

