package flow

import (
	"context"
	"strings"
)

// MediaKind is the kind of attachment a message carries.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
	MediaSticker  MediaKind = "sticker"
)

// Media describes an attachment that can be downloaded.
type Media struct {
	FileID   string
	Kind     MediaKind
	MimeType string // documents only
}

// IsImage reports whether the media can be OCRed: photos, stickers and image documents.
func (m *Media) IsImage() bool {
	if m == nil || m.FileID == "" {
		return false
	}
	switch m.Kind {
	case MediaPhoto, MediaSticker:
		return true
	case MediaDocument:
		return strings.HasPrefix(m.MimeType, "image/")
	}
	return false
}

// Button is an interactive action attached to a message.
type Button struct {
	Label   string
	Payload string
}

// SendOptions tunes SendText.
type SendOptions struct {
	ReplyTo int      // message to reply to, 0 for none
	HTML    bool     // parse text as HTML
	Buttons []Button // rendered as one row
}

// Messenger is the chat endpoint the flow talks to.
type Messenger interface {
	// SendText posts a message and returns its id.
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, html bool) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	// ClearButtons removes every interactive action from a message.
	ClearButtons(ctx context.Context, chatID int64, messageID int) error
	// AnswerChoice acknowledges a button press, as a prominent alert when alert is set.
	AnswerChoice(ctx context.Context, choiceID, text string, alert bool) error
	SendDocument(ctx context.Context, chatID int64, path, caption string) error
}

// Downloader fetches media to local storage and returns the file path.
type Downloader interface {
	Download(ctx context.Context, media Media) (string, error)
}
