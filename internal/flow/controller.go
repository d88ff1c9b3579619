// Package flow drives a single image request from upload to result: download,
// local OCR, the accept/escalate choice and the optional AI escalation.
//
// Every step reports to the user; a failed step ends the flow with a message
// instead of silently. Results are keyed by (chat id, request message id) in
// the shared result cache until accepted or reclaimed by the sweeper.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"ocrbot/internal/cache"
	"ocrbot/internal/logger"
	"ocrbot/internal/quota"
	"ocrbot/internal/store"
	"ocrbot/pkg/models"
	"ocrbot/pkg/services"
)

// User-facing notices.
const (
	MsgNoImage          = "⚠️ Please send an image, or reply to one with /ocr."
	MsgDownloading      = "📥 Downloading image..."
	MsgSending          = "📤 Sending result..."
	MsgExpired          = "⌛ This result has expired. Please send the image again."
	MsgInvalidAction    = "This action is no longer valid."
	MsgThanks           = "✅ Thanks for your feedback!"
	MsgQuotaExceeded    = "🚫 AI quota exceeded. You have no AI requests left."
	MsgAIProcessing     = "🤖 Processing with AI..."
	MsgAlreadyRunning   = "⏳ AI is already processing this image."
	aiPlaceholder       = "<i>🤖 Processing with AI...</i>"
	autoDetectLangLabel = "auto-detect"
)

var (
	// ErrNoImage is returned when a request carries no usable image.
	ErrNoImage = errors.New("no image in request")

	// ErrDownloadFailed wraps download errors.
	ErrDownloadFailed = errors.New("download failed")
)

// Request is an incoming message that asked for OCR.
type Request struct {
	ChatID    int64
	MessageID int
	User      models.User
	// Media attached to the message itself.
	Media *Media
	// Media attached to the message it replies to.
	ReplyMedia *Media
}

// image picks the request's own image, then the replied-to one.
func (r Request) image() (Media, bool) {
	if r.Media.IsImage() {
		return *r.Media, true
	}
	if r.ReplyMedia.IsImage() {
		return *r.ReplyMedia, true
	}
	return Media{}, false
}

// Choice is a press on one of the result buttons.
type Choice struct {
	ID        string // acknowledgement handle
	ChatID    int64
	MessageID int // the message carrying the buttons
	User      models.User
	Payload   string
}

// Deps are the collaborators a Controller needs.
type Deps struct {
	Messenger  Messenger
	Downloader Downloader
	OCR        services.TextRecognizer
	AI         services.AIRecognizer
	Cache      *cache.Cache
	Quota      *quota.Tracker
	Stats      *store.Stats
	Prefs      *store.Preferences
	Users      *store.Users
}

// Controller runs the interaction flow. It is safe for concurrent use; each
// incoming event may be handled on its own goroutine.
type Controller struct {
	Deps

	labels func() (accept, escalate string)
	log    zerolog.Logger

	mu       sync.Mutex
	inFlight map[cache.Key]bool
}

// NewController wires the flow.
func NewController(deps Deps) *Controller {
	return &Controller{
		Deps:     deps,
		labels:   randomLabels,
		log:      logger.WithComponent("flow"),
		inFlight: make(map[cache.Key]bool),
	}
}

// HandleImage runs download and local OCR for req and presents the result
// with the accept and escalate buttons.
func (c *Controller) HandleImage(ctx context.Context, req Request) error {
	log := logger.WithConversation("flow", req.ChatID, req.MessageID)

	media, ok := req.image()
	if !ok {
		c.send(ctx, req.ChatID, MsgNoImage, SendOptions{ReplyTo: req.MessageID})
		return ErrNoImage
	}

	progress := c.send(ctx, req.ChatID, MsgDownloading, SendOptions{ReplyTo: req.MessageID})

	path, err := c.Downloader.Download(ctx, media)
	if err != nil {
		log.Error().Err(err).Str("file_id", media.FileID).Msg("Download failed")
		c.replace(ctx, req.ChatID, req.MessageID, progress, RenderError("❌ Failed to download image", err))
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if _, err := c.Users.Record(req.User); err != nil {
		log.Warn().Err(err).Int64("user_id", req.User.ID).Msg("Failed to record user")
	}

	lang := c.Prefs.Language(req.User.Key())
	langLabel := lang
	if langLabel == "" {
		langLabel = autoDetectLangLabel
	}
	c.edit(ctx, req.ChatID, progress, fmt.Sprintf("🔍 Running OCR (lang: %s)...", langLabel), false)

	text, err := c.OCR.RecognizeText(ctx, path, lang)
	if err != nil {
		log.Warn().Err(err).Str("lang", langLabel).Msg("Local OCR failed")
		text = "OCR error: " + err.Error()
	}
	text = displayText(text, MaxResultLength)

	c.edit(ctx, req.ChatID, progress, MsgSending, false)

	key := cache.Key{ChatID: req.ChatID, MessageID: req.MessageID}
	c.store(key, path, media.FileID, text)

	accept, escalate := c.labels()
	c.send(ctx, req.ChatID, RenderResult(text), SendOptions{
		ReplyTo: req.MessageID,
		HTML:    true,
		Buttons: []Button{
			{Label: accept, Payload: Token{Action: ActionAccept, Key: key}.Encode()},
			{Label: escalate, Payload: Token{Action: ActionEscalate, Key: key}.Encode()},
		},
	})

	if progress != 0 {
		if err := c.Messenger.DeleteMessage(ctx, req.ChatID, progress); err != nil {
			log.Debug().Err(err).Msg("Failed to delete progress message")
		}
	}

	if err := c.Stats.IncrementTotal(); err != nil {
		log.Warn().Err(err).Msg("Failed to persist statistics")
	}

	log.Info().
		Int64("user_id", req.User.ID).
		Str("lang", langLabel).
		Int("text_length", len([]rune(text))).
		Msg("OCR result delivered")
	return nil
}

// HandleChoice dispatches a result button press.
func (c *Controller) HandleChoice(ctx context.Context, choice Choice) error {
	token, err := ParseToken(choice.Payload)
	if err != nil {
		c.answer(ctx, choice.ID, MsgInvalidAction, false)
		return err
	}
	switch token.Action {
	case ActionAccept:
		c.accept(ctx, choice, token.Key)
	case ActionEscalate:
		c.escalate(ctx, choice, token.Key)
	}
	return nil
}

func (c *Controller) accept(ctx context.Context, choice Choice, key cache.Key) {
	log := logger.WithConversation("flow", key.ChatID, key.MessageID)

	c.clearButtons(ctx, choice)

	if _, ok := c.Cache.Remove(key); !ok {
		c.answer(ctx, choice.ID, MsgExpired, true)
		return
	}
	if err := c.Stats.IncrementSatisfied(); err != nil {
		log.Warn().Err(err).Msg("Failed to persist statistics")
	}
	c.answer(ctx, choice.ID, MsgThanks, true)
	log.Info().Int64("user_id", choice.User.ID).Msg("Result accepted")
}

func (c *Controller) escalate(ctx context.Context, choice Choice, key cache.Key) {
	log := logger.WithConversation("flow", key.ChatID, key.MessageID)
	userID := choice.User.ID

	reservation, ok := c.Quota.Reserve(userID)
	if !ok {
		c.answer(ctx, choice.ID, MsgQuotaExceeded, true)
		return
	}
	defer reservation.Release()

	if !c.claim(key) {
		c.answer(ctx, choice.ID, MsgAlreadyRunning, false)
		return
	}
	entry, ok := c.Cache.Get(key)
	if !ok {
		c.release(key, cache.Entry{})
		c.clearButtons(ctx, choice)
		c.answer(ctx, choice.ID, MsgExpired, true)
		return
	}
	defer c.release(key, entry)

	if err := c.Stats.IncrementAIUsed(); err != nil {
		log.Warn().Err(err).Msg("Failed to persist statistics")
	}
	c.answer(ctx, choice.ID, MsgAIProcessing, true)
	c.clearButtons(ctx, choice)
	if err := c.Messenger.DeleteMessage(ctx, choice.ChatID, choice.MessageID); err != nil {
		log.Debug().Err(err).Msg("Failed to delete result message")
	}

	placeholder := c.send(ctx, key.ChatID, aiPlaceholder, SendOptions{ReplyTo: key.MessageID, HTML: true})

	aiText, err := c.AI.RecognizeTextAI(ctx, entry.FilePath)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("AI escalation failed")
		c.replace(ctx, key.ChatID, key.MessageID, placeholder, RenderError("AI error", err))
		return
	}

	left, err := reservation.Commit()
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to persist quota")
	}

	c.replace(ctx, key.ChatID, key.MessageID, placeholder, RenderComparison(entry.Text, aiText, left))
	log.Info().
		Int64("user_id", userID).
		Str("remaining", left.String()).
		Msg("AI result delivered")
}

// store caches a result, replacing any earlier one for key. While key is being
// escalated the earlier file stays on disk until release.
func (c *Controller) store(key cache.Key, path, mediaID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inFlight[key] {
		c.Cache.Remove(key)
	}
	c.Cache.Put(key, path, mediaID, text)
}

// claim marks key as being escalated. It reports false when already marked.
func (c *Controller) claim(key cache.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[key] {
		return false
	}
	c.inFlight[key] = true
	return true
}

// release ends the escalation of key and drops entry's file if a newer result
// replaced it meanwhile.
func (c *Controller) release(key cache.Key, entry cache.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, key)
	if entry.FilePath != "" {
		c.Cache.Discard(entry)
	}
}

// send posts text and returns the new message id, or 0 when sending failed.
func (c *Controller) send(ctx context.Context, chatID int64, text string, opts SendOptions) int {
	id, err := c.Messenger.SendText(ctx, chatID, text, opts)
	if err != nil {
		c.log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
		return 0
	}
	return id
}

// edit updates a progress message. Missing messages are skipped.
func (c *Controller) edit(ctx context.Context, chatID int64, messageID int, text string, html bool) bool {
	if messageID == 0 {
		return false
	}
	if err := c.Messenger.EditText(ctx, chatID, messageID, text, html); err != nil {
		c.log.Debug().Err(err).Int64("chat_id", chatID).Int("message_id", messageID).Msg("Failed to edit message")
		return false
	}
	return true
}

// replace edits messageID, or sends a fresh message replying to replyTo when
// it cannot be edited.
func (c *Controller) replace(ctx context.Context, chatID int64, replyTo, messageID int, html string) {
	if !c.edit(ctx, chatID, messageID, html, true) {
		c.send(ctx, chatID, html, SendOptions{ReplyTo: replyTo, HTML: true})
	}
}

func (c *Controller) clearButtons(ctx context.Context, choice Choice) {
	if err := c.Messenger.ClearButtons(ctx, choice.ChatID, choice.MessageID); err != nil {
		c.log.Debug().Err(err).Int64("chat_id", choice.ChatID).Msg("Failed to clear buttons")
	}
}

func (c *Controller) answer(ctx context.Context, choiceID, text string, alert bool) {
	if err := c.Messenger.AnswerChoice(ctx, choiceID, text, alert); err != nil {
		c.log.Debug().Err(err).Msg("Failed to answer choice")
	}
}

