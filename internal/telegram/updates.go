package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ocrbot/internal/bot"
	"ocrbot/internal/flow"
	"ocrbot/pkg/models"
)

// ErrUpdatesClosed is returned by Run when the update stream ends on its own.
var ErrUpdatesClosed = errors.New("telegram update channel closed")

// Handler consumes decoded updates.
type Handler interface {
	HandleMessage(ctx context.Context, msg bot.Message) error
	HandleChoice(ctx context.Context, choice flow.Choice) error
}

// pollTimeout is the long-poll timeout in seconds.
const pollTimeout = 60

// Run long-polls for updates and hands each one to h on its own goroutine.
// It returns when ctx is cancelled, after in-flight handlers finish.
func (c *Client) Run(ctx context.Context, h Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := c.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	c.log.Info().Msg("Listening for updates")
	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			c.log.Info().Msg("Stopped receiving updates")
			return nil
		case update, ok := <-updates:
			if !ok {
				return ErrUpdatesClosed
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.dispatch(ctx, h, update)
			}()
		}
	}
}

func (c *Client) dispatch(ctx context.Context, h Handler, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Int("update_id", update.UpdateID).Msg("Update handler panicked")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		choice, ok := toChoice(update.CallbackQuery)
		if !ok {
			return
		}
		if err := h.HandleChoice(ctx, choice); err != nil {
			c.log.Warn().Err(err).Int64("chat_id", choice.ChatID).Msg("Choice handling failed")
		}
	case update.Message != nil:
		msg, ok := toMessage(update.Message)
		if !ok {
			return
		}
		if err := h.HandleMessage(ctx, msg); err != nil {
			c.log.Warn().Err(err).Int64("chat_id", msg.ChatID).Int("message_id", msg.MessageID).Msg("Message handling failed")
		}
	}
}

// toMessage converts an API message. Messages without a sender or chat are dropped.
func toMessage(m *tgbotapi.Message) (bot.Message, bool) {
	if m == nil || m.Chat == nil || m.From == nil {
		return bot.Message{}, false
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	msg := bot.Message{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Private:   m.Chat.IsPrivate(),
		User:      toUser(m.From),
		Text:      text,
		Media:     mediaOf(m),
		SentAt:    time.Unix(int64(m.Date), 0),
	}
	if m.ReplyToMessage != nil {
		msg.ReplyMedia = mediaOf(m.ReplyToMessage)
	}
	return msg, true
}

// toChoice converts a callback query. Queries on inline messages carry no
// chat and are dropped.
func toChoice(q *tgbotapi.CallbackQuery) (flow.Choice, bool) {
	if q == nil || q.Message == nil || q.Message.Chat == nil || q.From == nil {
		return flow.Choice{}, false
	}
	return flow.Choice{
		ID:        q.ID,
		ChatID:    q.Message.Chat.ID,
		MessageID: q.Message.MessageID,
		User:      toUser(q.From),
		Payload:   q.Data,
	}, true
}

func toUser(u *tgbotapi.User) models.User {
	return models.User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
	}
}

// mediaOf returns the message's attachment: the largest photo size, a
// document or a sticker.
func mediaOf(m *tgbotapi.Message) *flow.Media {
	switch {
	case len(m.Photo) > 0:
		best := m.Photo[0]
		for _, p := range m.Photo[1:] {
			if p.Width*p.Height > best.Width*best.Height {
				best = p
			}
		}
		return &flow.Media{FileID: best.FileID, Kind: flow.MediaPhoto}
	case m.Document != nil:
		return &flow.Media{
			FileID:   m.Document.FileID,
			Kind:     flow.MediaDocument,
			MimeType: strings.ToLower(m.Document.MimeType),
		}
	case m.Sticker != nil:
		return &flow.Media{FileID: m.Sticker.FileID, Kind: flow.MediaSticker}
	}
	return nil
}
