// Package telegram connects the bot to the Telegram Bot API: it implements the
// flow's Messenger and Downloader and runs the update loop.
package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"ocrbot/internal/bot"
	"ocrbot/internal/flow"
	"ocrbot/internal/logger"
)

// ErrEmptyToken is returned by New without a bot token.
var ErrEmptyToken = errors.New("telegram bot token is empty")

// Client sends messages through the Bot API.
type Client struct {
	api *tgbotapi.BotAPI
	log zerolog.Logger
}

// New authenticates with token and returns a Client.
func New(token string) (*Client, error) {
	const op = "telegram.New"

	if token == "" {
		return nil, ErrEmptyToken
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c := &Client{api: api, log: logger.WithComponent("telegram")}
	c.log.Info().Str("bot", api.Self.UserName).Msg("Authorized on Telegram")
	return c, nil
}

// API exposes the underlying Bot API handle.
func (c *Client) API() *tgbotapi.BotAPI {
	return c.api
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, opts flow.SendOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = opts.ReplyTo
	// Deleted reply targets must not drop the message.
	msg.AllowSendingWithoutReply = true
	if opts.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if len(opts.Buttons) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(opts.Buttons))
		for _, b := range opts.Buttons {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Payload))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, html bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if html {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := c.api.Send(edit); err != nil {
		return fmt.Errorf("edit message %d: %w", messageID, err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	return nil
}

func (c *Client) ClearButtons(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	if _, err := c.api.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, empty)); err != nil {
		return fmt.Errorf("clear buttons on %d: %w", messageID, err)
	}
	return nil
}

func (c *Client) AnswerChoice(ctx context.Context, choiceID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cb := tgbotapi.NewCallback(choiceID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(choiceID, text)
	}
	if _, err := c.api.Request(cb); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := c.api.Send(doc); err != nil {
		return fmt.Errorf("send document %s: %w", path, err)
	}
	return nil
}

// RegisterCommands publishes the command menus. The "" entry becomes the
// default menu, every other key the menu for that language code.
func (c *Client) RegisterCommands(menus map[string][]bot.CommandInfo) error {
	for lang, infos := range menus {
		commands := make([]tgbotapi.BotCommand, 0, len(infos))
		for _, info := range infos {
			commands = append(commands, tgbotapi.BotCommand{Command: info.Name, Description: info.Description})
		}
		var req tgbotapi.Chattable
		if lang == "" {
			req = tgbotapi.NewSetMyCommands(commands...)
		} else {
			req = tgbotapi.NewSetMyCommandsWithScopeAndLanguage(tgbotapi.NewBotCommandScopeDefault(), lang, commands...)
		}
		if _, err := c.api.Request(req); err != nil {
			return fmt.Errorf("register %q commands: %w", lang, err)
		}
	}
	return nil
}

var _ flow.Messenger = (*Client)(nil)
