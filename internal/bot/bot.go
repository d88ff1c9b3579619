// Package bot is the chat command surface. It routes incoming messages to
// commands or to the interaction flow, and button presses to the flow.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ocrbot/internal/cache"
	"ocrbot/internal/flow"
	"ocrbot/internal/logger"
	"ocrbot/internal/ocr"
	"ocrbot/internal/quota"
	"ocrbot/internal/store"
	"ocrbot/pkg/models"
)

// MaxDiagnosticsLength caps /sysd output.
const MaxDiagnosticsLength = 4000

const (
	msgAdminOnly      = "⛔ This command is for admins only."
	msgBroadcastUsage = "Usage: /broadcast <message>"
	msgNoUsers        = "No users recorded yet."
)

// Message is an incoming chat message.
type Message struct {
	ChatID    int64
	MessageID int
	Private   bool
	User      models.User
	// Text is the message text, or the caption for media messages.
	Text       string
	Media      *flow.Media
	ReplyMedia *flow.Media
	SentAt     time.Time
}

func (m Message) request() flow.Request {
	return flow.Request{
		ChatID:     m.ChatID,
		MessageID:  m.MessageID,
		User:       m.User,
		Media:      m.Media,
		ReplyMedia: m.ReplyMedia,
	}
}

// UserExporter copies the user directory to an external sheet.
type UserExporter interface {
	ExportUsers(ctx context.Context, lines []string) (int, error)
}

// Options wires a Bot.
type Options struct {
	Flow       *flow.Controller
	Messenger  flow.Messenger
	Quota      *quota.Tracker
	Stats      *store.Stats
	Prefs      *store.Preferences
	Users      *store.Users
	// Exporter is optional; /db skips the sheet export without it.
	Exporter UserExporter
	// SystemInfo produces the /sysd dump. Defaults to neofetch.
	SystemInfo func(ctx context.Context) (string, error)
	// ResultTTL is quoted in /help.
	ResultTTL time.Duration
	Now       func() time.Time
}

// Bot handles commands and hands images to the flow controller.
type Bot struct {
	opts    Options
	started time.Time
	log     zerolog.Logger
}

// New creates a Bot. Uptime is measured from this call.
func New(opts Options) *Bot {
	if opts.SystemInfo == nil {
		opts.SystemInfo = neofetch
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = cache.DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bot{
		opts:    opts,
		started: opts.Now(),
		log:     logger.WithComponent("bot"),
	}
}

// HandleMessage dispatches one incoming message.
func (b *Bot) HandleMessage(ctx context.Context, msg Message) error {
	name, args, isCommand := ParseCommand(msg.Text)
	if !isCommand {
		// Bare media starts the flow in private chats only; groups must ask with /ocr.
		if msg.Private && msg.Media.IsImage() {
			return b.runFlow(ctx, msg)
		}
		return nil
	}

	b.log.Debug().
		Int64("chat_id", msg.ChatID).
		Int64("user_id", msg.User.ID).
		Str("command", name).
		Msg("Command received")

	switch name {
	case "start":
		return b.start(ctx, msg)
	case "help":
		return b.reply(ctx, msg, fmt.Sprintf(helpText, b.opts.ResultTTL), true)
	case "ocr":
		return b.runFlow(ctx, msg)
	case "lang":
		return b.lang(ctx, msg, args)
	case "langlist":
		return b.langList(ctx, msg)
	case "stats":
		return b.stats(ctx, msg)
	case "ping":
		return b.ping(ctx, msg)
	case "db":
		return b.adminOnly(ctx, msg, func() error { return b.db(ctx, msg) })
	case "broadcast":
		return b.adminOnly(ctx, msg, func() error { return b.broadcast(ctx, msg, args) })
	case "sysd":
		return b.adminOnly(ctx, msg, func() error { return b.sysd(ctx, msg) })
	}
	return nil
}

// HandleChoice forwards a button press to the flow.
func (b *Bot) HandleChoice(ctx context.Context, choice flow.Choice) error {
	return b.opts.Flow.HandleChoice(ctx, choice)
}

func (b *Bot) runFlow(ctx context.Context, msg Message) error {
	err := b.opts.Flow.HandleImage(ctx, msg.request())
	if errors.Is(err, flow.ErrNoImage) {
		// Already answered with a warning.
		return nil
	}
	return err
}

func (b *Bot) start(ctx context.Context, msg Message) error {
	if _, err := b.opts.Users.Record(msg.User); err != nil {
		b.log.Warn().Err(err).Int64("user_id", msg.User.ID).Msg("Failed to record user")
	}
	name := msg.User.FirstName
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi %s!\n\nSend me an image and I will extract its text. "+
		"If the result is not good enough, ask AI to refine it.\n\nSee /help for all commands.",
		html.EscapeString(name))
	return b.reply(ctx, msg, text, true)
}

func (b *Bot) lang(ctx context.Context, msg Message, args string) error {
	key := msg.User.Key()
	if args == "" {
		current := b.opts.Prefs.Language(key)
		if current == "" {
			current = "auto-detect"
		}
		return b.reply(ctx, msg, fmt.Sprintf(
			"🌐 Your OCR language: <code>%s</code>\n\nSet it with <code>/lang eng+hin</code>, or <code>/lang auto</code> to detect every supported language. See /langlist.",
			html.EscapeString(current)), true)
	}

	spec := ocr.AutoDetect()
	if !strings.EqualFold(args, "auto") {
		var err error
		if spec, err = ocr.NormalizeLanguageSpec(args); err != nil {
			return b.reply(ctx, msg, fmt.Sprintf("❌ %s\nSee /langlist for supported codes.", html.EscapeString(err.Error())), true)
		}
	}
	if err := b.opts.Prefs.Set(key, spec); err != nil {
		b.log.Warn().Err(err).Int64("user_id", msg.User.ID).Msg("Failed to persist language preference")
	}
	return b.reply(ctx, msg, fmt.Sprintf("✅ OCR language set to <code>%s</code>", html.EscapeString(spec)), true)
}

func (b *Bot) langList(ctx context.Context, msg Message) error {
	var sb strings.Builder
	sb.WriteString("🌐 <b>Supported OCR languages</b>\n\n")
	for _, code := range ocr.SupportedLanguages {
		sb.WriteString("<code>" + code + "</code>\n")
	}
	sb.WriteString("\nCombine codes with +, e.g. <code>/lang eng+hin</code>.")
	return b.reply(ctx, msg, sb.String(), true)
}

func (b *Bot) stats(ctx context.Context, msg Message) error {
	s := b.opts.Stats.Snapshot()
	text := fmt.Sprintf("📊 <b>Usage statistics</b>\n\n"+
		"Total requests: %d\n"+
		"Satisfied: %d (%.1f%%)\n"+
		"AI used: %d (%.1f%%)\n"+
		"Known users: %d\n\n"+
		"Your AI requests left: %s",
		s.Total,
		s.Satisfied, s.SatisfiedPercent(),
		s.AIUsed, s.AIUsedPercent(),
		len(b.opts.Users.IDs()),
		b.opts.Quota.Remaining(msg.User.ID))
	return b.reply(ctx, msg, text, true)
}

func (b *Bot) ping(ctx context.Context, msg Message) error {
	start := b.opts.Now()
	id, err := b.opts.Messenger.SendText(ctx, msg.ChatID, "🏓 Pong!", flow.SendOptions{ReplyTo: msg.MessageID})
	if err != nil {
		return err
	}
	now := b.opts.Now()
	latency := now.Sub(start)
	if !msg.SentAt.IsZero() {
		b.log.Debug().Dur("queued", start.Sub(msg.SentAt)).Dur("latency", latency).Msg("Ping")
	}
	text := fmt.Sprintf("🏓 Pong!\nLatency: %d ms\nUptime: %s",
		latency.Milliseconds(), now.Sub(b.started).Round(time.Second))
	return b.opts.Messenger.EditText(ctx, msg.ChatID, id, text, false)
}

func (b *Bot) db(ctx context.Context, msg Message) error {
	users := b.opts.Users
	if !users.Exists() {
		return b.reply(ctx, msg, msgNoUsers, false)
	}
	caption := fmt.Sprintf("👥 User directory (%d users)", len(users.IDs()))
	if err := b.opts.Messenger.SendDocument(ctx, msg.ChatID, users.Path(), caption); err != nil {
		b.log.Error().Err(err).Msg("Failed to send user directory")
		return b.reply(ctx, msg, "❌ Failed to send user directory: "+html.EscapeString(err.Error()), true)
	}

	if b.opts.Exporter == nil {
		return nil
	}
	lines, err := users.Lines()
	if err != nil {
		return b.reply(ctx, msg, "❌ Failed to read user directory: "+html.EscapeString(err.Error()), true)
	}
	rows, err := b.opts.Exporter.ExportUsers(ctx, lines)
	if err != nil {
		b.log.Error().Err(err).Msg("Sheets export failed")
		return b.reply(ctx, msg, "❌ Sheets export failed: "+html.EscapeString(err.Error()), true)
	}
	return b.reply(ctx, msg, fmt.Sprintf("📤 Exported %d users to Google Sheets.", rows), false)
}

func (b *Bot) broadcast(ctx context.Context, msg Message, text string) error {
	if text == "" {
		return b.reply(ctx, msg, msgBroadcastUsage, false)
	}
	var sent, failed int
	for _, id := range b.opts.Users.IDs() {
		if ctx.Err() != nil {
			break
		}
		if _, err := b.opts.Messenger.SendText(ctx, id, text, flow.SendOptions{}); err != nil {
			failed++
			b.log.Debug().Err(err).Int64("user_id", id).Msg("Broadcast delivery failed")
			continue
		}
		sent++
	}
	b.log.Info().Int("sent", sent).Int("failed", failed).Msg("Broadcast finished")
	return b.reply(ctx, msg, fmt.Sprintf("📣 Broadcast delivered to %d users, %d failed.", sent, failed), false)
}

func (b *Bot) sysd(ctx context.Context, msg Message) error {
	out, err := b.opts.SystemInfo(ctx)
	if err != nil {
		return b.reply(ctx, msg, "❌ Diagnostics failed: "+html.EscapeString(err.Error()), true)
	}
	out = flow.Truncate(strings.TrimSpace(out), MaxDiagnosticsLength)
	return b.reply(ctx, msg, "<pre>"+html.EscapeString(out)+"</pre>", true)
}

func (b *Bot) adminOnly(ctx context.Context, msg Message, run func() error) error {
	if !b.opts.Quota.IsAdmin(msg.User.ID) {
		return b.reply(ctx, msg, msgAdminOnly, false)
	}
	return run()
}

func (b *Bot) reply(ctx context.Context, msg Message, text string, isHTML bool) error {
	_, err := b.opts.Messenger.SendText(ctx, msg.ChatID, text, flow.SendOptions{ReplyTo: msg.MessageID, HTML: isHTML})
	return err
}

func neofetch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "neofetch", "--stdout").Output()
	if err != nil {
		return "", fmt.Errorf("neofetch: %w", err)
	}
	return string(out), nil
}

const helpText = `<b>📖 How to use</b>

Send an image (photo, image file or sticker) in a private chat, or reply to one with /ocr in a group.
The bot replies with the extracted text and two buttons:
• accept the result, or
• ask AI to refine it (limited AI requests per user).

<b>Commands</b>
/lang &lt;codes&gt; set your OCR languages, e.g. <code>/lang eng+hin</code>
/langlist list supported language codes
/stats usage statistics
/ping latency and uptime

Results expire after %s.`
