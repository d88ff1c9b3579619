package flow

import (
	"fmt"
	"html"
	"math/rand/v2"
	"strings"

	"ocrbot/internal/quota"
)

const (
	// MaxResultLength caps the local OCR text in the result message.
	MaxResultLength = 3800

	// MaxBoxLength caps each text box in the AI comparison view.
	MaxBoxLength = 1800

	// TruncationMarker follows truncated text.
	TruncationMarker = "\n...truncated"

	// NoTextFound replaces empty recognizer output.
	NoTextFound = "No text found."

	disclaimer = "<i>⚠️ This is auto-detected text. OCR may make mistakes.</i>"
)

var (
	acceptLabels = []string{
		"✅ Done", "🙌 All Good", "👍 Looks Good", "🎯 Accurate", "✅ Text is Correct", "💯 Perfect!", "✅ Satisfied",
	}
	escalateLabels = []string{
		"🤖 Ask AI", "🧠 Refine with AI", "✍️ Improve with AI", "🔍 Clarify with AI", "💬 AI Help", "🤔 Not Clear? Use AI", "🚀 Boost with AI",
	}
)

// Truncate cuts text to limit characters and appends TruncationMarker when it was longer.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + TruncationMarker
}

// displayText replaces empty output and applies limit.
func displayText(text string, limit int) string {
	if strings.TrimSpace(text) == "" {
		text = NoTextFound
	}
	return Truncate(text, limit)
}

// RenderResult formats the local OCR result message.
func RenderResult(text string) string {
	return "<b>📝 Extracted Text:</b>\n\n" +
		"<pre>" + html.EscapeString(text) + "</pre>\n" +
		disclaimer
}

// RenderComparison formats the local and AI texts side by side with the remaining quota.
func RenderComparison(localText, aiText string, left quota.Remaining) string {
	localBox := "<b>📝 Extracted Text:</b>\n<pre>" + html.EscapeString(displayText(localText, MaxBoxLength)) + "</pre>"
	aiBox := "<b>🤖 AI Processed Text:</b>\n<pre>" + html.EscapeString(displayText(aiText, MaxBoxLength)) + "</pre>"
	return fmt.Sprintf("%s\n\n%s\n\n%s\n<b>AI requests left:</b> %s", localBox, aiBox, disclaimer, left)
}

// RenderError formats a failure as literal text.
func RenderError(prefix string, err error) string {
	return "<b>" + html.EscapeString(prefix) + ":</b> " + html.EscapeString(err.Error())
}

// randomLabels picks one accept and one escalate label.
func randomLabels() (accept, escalate string) {
	return acceptLabels[rand.IntN(len(acceptLabels))], escalateLabels[rand.IntN(len(escalateLabels))]
}
