package bot

import (
	"strings"
	"unicode"
)

// CommandInfo is one entry of the bot's command menu.
type CommandInfo struct {
	Name        string
	Description string
}

// Menus holds the command menu per language code; "" is the default menu.
var Menus = map[string][]CommandInfo{
	"": {
		{Name: "start", Description: "Start the bot"},
		{Name: "ocr", Description: "Extract text from an image (reply to it)"},
		{Name: "lang", Description: "Set your OCR language, e.g. /lang eng+hin"},
		{Name: "langlist", Description: "List supported OCR languages"},
		{Name: "stats", Description: "Show usage statistics"},
		{Name: "ping", Description: "Check latency and uptime"},
		{Name: "help", Description: "How to use the bot"},
	},
	"hi": {
		{Name: "start", Description: "बॉट शुरू करें"},
		{Name: "ocr", Description: "इमेज से टेक्स्ट निकालें (इमेज का जवाब दें)"},
		{Name: "lang", Description: "OCR भाषा सेट करें, जैसे /lang eng+hin"},
		{Name: "langlist", Description: "समर्थित OCR भाषाओं की सूची"},
		{Name: "stats", Description: "उपयोग के आंकड़े देखें"},
		{Name: "ping", Description: "लेटेंसी और अपटाइम जांचें"},
		{Name: "help", Description: "बॉट का उपयोग कैसे करें"},
	},
}

// ParseCommand splits "/name@bot args" into its lower-cased name and the
// trimmed arguments. ok is false when text is not a command.
func ParseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}
