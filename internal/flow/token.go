package flow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ocrbot/internal/cache"
)

// Action is what a result button asks for.
type Action string

const (
	ActionAccept   Action = "satisfies"
	ActionEscalate Action = "useai"
)

// ErrMalformedToken is returned for payloads that do not decode to a Token.
var ErrMalformedToken = errors.New("malformed correlation token")

// Token is the correlation payload carried by a result button: the action and
// the key of the cached result it refers to.
type Token struct {
	Action Action
	Key    cache.Key
}

// Encode renders the token as "action|chat_id|message_id".
func (t Token) Encode() string {
	return fmt.Sprintf("%s|%d|%d", t.Action, t.Key.ChatID, t.Key.MessageID)
}

// ParseToken decodes and validates a button payload.
func ParseToken(payload string) (Token, error) {
	parts := strings.Split(payload, "|")
	if len(parts) != 3 {
		return Token{}, fmt.Errorf("%w: %q", ErrMalformedToken, payload)
	}
	action := Action(parts[0])
	if action != ActionAccept && action != ActionEscalate {
		return Token{}, fmt.Errorf("%w: unknown action %q", ErrMalformedToken, parts[0])
	}
	chatID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("%w: chat id: %v", ErrMalformedToken, err)
	}
	messageID, err := strconv.Atoi(parts[2])
	if err != nil || messageID <= 0 {
		return Token{}, fmt.Errorf("%w: message id %q", ErrMalformedToken, parts[2])
	}
	return Token{Action: action, Key: cache.Key{ChatID: chatID, MessageID: messageID}}, nil
}
