// Package flowtest provides an in-memory flow.Messenger for tests.
package flowtest

import (
	"context"
	"errors"
	"sync"

	"ocrbot/internal/flow"
)

// Message is a chat message as last seen by the Messenger.
type Message struct {
	ID      int
	ChatID  int64
	Text    string
	HTML    bool
	ReplyTo int
	Buttons []flow.Button
	Deleted bool
	// History lists every text the message has shown, oldest first.
	History []string
}

// Answer is an acknowledged button press.
type Answer struct {
	ChoiceID string
	Text     string
	Alert    bool
}

// Document is a file sent to a chat.
type Document struct {
	ChatID  int64
	Path    string
	Caption string
}

// Messenger records everything sent through it. Message ids start at 1000.
type Messenger struct {
	mu        sync.Mutex
	nextID    int
	messages  []*Message
	answers   []Answer
	documents []Document
	edits     int

	// SendErr, when set, fails every SendText for the given chat.
	SendErr map[int64]error
}

// NewMessenger returns an empty recorder.
func NewMessenger() *Messenger {
	return &Messenger{nextID: 1000}
}

func (m *Messenger) SendText(_ context.Context, chatID int64, text string, opts flow.SendOptions) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.SendErr[chatID]; err != nil {
		return 0, err
	}
	m.nextID++
	m.messages = append(m.messages, &Message{
		ID:      m.nextID,
		ChatID:  chatID,
		Text:    text,
		HTML:    opts.HTML,
		ReplyTo: opts.ReplyTo,
		Buttons: append([]flow.Button(nil), opts.Buttons...),
		History: []string{text},
	})
	return m.nextID, nil
}

func (m *Messenger) EditText(_ context.Context, chatID int64, messageID int, text string, html bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.find(chatID, messageID)
	if msg == nil || msg.Deleted {
		return errNotFound
	}
	msg.Text = text
	msg.HTML = html
	msg.History = append(msg.History, text)
	m.edits++
	return nil
}

func (m *Messenger) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.find(chatID, messageID)
	if msg == nil {
		return errNotFound
	}
	msg.Deleted = true
	return nil
}

func (m *Messenger) ClearButtons(_ context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg := m.find(chatID, messageID); msg != nil {
		msg.Buttons = nil
	}
	return nil
}

func (m *Messenger) AnswerChoice(_ context.Context, choiceID, text string, alert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, Answer{ChoiceID: choiceID, Text: text, Alert: alert})
	return nil
}

func (m *Messenger) SendDocument(_ context.Context, chatID int64, path, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, Document{ChatID: chatID, Path: path, Caption: caption})
	return nil
}

// Live returns copies of the messages that were not deleted, in send order.
func (m *Messenger) Live(chatID int64) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.messages {
		if msg.ChatID == chatID && !msg.Deleted {
			out = append(out, msg.clone())
		}
	}
	return out
}

// Message returns a copy of the message with id.
func (m *Messenger) Message(chatID int64, id int) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg := m.find(chatID, id); msg != nil {
		return msg.clone(), true
	}
	return Message{}, false
}

// Answers returns every acknowledgement in order.
func (m *Messenger) Answers() []Answer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Answer(nil), m.answers...)
}

// Documents returns every sent document in order.
func (m *Messenger) Documents() []Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Document(nil), m.documents...)
}

// Sent returns the number of messages sent to chatID, deleted ones included.
func (m *Messenger) Sent(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			n++
		}
	}
	return n
}

func (m *Messenger) find(chatID int64, id int) *Message {
	for _, msg := range m.messages {
		if msg.ChatID == chatID && msg.ID == id {
			return msg
		}
	}
	return nil
}

var errNotFound = errors.New("message not found")

var _ flow.Messenger = (*Messenger)(nil)

func (m *Message) clone() Message {
	cp := *m
	cp.Buttons = append([]flow.Button(nil), m.Buttons...)
	cp.History = append([]string(nil), m.History...)
	return cp
}
