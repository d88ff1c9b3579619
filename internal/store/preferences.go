package store

import (
	"fmt"
	"sync"

	"ocrbot/internal/kvstore"
)

// Preferences maps user ids to OCR language specs such as "eng" or "eng+hin".
type Preferences struct {
	mu       sync.Mutex
	path     string
	fallback string
	langs    map[string]string
}

// OpenPreferences loads the preference file at path. fallback is returned by
// Language for users without a stored preference.
func OpenPreferences(path, fallback string) (*Preferences, error) {
	const op = "OpenPreferences"

	records, err := kvstore.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Preferences{path: path, fallback: fallback, langs: records}, nil
}

// Language returns the user's language spec, or the fallback when none is stored.
func (p *Preferences) Language(userID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if lang, ok := p.langs[userID]; ok {
		return lang
	}
	return p.fallback
}

// Lookup returns the stored spec and whether one exists.
func (p *Preferences) Lookup(userID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lang, ok := p.langs[userID]
	return lang, ok
}

// Set stores lang for the user and persists the file.
func (p *Preferences) Set(userID, lang string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.langs[userID] = lang
	if err := kvstore.Save(p.path, p.langs); err != nil {
		return fmt.Errorf("persist preferences: %w", err)
	}
	return nil
}

// Snapshot returns a copy of every stored preference.
func (p *Preferences) Snapshot() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.langs))
	for k, v := range p.langs {
		out[k] = v
	}
	return out
}
