// Package cache holds OCR results that are waiting for the user to accept
// them or escalate them to the AI recognizer, together with the sweeper that
// reclaims results nobody answered.
//
// An Entry owns its downloaded image file: whoever removes the entry from the
// cache deletes the file.
package cache

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ocrbot/internal/logger"
)

// Key identifies one outstanding result: the chat and the request message id.
type Key struct {
	ChatID    int64
	MessageID int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.ChatID, k.MessageID)
}

// Entry is an immutable pending OCR result.
type Entry struct {
	Key       Key
	FilePath  string    // downloaded image, owned by the entry
	MediaID   string    // platform file id of the source media
	Text      string    // local OCR output as shown to the user
	CreatedAt time.Time // set by Put
}

// Age returns how long the entry has existed at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache maps keys to pending results. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]Entry
	now     func() time.Time
	log     zerolog.Logger
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[Key]Entry),
		now:     time.Now,
		log:     logger.WithComponent("result-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put inserts or replaces the entry for key, stamped with the current time.
// A replaced entry's file is left on disk; the caller owns that cleanup.
func (c *Cache) Put(key Key, filePath, mediaID, text string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := Entry{
		Key:       key,
		FilePath:  filePath,
		MediaID:   mediaID,
		Text:      text,
		CreatedAt: c.now(),
	}
	if prev, ok := c.entries[key]; ok && prev.FilePath != filePath {
		c.log.Debug().
			Str("key", key.String()).
			Str("previous_file", prev.FilePath).
			Msg("Replacing cached result")
	}
	c.entries[key] = entry
	return entry
}

// Get looks up key without modifying the cache.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Remove deletes the entry and its backing file. It returns the removed entry
// and false when key was already absent, which is not an error.
func (c *Cache) Remove(key Key) (Entry, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if ok {
		c.deleteFile(entry)
	}
	return entry, ok
}

// Discard deletes entry's file unless the cache still holds it under its key.
// It reports whether the file was deleted.
func (c *Cache) Discard(entry Entry) bool {
	c.mu.Lock()
	cur, ok := c.entries[entry.Key]
	c.mu.Unlock()
	if ok && cur.FilePath == entry.FilePath {
		return false
	}
	c.deleteFile(entry)
	return true
}

// EvictOlderThan removes every entry whose age exceeds ttl and deletes the
// backing files. It returns the evicted entries.
func (c *Cache) EvictOlderThan(ttl time.Duration) []Entry {
	c.mu.Lock()
	now := c.now()
	var evicted []Entry
	for key, entry := range c.entries {
		if entry.Age(now) > ttl {
			evicted = append(evicted, entry)
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	for _, entry := range evicted {
		c.deleteFile(entry)
	}
	return evicted
}

// Len returns the number of pending results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// deleteFile removes the entry's file. Failures are logged and otherwise ignored.
func (c *Cache) deleteFile(entry Entry) {
	if entry.FilePath == "" {
		return
	}
	if err := os.Remove(entry.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.log.Debug().
			Err(err).
			Str("key", entry.Key.String()).
			Str("file", entry.FilePath).
			Msg("Failed to delete cached file")
	}
}
