// Package store holds the bot's persisted key-value state: usage counters,
// AI quota counts, language preferences and the user directory.
//
// Each store loads its file once, serves reads from an in-memory mirror and
// persists the whole file after every mutation while holding its own lock.
// When persisting fails the mirror keeps the new value and the error is
// returned so callers can log it and carry on.
package store

import (
	"fmt"
	"strconv"
	"sync"

	"ocrbot/internal/kvstore"
	"ocrbot/internal/logger"
)

// Counters is a file-backed map of named non-negative integers.
type Counters struct {
	mu     sync.Mutex
	path   string
	order  []string
	counts map[string]int
}

// OpenCounters loads the counters stored at path. Keys in order are always
// written first and in that order.
func OpenCounters(path string, order ...string) (*Counters, error) {
	const op = "OpenCounters"

	records, err := kvstore.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log := logger.WithComponent("store")
	counts := make(map[string]int, len(records))
	for key, raw := range records {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			log.Warn().Str("file", path).Str("key", key).Str("value", raw).Msg("Ignoring invalid counter")
			continue
		}
		counts[key] = n
	}
	return &Counters{path: path, order: order, counts: counts}, nil
}

// Get returns the current value of key, zero when absent.
func (c *Counters) Get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// Increment adds one to key and persists the file. It returns the new value.
func (c *Counters) Increment(key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], c.persistLocked()
}

// Reset removes key. Resetting an absent key is a no-op.
func (c *Counters) Reset(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.counts[key]; !ok {
		return nil
	}
	delete(c.counts, key)
	return c.persistLocked()
}

// ResetAll clears every counter.
func (c *Counters) ResetAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = map[string]int{}
	return c.persistLocked()
}

// Snapshot returns a copy of all counters.
func (c *Counters) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

func (c *Counters) persistLocked() error {
	records := make(map[string]string, len(c.counts))
	for k, v := range c.counts {
		records[k] = strconv.Itoa(v)
	}
	if err := kvstore.Save(c.path, records, c.order...); err != nil {
		return fmt.Errorf("persist counters: %w", err)
	}
	return nil
}
