package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("img"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestPutThenGetReturnsFields(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	key := Key{ChatID: -100, MessageID: 7}

	c.Put(key, "/tmp/a.jpg", "media-1", "Hello World")
	got, ok := c.Get(key)
	if !ok {
		t.Fatalf("Get() missing entry")
	}
	if got.Key != key || got.FilePath != "/tmp/a.jpg" || got.MediaID != "media-1" || got.Text != "Hello World" {
		t.Fatalf("Get() = %+v", got)
	}
	if !got.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, clock.Now())
	}
}

func TestPutReplacesExistingKey(t *testing.T) {
	c := New()
	key := Key{ChatID: 1, MessageID: 1}
	c.Put(key, "a", "m1", "first")
	c.Put(key, "b", "m2", "second")
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	got, _ := c.Get(key)
	if got.Text != "second" || got.FilePath != "b" {
		t.Fatalf("Get() = %+v, want replacement", got)
	}
}

func TestRemoveDeletesFileAndIsIdempotent(t *testing.T) {
	c := New()
	key := Key{ChatID: 5, MessageID: 9}
	path := writeImage(t, "ocr.jpg")
	c.Put(key, path, "m", "text")

	if _, ok := c.Remove(key); !ok {
		t.Fatalf("first Remove() reported absent")
	}
	if fileExists(path) {
		t.Fatalf("backing file still exists")
	}
	if _, ok := c.Get(key); ok {
		t.Fatalf("entry still cached")
	}
	if _, ok := c.Remove(key); ok {
		t.Fatalf("second Remove() reported a removal")
	}
	if _, ok := c.Remove(Key{ChatID: 404}); ok {
		t.Fatalf("Remove() of a never-seen key reported a removal")
	}
}

func TestRemoveToleratesMissingFile(t *testing.T) {
	c := New()
	key := Key{ChatID: 5, MessageID: 10}
	c.Put(key, filepath.Join(t.TempDir(), "gone.jpg"), "m", "text")
	if _, ok := c.Remove(key); !ok {
		t.Fatalf("Remove() should still drop the entry")
	}
}

func TestDiscardKeepsCurrentEntryFile(t *testing.T) {
	c := New()
	key := Key{ChatID: 5, MessageID: 11}
	oldPath := writeImage(t, "old.jpg")
	old := c.Put(key, oldPath, "m1", "old")

	if c.Discard(old) {
		t.Fatalf("Discard() deleted the file of the current entry")
	}
	if !fileExists(oldPath) {
		t.Fatalf("current file was removed")
	}

	newPath := writeImage(t, "new.jpg")
	c.Put(key, newPath, "m2", "new")
	if !c.Discard(old) {
		t.Fatalf("Discard() kept the file of a replaced entry")
	}
	if fileExists(oldPath) {
		t.Fatalf("replaced file still exists")
	}
	if !fileExists(newPath) || c.Len() != 1 {
		t.Fatalf("Discard() touched the current entry")
	}
}

func TestSweepBoundary(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	s := NewSweeper(c, DefaultTTL, DefaultSweepInterval)
	key := Key{ChatID: 1, MessageID: 2}
	path := writeImage(t, "a.png")
	c.Put(key, path, "m", "t")

	clock.Advance(DefaultTTL - time.Second)
	if n, err := s.Sweep(); err != nil || n != 0 {
		t.Fatalf("Sweep() before ttl = %d, %v", n, err)
	}
	if _, ok := c.Get(key); !ok {
		t.Fatalf("entry evicted before ttl elapsed")
	}

	clock.Advance(time.Second)
	if n, _ := s.Sweep(); n != 0 {
		t.Fatalf("entry evicted at exactly ttl")
	}

	clock.Advance(time.Second)
	if n, err := s.Sweep(); err != nil || n != 1 {
		t.Fatalf("Sweep() after ttl = %d, %v", n, err)
	}
	if _, ok := c.Get(key); ok {
		t.Fatalf("entry survived past ttl")
	}
	if fileExists(path) {
		t.Fatalf("backing file survived past ttl")
	}
}

func TestSweepKeepsYoungEntries(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	s := NewSweeper(c, DefaultTTL, DefaultSweepInterval)

	old := Key{ChatID: 1, MessageID: 1}
	c.Put(old, writeImage(t, "old.png"), "m", "old")
	clock.Advance(20 * time.Minute)
	young := Key{ChatID: 1, MessageID: 2}
	c.Put(young, writeImage(t, "young.png"), "m", "young")
	clock.Advance(11 * time.Minute)

	if n, _ := s.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if _, ok := c.Get(young); !ok {
		t.Fatalf("young entry evicted")
	}
}

func TestSweepRacesWithRemove(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	s := NewSweeper(c, time.Minute, time.Minute)
	for i := 0; i < 50; i++ {
		c.Put(Key{ChatID: 1, MessageID: i}, writeImage(t, "f.png"), "m", "t")
	}
	clock.Advance(2 * time.Minute)

	var wg sync.WaitGroup
	removed := make(chan int, 50)
	wg.Add(2)
	go func() {
		defer wg.Done()
		n, _ := s.Sweep()
		removed <- n
	}()
	go func() {
		defer wg.Done()
		n := 0
		for i := 0; i < 50; i++ {
			if _, ok := c.Remove(Key{ChatID: 1, MessageID: i}); ok {
				n++
			}
		}
		removed <- n
	}()
	wg.Wait()
	close(removed)

	total := 0
	for n := range removed {
		total += n
	}
	if total != 50 {
		t.Fatalf("removals = %d, want each entry removed exactly once", total)
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}

func TestSweeperStartIsIdempotent(t *testing.T) {
	c := New()
	s := NewSweeper(c, time.Minute, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !s.Start(ctx) {
		t.Fatalf("first Start() returned false")
	}
	if s.Start(ctx) {
		t.Fatalf("second Start() spawned another loop")
	}
	if err := s.Run(ctx); err != ErrSweeperRunning {
		t.Fatalf("Run() while started = %v, want ErrSweeperRunning", err)
	}
	s.Stop()

	if !s.Start(ctx) {
		t.Fatalf("Start() after Stop() returned false")
	}
	s.Stop()
}

func TestSweeperLoopEvictsOnStart(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	c.Put(Key{ChatID: 1, MessageID: 1}, writeImage(t, "x.png"), "m", "t")
	clock.Advance(time.Hour)

	s := NewSweeper(c, time.Minute, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("initial sweep did not evict the expired entry")
	}
}
