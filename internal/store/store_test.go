package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"ocrbot/pkg/models"
)

func TestCountersPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai_quota.txt")
	c, err := OpenCounters(path)
	if err != nil {
		t.Fatalf("OpenCounters() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.Increment("42"); err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
	}
	if _, err := c.Increment("7"); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	reloaded, err := OpenCounters(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reloaded.Get("42"); got != 3 {
		t.Fatalf("Get(42) = %d, want 3", got)
	}
	if got := reloaded.Get("7"); got != 1 {
		t.Fatalf("Get(7) = %d, want 1", got)
	}
	if got := reloaded.Get("absent"); got != 0 {
		t.Fatalf("Get(absent) = %d, want 0", got)
	}
}

func TestCountersConcurrentIncrements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.txt")
	c, err := OpenCounters(path)
	if err != nil {
		t.Fatalf("OpenCounters() error = %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Increment("total"); err != nil {
				t.Errorf("Increment() error = %v", err)
			}
		}()
	}
	wg.Wait()

	reloaded, err := OpenCounters(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reloaded.Get("total"); got != 20 {
		t.Fatalf("total = %d, want 20", got)
	}
}

func TestCountersReset(t *testing.T) {
	c, err := OpenCounters(filepath.Join(t.TempDir(), "q.txt"))
	if err != nil {
		t.Fatalf("OpenCounters() error = %v", err)
	}
	if err := c.Reset("missing"); err != nil {
		t.Fatalf("Reset(missing) error = %v", err)
	}
	c.Increment("1")
	c.Increment("2")
	if err := c.Reset("1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if c.Get("1") != 0 || c.Get("2") != 1 {
		t.Fatalf("snapshot after reset = %v", c.Snapshot())
	}
	if err := c.ResetAll(); err != nil {
		t.Fatalf("ResetAll() error = %v", err)
	}
	if len(c.Snapshot()) != 0 {
		t.Fatalf("snapshot after ResetAll = %v", c.Snapshot())
	}
}

func TestStatsFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.txt")
	s, err := OpenStats(path)
	if err != nil {
		t.Fatalf("OpenStats() error = %v", err)
	}
	s.IncrementTotal()
	s.IncrementTotal()
	s.IncrementSatisfied()
	s.IncrementAIUsed()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "total:2\nsatisfied:1\nai_used:1\n" {
		t.Fatalf("stats file = %q", data)
	}
	snap := s.Snapshot()
	if snap.SatisfiedPercent() != 50 || snap.AIUsedPercent() != 50 {
		t.Fatalf("percentages = %v/%v", snap.SatisfiedPercent(), snap.AIUsedPercent())
	}
	if (UsageStats{}).SatisfiedPercent() != 0 {
		t.Fatalf("empty stats should report 0%%")
	}
}

func TestPreferencesDefaultAndRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lang_prefs.txt")
	p, err := OpenPreferences(path, "eng+hin")
	if err != nil {
		t.Fatalf("OpenPreferences() error = %v", err)
	}
	if got := p.Language("1"); got != "eng+hin" {
		t.Fatalf("Language(unset) = %q, want eng+hin", got)
	}
	if _, ok := p.Lookup("1"); ok {
		t.Fatalf("Lookup(unset) reported a stored value")
	}
	want := map[string]string{"1": "deu", "2": "eng+jpn", "3": "hin"}
	for id, lang := range want {
		if err := p.Set(id, lang); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	reloaded, err := OpenPreferences(path, "eng+hin")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := reloaded.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
	for id, lang := range want {
		if got[id] != lang {
			t.Fatalf("reloaded[%s] = %q, want %q", id, got[id], lang)
		}
	}
}

func TestUsersDeduplicatesByID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")
	u, err := OpenUsers(path)
	if err != nil {
		t.Fatalf("OpenUsers() error = %v", err)
	}
	if u.Exists() {
		t.Fatalf("directory should not exist before first record")
	}
	added, err := u.Record(models.User{ID: 12, FirstName: "Ana", Username: "ana"})
	if err != nil || !added {
		t.Fatalf("Record() = %v, %v", added, err)
	}
	// 1 is a substring of 12 but a different user
	added, err = u.Record(models.User{ID: 1, FirstName: "Bo"})
	if err != nil || !added {
		t.Fatalf("Record(1) = %v, %v", added, err)
	}
	added, err = u.Record(models.User{ID: 12, FirstName: "Ana again"})
	if err != nil || added {
		t.Fatalf("duplicate Record() = %v, %v", added, err)
	}

	reloaded, err := OpenUsers(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	ids := reloaded.IDs()
	if len(ids) != 2 || ids[0] != 12 || ids[1] != 1 {
		t.Fatalf("IDs() = %v, want [12 1]", ids)
	}
	lines, err := reloaded.Lines()
	if err != nil {
		t.Fatalf("Lines() error = %v", err)
	}
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "UserID: 12 | First: Ana") {
		t.Fatalf("lines = %q", lines)
	}
}
