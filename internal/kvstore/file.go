// Package kvstore reads and writes the bot's line-oriented key:value files.
//
// Each record sits on its own line as "key:value", split on the first colon so
// values may themselves contain colons. Files are UTF-8. Saving rewrites the
// whole file through a temp file and a rename, so a reader never observes a
// partially written store.
package kvstore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ocrbot/internal/logger"
)

// Load reads every record from path. A missing file yields an empty map.
// Lines without a colon or with an empty key are skipped.
func Load(path string) (map[string]string, error) {
	const op = "kvstore.Load"

	out := map[string]string{}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	log := logger.WithComponent("kvstore")
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || key == "" {
			log.Warn().
				Str("file", path).
				Int("line", lineNum).
				Msg("Skipping malformed record")
			continue
		}
		out[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", op, path, err)
	}
	return out, nil
}

// Save writes records to path, one per line. Keys listed in order come first,
// in that order; the remaining keys follow sorted.
func Save(path string, records map[string]string, order ...string) error {
	const op = "kvstore.Save"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var b strings.Builder
	seen := make(map[string]bool, len(order))
	for _, key := range order {
		value, ok := records[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		writeRecord(&b, key, value)
	}
	rest := make([]string, 0, len(records))
	for key := range records {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		writeRecord(&b, key, records[key])
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s: write %s: %w", op, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func writeRecord(b *strings.Builder, key, value string) {
	// Newlines would split a record in two
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	b.WriteString(key)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('\n')
}
