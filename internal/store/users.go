package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"ocrbot/pkg/models"
)

// Users is the append-only user directory, one free-text line per distinct user id.
type Users struct {
	mu   sync.Mutex
	path string
	ids  []int64
	seen map[int64]bool
}

// OpenUsers loads the ids already present in the directory at path.
func OpenUsers(path string) (*Users, error) {
	const op = "OpenUsers"

	u := &Users{path: path, seen: map[int64]bool{}}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return u, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id, ok := parseDirectoryID(scanner.Text())
		if !ok || u.seen[id] {
			continue
		}
		u.seen[id] = true
		u.ids = append(u.ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// parseDirectoryID extracts the id from "UserID: <id> | ...".
func parseDirectoryID(line string) (int64, bool) {
	head, _, _ := strings.Cut(line, "|")
	head = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(head), "UserID:"))
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Record appends the user unless the id is already present. It reports whether a line was added.
func (u *Users) Record(user models.User) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.seen[user.ID] {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(u.path), 0o755); err != nil {
		return false, fmt.Errorf("record user: %w", err)
	}
	f, err := os.OpenFile(u.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false, fmt.Errorf("record user: %w", err)
	}
	line := strings.NewReplacer("\r", " ", "\n", " ").Replace(user.DirectoryLine())
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return false, fmt.Errorf("record user: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("record user: %w", err)
	}
	u.seen[user.ID] = true
	u.ids = append(u.ids, user.ID)
	return true, nil
}

// IDs returns every known user id in directory order.
func (u *Users) IDs() []int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]int64(nil), u.ids...)
}

// Lines returns the raw directory lines.
func (u *Users) Lines() ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, err := os.ReadFile(u.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Path returns the directory file location.
func (u *Users) Path() string {
	return u.path
}

// Exists reports whether the directory file has been created.
func (u *Users) Exists() bool {
	_, err := os.Stat(u.path)
	return err == nil
}
