package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"ocrbot/internal/flow"
	"ocrbot/internal/ocr"
)

var (
	// ErrFileTooLarge is returned for media above ocr.MaxFileSizeBytes.
	ErrFileTooLarge = errors.New("file exceeds the maximum size")

	// ErrEmptyFile is returned when the server sends no content.
	ErrEmptyFile = errors.New("downloaded file is empty")
)

// FileLocator resolves a file id to a direct download URL.
type FileLocator interface {
	GetFileDirectURL(fileID string) (string, error)
}

// Downloader saves media into a local directory under unique names.
type Downloader struct {
	locator FileLocator
	dir     string
	http    *http.Client
}

// NewDownloader stores files in dir, creating it when needed. *tgbotapi.BotAPI
// satisfies FileLocator.
func NewDownloader(locator FileLocator, dir string) (*Downloader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	return &Downloader{
		locator: locator,
		dir:     dir,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// Download fetches media and returns the local path. The extension follows the
// sniffed content type. Partial files are removed on failure.
func (d *Downloader) Download(ctx context.Context, media flow.Media) (string, error) {
	const op = "Download"

	url, err := d.locator.GetFileDirectURL(media.FileID)
	if err != nil {
		return "", fmt.Errorf("%s: resolve file: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, ocr.MaxFileSizeBytes+1))
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", op, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyFile)
	}
	if len(data) > ocr.MaxFileSizeBytes {
		return "", fmt.Errorf("%s: %w", op, ErrFileTooLarge)
	}

	path := filepath.Join(d.dir, uuid.NewString()+mimetype.Detect(data).Extension())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%s: write %s: %w", op, path, err)
	}
	return path, nil
}

var _ flow.Downloader = (*Downloader)(nil)
