package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"signalchat/internal/domain"
)

// File keeps the watermark as a single line in a text file.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Read returns the stored watermark, or domain.DefaultWatermark when the
// file does not exist. An existing empty file is an error: falling back to
// the default would re-publish the whole history.
func (f *File) Read(_ context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.DefaultWatermark, nil
		}
		return "", &ReadError{Location: f.path, Err: err}
	}

	s := strings.TrimSpace(string(data))
	if s == "" {
		return "", &ReadError{Location: f.path, Err: ErrEmpty}
	}
	return s, nil
}

// Write replaces the file atomically: a temp file in the same directory is
// renamed over the old one, so readers never see a partial watermark.
func (f *File) Write(_ context.Context, now time.Time) error {
	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("write checkpoint %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(format(now) + "\n"); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write checkpoint %s: %w", f.path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync checkpoint %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", f.path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", f.path, err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace checkpoint %s: %w", f.path, err)
	}
	return nil
}
