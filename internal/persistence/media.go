package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/car-marketplace/internal/config"
)

// DiskMediaStore keeps uploaded files under a local directory.
type DiskMediaStore struct {
	dir     string
	baseURL string
}

// NewDiskMediaStore creates the media directory if needed.
func NewDiskMediaStore(cfg config.MediaConfig) (*DiskMediaStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskMediaStore{dir: cfg.Dir, baseURL: cfg.BaseURL}, nil
}

// NewKey returns a fresh storage key under prefix, keeping the
// extension of fileName.
func (s *DiskMediaStore) NewKey(prefix, fileName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(fileName)))
	if len(ext) > 10 {
		ext = ""
	}
	return path.Join(prefix, uuid.NewString()+ext)
}

// Save writes r to key.
func (s *DiskMediaStore) Save(ctx context.Context, key string, r io.Reader) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create media subdir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open media file: %w", err)
	}
	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: r}); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return fmt.Errorf("write media file: %w", err)
	}
	return f.Close()
}

// Remove deletes key. Missing files are not an error.
func (s *DiskMediaStore) Remove(key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove media file: %w", err)
	}
	return nil
}

// URL returns the public address of key.
func (s *DiskMediaStore) URL(key string) string {
	return s.baseURL + "/" + key
}

// Dir returns the root directory served under the base URL.
func (s *DiskMediaStore) Dir() string {
	return s.dir
}

func (s *DiskMediaStore) resolve(key string) (string, error) {
	if key == "" || !fs.ValidPath(key) {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
