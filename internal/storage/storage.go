// Package storage is a small object store keyed by relative paths, with
// public URL resolution for stored objects.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid object key")

// Store keeps objects on an afero filesystem and serves them under baseURL.
type Store struct {
	fs      afero.Fs
	baseURL string
}

// New creates a Store on top of fs.
func New(fs afero.Fs, baseURL string) *Store {
	return &Store{fs: fs, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewLocal creates a Store rooted at dir on the local disk.
func NewLocal(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), baseURL), nil
}

func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if cleaned == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// fsPath roots a cleaned key so every afero backend resolves it the same way.
func fsPath(k string) string {
	return "/" + k
}

// Upload writes data under key, replacing any existing object.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if dir := path.Dir(fsPath(k)); dir != "/" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create object dir: %w", err)
		}
	}

	// Write then rename so readers never see a half-written object.
	tmp := fsPath(k) + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := s.fs.Rename(tmp, fsPath(k)); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to store object: %w", err)
	}
	return nil
}

// Exists reports whether an object is stored under key.
func (s *Store) Exists(key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, fsPath(k))
}

// PublicURL resolves the URL an object is served from.
func (s *Store) PublicURL(key string) string {
	k, err := cleanKey(key)
	if err != nil {
		return ""
	}
	return s.baseURL + "/" + k
}

// IsPublicURL reports whether u points into this store.
func (s *Store) IsPublicURL(u string) bool {
	return s.baseURL != "" && strings.HasPrefix(u, s.baseURL+"/")
}

// Handler serves stored objects read-only.
func (s *Store) Handler() http.Handler {
	return http.FileServer(afero.NewHttpFs(afero.NewReadOnlyFs(s.fs)).Dir("/"))
}
