// Package blob stores raw filing documents.
package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/tenkay/filing-pipeline/internal/model"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = eris.New("blob: not found")

// Store writes and reads documents by key.
type Store interface {
	// Put writes body under key, replacing any previous object, and returns
	// a URL that Get accepts.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// FilingKey is the storage key for a raw filing:
// {ticker}/{fiscal_year}/{type}/{accession}.{ext}.
func FilingKey(f *model.Filing, ext string) string {
	return fmt.Sprintf("%s/%d/%s/%s.%s", f.Ticker, f.FiscalYear, f.FilingType, f.AccessionNumber, ext)
}

// FileStore keeps objects under a root directory and hands out file://
// URLs.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, eris.Wrapf(err, "blob: resolve %s", root)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, eris.Wrapf(err, "blob: create %s", abs)
	}
	return &FileStore{root: abs}, nil
}

// Put implements Store. The write goes through a temp file and rename so
// readers never see a partial document.
func (s *FileStore) Put(ctx context.Context, key string, body []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", eris.Wrapf(err, "blob: mkdir for %s", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return "", eris.Wrapf(err, "blob: temp file for %s", key)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return "", eris.Wrapf(err, "blob: write %s", key)
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrapf(err, "blob: close %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", eris.Wrapf(err, "blob: rename %s", key)
	}

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

// Get implements Store. ref may be a URL returned by Put or a bare key.
func (s *FileStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, eris.Wrapf(ErrNotFound, "%s", ref)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "blob: read %s", ref)
	}
	return data, nil
}

func (s *FileStore) resolve(ref string) (string, error) {
	if !strings.HasPrefix(ref, "file://") {
		return s.path(ref)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", eris.Wrapf(err, "blob: parse %s", ref)
	}
	path := filepath.FromSlash(u.Path)
	if !s.within(path) {
		return "", eris.Errorf("blob: %s is outside %s", ref, s.root)
	}
	return path, nil
}

func (s *FileStore) path(key string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if !s.within(path) {
		return "", eris.Errorf("blob: key %q escapes root", key)
	}
	return path, nil
}

func (s *FileStore) within(path string) bool {
	rel, err := filepath.Rel(s.root, filepath.Clean(path))
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
