package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
)

// FS implements Provider backed by a local directory. Revision tokens are
// SHA-256 checksums of file content.
type FS struct {
	root string // absolute path to content directory

	// mu serialises revision checks with the writes they guard.
	mu sync.Mutex
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute content directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return abs, nil
}

// List returns the direct children of dir.
func (f *FS) List(_ context.Context, dir string) ([]models.Entry, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	des, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: list %s: %w", dir, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}

	out := make([]models.Entry, 0, len(des))
	for _, d := range des {
		if strings.HasPrefix(d.Name(), ".quill-tmp-") {
			continue
		}
		rel := filepath.ToSlash(filepath.Join(dir, d.Name()))
		e := models.Entry{Name: d.Name(), Path: rel, Type: models.EntryFile}
		if d.IsDir() {
			e.Type = models.EntryDir
			out = append(out, e)
			continue
		}
		data, err := os.ReadFile(filepath.Join(base, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", dir, err)
		}
		e.Size = int64(len(data))
		e.Revision = Revision(data)
		out = append(out, e)
	}
	return out, nil
}

// Read returns the file content and its checksum.
func (f *FS) Read(_ context.Context, path string) (*models.File, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return &models.File{Path: path, Content: data, Revision: Revision(data)}, nil
}

// Write checks the revision and atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(_ context.Context, req WriteRequest) (string, error) {
	abs, err := f.safePath(req.Path)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkRevision(abs, req.Path, req.Revision); err != nil {
		return "", err
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".quill-tmp-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(req.Content); err != nil {
		return "", fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return "", fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return Revision(req.Content), nil
}

// Delete removes a file after checking its revision.
func (f *FS) Delete(_ context.Context, path, _, revision string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", path, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	if revision != Revision(data) {
		return fmt.Errorf("storage: delete %s: stale revision: %w", path, apperr.ErrConflict)
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

func (f *FS) checkRevision(abs, path, revision string) error {
	data, err := os.ReadFile(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if revision != "" {
			return fmt.Errorf("storage: write %s: %w", path, apperr.ErrNotFound)
		}
		return nil
	case err != nil:
		return fmt.Errorf("storage: write %s: %w", path, err)
	case revision == "":
		return fmt.Errorf("storage: write %s: %w", path, apperr.ErrAlreadyExists)
	case revision != Revision(data):
		return fmt.Errorf("storage: write %s: stale revision: %w", path, apperr.ErrConflict)
	}
	return nil
}

// Revision returns the fs backend revision token for data: its hex-encoded
// SHA-256 digest.
func Revision(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
