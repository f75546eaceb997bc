// Package storage defines the remote repository host abstraction that post
// files live in, with a GitHub Contents API backend and a local directory
// backend.
package storage

import (
	"context"

	"github.com/starford/quill/internal/models"
)

// Provider is the interface for repository file operations. Paths are
// slash-separated and relative to the repository root.
type Provider interface {
	// List returns the entries of dir. A missing directory yields an error
	// matching apperr.ErrNotFound.
	List(ctx context.Context, dir string) ([]models.Entry, error)
	// Read returns the content and revision token of the file at path.
	// A missing file yields an error matching apperr.ErrNotFound.
	Read(ctx context.Context, path string) (*models.File, error)
	// Write creates or updates a file and returns its new revision token.
	// An empty req.Revision requests creation.
	Write(ctx context.Context, req WriteRequest) (string, error)
	// Delete removes the file at path. revision must match the current one.
	Delete(ctx context.Context, path, message, revision string) error
}

// WriteRequest describes one put-file call.
type WriteRequest struct {
	Path     string
	Content  []byte
	Message  string
	Revision string
}
