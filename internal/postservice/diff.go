package postservice

import (
	"context"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/starford/quill/internal/models"
)

// DiffPost previews an update: it returns a unified diff between the stored
// file for slug and the file UpdatePost would write for in. Nothing is
// written. An empty string means the files are identical.
func (s *Service) DiffPost(ctx context.Context, slug string, in models.PostInput) (string, error) {
	if err := validateInput(&in); err != nil {
		return "", err
	}
	current, err := s.read(ctx, slug)
	if err != nil {
		return "", fmt.Errorf("postservice: diff %s: %w", slug, err)
	}

	previous := string(current.Content)
	next := s.nextContent(current, in)
	if previous == next {
		return "", nil
	}

	p := s.PostPath(slug)
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(previous),
		B:        difflib.SplitLines(next),
		FromFile: "a/" + p,
		ToFile:   "b/" + p,
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(d)
	if err != nil {
		return "", fmt.Errorf("postservice: diff %s: %w", slug, err)
	}
	return out, nil
}
