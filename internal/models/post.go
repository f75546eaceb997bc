// Package models defines the domain types for quill.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starford/quill/internal/frontmatter"
)

// Post is a blog article materialised from one Markdown file.
type Post struct {
	ID              string   `json:"id"`
	Slug            string   `json:"slug"`
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Date            string   `json:"date"`
	Excerpt         string   `json:"excerpt"`
	Tags            []string `json:"tags"`
	Content         string   `json:"content"`
	Image           string   `json:"image"`
	Categories      []string `json:"categories"`
	MetaDescription string   `json:"metaDescription"`
	Status          string   `json:"status"`
	PublishDate     string   `json:"publishDate"`
	UpdatedAt       string   `json:"updatedAt"`
}

// PostInput carries the caller-supplied fields for create and update.
type PostInput struct {
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	Author          string     `json:"author,omitempty"`
	Excerpt         string     `json:"excerpt,omitempty"`
	Tags            StringList `json:"tags,omitempty"`
	Categories      StringList `json:"categories,omitempty"`
	Image           string     `json:"image,omitempty"`
	MetaDescription string     `json:"metaDescription,omitempty"`
}

// StringList is a string sequence that also accepts a comma-separated
// string when decoded from JSON.
type StringList []string

// UnmarshalJSON accepts ["a","b"], "a, b" or null.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = frontmatter.SplitList(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	*l = frontmatter.Normalize(items)
	return nil
}

// Entry is one item of a remote directory listing.
type Entry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Revision string `json:"sha"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

// Entry types.
const (
	EntryFile = "file"
	EntryDir  = "dir"
)

// File is the content of one remote file and its revision token.
type File struct {
	Path     string
	Content  []byte
	Revision string
}
