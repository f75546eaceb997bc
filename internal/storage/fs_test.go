package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/quill/internal/apperr"
)

func tempContent(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func mustWrite(t *testing.T, s *FS, path, content string) string {
	t.Helper()
	rev, err := s.Write(context.Background(), WriteRequest{Path: path, Content: []byte(content), Message: "test"})
	if err != nil {
		t.Fatalf("Write %s: %v", path, err)
	}
	return rev
}

func TestWriteAndRead(t *testing.T) {
	s := tempContent(t)
	content := "# Hello\nWorld\n"
	rev := mustWrite(t, s, "posts/note.md", content)

	got, err := s.Read(context.Background(), "posts/note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got.Content) != content {
		t.Errorf("content mismatch: got %q", got.Content)
	}
	if got.Revision != rev || rev != Revision([]byte(content)) {
		t.Errorf("revision = %q, write returned %q", got.Revision, rev)
	}
}

func TestWriteRevisionRules(t *testing.T) {
	s := tempContent(t)
	ctx := context.Background()
	rev := mustWrite(t, s, "a.md", "v1")

	_, err := s.Write(ctx, WriteRequest{Path: "a.md", Content: []byte("dup")})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("create over existing = %v, want ErrAlreadyExists", err)
	}

	rev2, err := s.Write(ctx, WriteRequest{Path: "a.md", Content: []byte("v2"), Revision: rev})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err = s.Write(ctx, WriteRequest{Path: "a.md", Content: []byte("v3"), Revision: rev})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale update = %v, want ErrConflict", err)
	}

	_, err = s.Write(ctx, WriteRequest{Path: "missing.md", Content: []byte("x"), Revision: rev2})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update of missing = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempContent(t)
	ctx := context.Background()
	rev := mustWrite(t, s, "del.md", "bye")

	if err := s.Delete(ctx, "del.md", "msg", "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale delete = %v, want ErrConflict", err)
	}
	if err := s.Delete(ctx, "del.md", "msg", rev); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read(ctx, "del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("read after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "del.md", "msg", rev); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := tempContent(t)
	mustWrite(t, s, "posts/a.md", "a")
	mustWrite(t, s, "posts/sub/b.md", "b")
	mustWrite(t, s, "posts/readme.txt", "not md")

	items, err := s.List(context.Background(), "posts")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	byName := map[string]string{}
	for _, it := range items {
		byName[it.Name] = it.Type
	}
	if byName["a.md"] != "file" || byName["sub"] != "dir" {
		t.Errorf("entries = %+v", items)
	}

	if _, err := s.List(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("List(missing) = %v, want ErrNotFound", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempContent(t)
	ctx := context.Background()

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(ctx, p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if _, err := s.Write(ctx, WriteRequest{Path: p, Content: []byte("x")}); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempContent(t)
	rev := mustWrite(t, s, "atomic.md", "original content")

	if _, err := s.Write(context.Background(), WriteRequest{Path: "atomic.md", Content: []byte("updated content"), Revision: rev}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read(context.Background(), "atomic.md")
	if string(got.Content) != "updated content" {
		t.Errorf("expected updated content, got %q", got.Content)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".quill-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "quill-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
