package storage

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/testutil"
)

func newGitHub(t *testing.T, fake *testutil.FakeGitHub) *GitHub {
	t.Helper()
	g, err := NewGitHub(GitHubConfig{
		APIURL:     fake.URL(),
		Owner:      fake.Owner,
		Repo:       fake.Repo,
		Token:      fake.Token,
		Branch:     fake.Branch,
		HTTPClient: fake.Client(),
	})
	if err != nil {
		t.Fatalf("NewGitHub: %v", err)
	}
	return g
}

func TestNewGitHub_MissingConfig(t *testing.T) {
	cases := []GitHubConfig{
		{Repo: "r", Token: "t"},
		{Owner: "o", Token: "t"},
		{Owner: "o", Repo: "r"},
	}
	for _, cfg := range cases {
		_, err := NewGitHub(cfg)
		if !errors.Is(err, apperr.ErrConfig) {
			t.Errorf("NewGitHub(%+v) error = %v, want ErrConfig", cfg, err)
		}
	}
}

func TestGitHub_ListAndRead(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)
	body := strings.Repeat("long line of text\n", 20)
	fake.Seed("posts/a.md", body)
	fake.Seed("posts/b.txt", "x")
	fake.Seed("posts/img/c.png", "png")
	g := newGitHub(t, fake)
	ctx := context.Background()

	entries, err := g.List(ctx, "posts")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(entries), entries)
	}
	if entries[0].Name != "a.md" || entries[0].Type != "file" || entries[0].Revision == "" {
		t.Errorf("entry[0] = %+v", entries[0])
	}
	if entries[2].Name != "img" || entries[2].Type != "dir" {
		t.Errorf("entry[2] = %+v", entries[2])
	}

	f, err := g.Read(ctx, "posts/a.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(f.Content) != body {
		t.Errorf("content mismatch: %q", f.Content)
	}
	if f.Revision != testutil.SHA([]byte(body)) {
		t.Errorf("revision = %q", f.Revision)
	}
}

func TestGitHub_ReadRawFallback(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)
	fake.RawOnly = true
	fake.Seed("posts/big.md", "big content")
	g := newGitHub(t, fake)

	f, err := g.Read(context.Background(), "posts/big.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(f.Content) != "big content" {
		t.Errorf("content = %q", f.Content)
	}
	if fake.Calls(http.MethodGet) != 2 {
		t.Errorf("GET calls = %d, want 2", fake.Calls(http.MethodGet))
	}
}

func TestGitHub_NotFound(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)
	g := newGitHub(t, fake)
	ctx := context.Background()

	if _, err := g.List(ctx, "posts"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("List error = %v, want ErrNotFound", err)
	}
	if _, err := g.Read(ctx, "posts/missing.md"); !IsNotFound(err) {
		t.Errorf("Read error = %v, want ErrNotFound", err)
	}
}

func TestGitHub_WriteLifecycle(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)
	g := newGitHub(t, fake)
	ctx := context.Background()

	rev, err := g.Write(ctx, WriteRequest{Path: "posts/a.md", Content: []byte("v1"), Message: "Add post: A"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rev != testutil.SHA([]byte("v1")) {
		t.Errorf("revision = %q", rev)
	}

	// Creating again without a revision is rejected by the host.
	_, err = g.Write(ctx, WriteRequest{Path: "posts/a.md", Content: []byte("dup"), Message: "Add post: A"})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create error = %v, want ErrAlreadyExists", err)
	}
	if apperr.HostStatus(err) != http.StatusUnprocessableEntity {
		t.Errorf("host status = %d", apperr.HostStatus(err))
	}

	rev2, err := g.Write(ctx, WriteRequest{Path: "posts/a.md", Content: []byte("v2"), Message: "Update post: A", Revision: rev})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	// Stale revision.
	_, err = g.Write(ctx, WriteRequest{Path: "posts/a.md", Content: []byte("v3"), Message: "Update post: A", Revision: rev})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale update error = %v, want ErrConflict", err)
	}

	if err := g.Delete(ctx, "posts/a.md", "Delete post: a", rev); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale delete error = %v, want ErrConflict", err)
	}
	if err := g.Delete(ctx, "posts/a.md", "Delete post: a", rev2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := fake.File("posts/a.md"); ok {
		t.Error("file should be gone")
	}
}

func TestGitHub_HostFailureCarriesStatus(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)
	fake.ForceStatus(http.MethodGet, "posts", http.StatusInternalServerError)
	g := newGitHub(t, fake)

	_, err := g.List(context.Background(), "posts")
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.HostStatus(err) != http.StatusInternalServerError {
		t.Errorf("host status = %d", apperr.HostStatus(err))
	}
	if errors.Is(err, apperr.ErrNotFound) {
		t.Error("500 must not look like not found")
	}
}

func TestGitHub_BadCredential(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)
	g, err := NewGitHub(GitHubConfig{
		APIURL:     fake.URL(),
		Owner:      fake.Owner,
		Repo:       fake.Repo,
		Token:      "wrong",
		HTTPClient: fake.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = g.Read(context.Background(), "posts/a.md")
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}
