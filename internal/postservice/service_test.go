package postservice

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
	"github.com/starford/quill/internal/testutil"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testService(t *testing.T) (*Service, *testutil.FakeGitHub, *time.Time) {
	t.Helper()
	fake := testutil.NewFakeGitHub(t)
	gh, err := storage.NewGitHub(storage.GitHubConfig{
		APIURL:     fake.URL(),
		Owner:      fake.Owner,
		Repo:       fake.Repo,
		Token:      fake.Token,
		HTTPClient: fake.Client(),
	})
	if err != nil {
		t.Fatalf("NewGitHub: %v", err)
	}
	now := fixedNow
	svc := New(gh, Config{Now: func() time.Time { return now }})
	return svc, fake, &now
}

func TestListPosts_EmptyRepository(t *testing.T) {
	svc, _, _ := testService(t)
	posts, err := svc.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if posts == nil || len(posts) != 0 {
		t.Errorf("posts = %#v, want empty non-nil", posts)
	}
}

func TestListPosts_SortedAndFiltered(t *testing.T) {
	svc, fake, _ := testService(t)
	fake.Seed("posts/old.md", "---\ntitle: \"Old\"\ndate: \"2023-01-01T00:00:00.000Z\"\n---\n\nold")
	fake.Seed("posts/new.md", "---\ntitle: \"New\"\ndate: \"2024-03-01T00:00:00.000Z\"\n---\n\nnew")
	fake.Seed("posts/plain.md", "---\ntitle: \"Plain day\"\ndate: 2023-06-01\n---\n\nplain")
	fake.Seed("posts/bad-date.md", "---\ntitle: \"Bad\"\ndate: someday\n---\n\nbad")
	fake.Seed("posts/notes.txt", "ignored")
	fake.Seed("posts/drafts/x.md", "ignored")

	posts, err := svc.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	var slugs []string
	for _, p := range posts {
		slugs = append(slugs, p.Slug)
	}
	want := []string{"new", "plain", "old", "bad-date"}
	if !reflect.DeepEqual(slugs, want) {
		t.Errorf("order = %v, want %v", slugs, want)
	}
}

func TestListPosts_FetchFailureAbortsAll(t *testing.T) {
	svc, fake, _ := testService(t)
	fake.Seed("posts/a.md", "a")
	fake.Seed("posts/b.md", "b")
	fake.ForceStatus(http.MethodGet, "posts/b.md", http.StatusInternalServerError)

	posts, err := svc.ListPosts(context.Background())
	if err == nil {
		t.Fatalf("expected error, got %d posts", len(posts))
	}
	if apperr.HostStatus(err) != http.StatusInternalServerError {
		t.Errorf("host status = %d", apperr.HostStatus(err))
	}
}

func TestListPosts_DirectoryFailure(t *testing.T) {
	svc, fake, _ := testService(t)
	fake.ForceStatus(http.MethodGet, "posts", http.StatusForbidden)
	if _, err := svc.ListPosts(context.Background()); err == nil {
		t.Fatal("expected error for non-404 listing failure")
	}
}

func TestGetPost_Absent(t *testing.T) {
	svc, _, _ := testService(t)
	p, err := svc.GetPost(context.Background(), "missing")
	if err != nil || p != nil {
		t.Errorf("GetPost(missing) = %v, %v; want nil, nil", p, err)
	}
}

func TestGetPost_Defaults(t *testing.T) {
	svc, fake, _ := testService(t)
	fake.Seed("posts/raw.md", "no header here\n")

	p, err := svc.GetPost(context.Background(), "raw")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if p.Title != DefaultTitle || p.Author != DefaultAuthor || p.Status != StatusPublished {
		t.Errorf("defaults not applied: %+v", p)
	}
	if p.Content != "no header here\n" {
		t.Errorf("content = %q", p.Content)
	}
	if p.ID != "raw" || p.Slug != "raw" {
		t.Errorf("id/slug = %q/%q", p.ID, p.Slug)
	}
	if p.Date != "2024-05-01T10:00:00.000Z" || p.PublishDate != p.Date || p.UpdatedAt != p.Date {
		t.Errorf("dates = %q %q %q", p.Date, p.PublishDate, p.UpdatedAt)
	}
	if p.Tags == nil || p.Categories == nil {
		t.Error("tags and categories should be empty, not nil")
	}
}

func TestCreateThenGet(t *testing.T) {
	svc, fake, _ := testService(t)
	ctx := context.Background()

	res, err := svc.CreatePost(ctx, models.PostInput{Title: "My Post", Content: "Body text"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if !res.Success || res.Slug != "my-post" {
		t.Errorf("result = %+v", res)
	}

	raw, ok := fake.File("posts/my-post.md")
	if !ok {
		t.Fatal("file not written")
	}
	wantRaw := "---\n" +
		"title: \"My Post\"\n" +
		"date: \"2024-05-01T10:00:00.000Z\"\n" +
		"author: \"Admin\"\n" +
		"excerpt: \"\"\n" +
		"tags: []\n" +
		"categories: []\n" +
		"image: \"\"\n" +
		"status: \"published\"\n" +
		"---\n\nBody text"
	if raw != wantRaw {
		t.Errorf("file =\n%s\nwant\n%s", raw, wantRaw)
	}

	p, err := svc.GetPost(ctx, res.Slug)
	if err != nil || p == nil {
		t.Fatalf("GetPost: %v, %v", p, err)
	}
	if p.Title != "My Post" || p.Content != "Body text" {
		t.Errorf("post = %+v", p)
	}
	if p.MetaDescription != p.Excerpt || p.Excerpt != "" {
		t.Errorf("metaDescription = %q, excerpt = %q", p.MetaDescription, p.Excerpt)
	}
}

func TestCreatePost_WithMetadata(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	res, err := svc.CreatePost(ctx, models.PostInput{
		Title:      "Tagged",
		Content:    "x",
		Author:     "Jane",
		Excerpt:    "Short",
		Tags:       models.StringList{"go", "web"},
		Categories: models.StringList{"dev"},
		Image:      "https://example.com/a.png",
	})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	p, _ := svc.GetPost(ctx, res.Slug)
	if p.Author != "Jane" || p.Excerpt != "Short" || p.MetaDescription != "Short" {
		t.Errorf("post = %+v", p)
	}
	if !reflect.DeepEqual(p.Tags, []string{"go", "web"}) || !reflect.DeepEqual(p.Categories, []string{"dev"}) {
		t.Errorf("tags = %v, categories = %v", p.Tags, p.Categories)
	}
}

func TestCreatePost_Validation(t *testing.T) {
	svc, fake, _ := testService(t)
	cases := []models.PostInput{
		{Content: "body"},
		{Title: "Title"},
		{Title: "   ", Content: "body"},
		{Title: "!!!", Content: "body"},
	}
	for _, in := range cases {
		_, err := svc.CreatePost(context.Background(), in)
		if !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("CreatePost(%+v) error = %v, want ErrInvalid", in, err)
		}
	}
	if n := fake.Calls(http.MethodGet) + fake.Calls(http.MethodPut); n != 0 {
		t.Errorf("validation failures made %d host calls", n)
	}
}

func TestCreatePost_ImagePaths(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	for _, img := range []string{"/images/hero.png", "images/hero.png", "https://example.com/hero.png"} {
		res, err := svc.CreatePost(ctx, models.PostInput{Title: "Cover " + img, Content: "b", Image: img})
		if err != nil {
			t.Fatalf("CreatePost(image %q): %v", img, err)
		}
		p, _ := svc.GetPost(ctx, res.Slug)
		if p == nil || p.Image != img {
			t.Errorf("image = %+v, want %q", p, img)
		}
	}
}

func TestCreatePost_Collision(t *testing.T) {
	svc, fake, _ := testService(t)
	fake.Seed("posts/my-post.md", "existing")

	_, err := svc.CreatePost(context.Background(), models.PostInput{Title: "My Post", Content: "new"})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("error = %v, want ErrAlreadyExists", err)
	}
	if got, _ := fake.File("posts/my-post.md"); got != "existing" {
		t.Errorf("existing file overwritten: %q", got)
	}
	if fake.Calls(http.MethodPut) != 0 {
		t.Error("no write should be issued on collision")
	}
}

func TestCreatePost_HostFailure(t *testing.T) {
	svc, fake, _ := testService(t)
	fake.ForceStatus(http.MethodPut, "posts/x.md", http.StatusBadGateway)
	_, err := svc.CreatePost(context.Background(), models.PostInput{Title: "X", Content: "y"})
	if apperr.HostStatus(err) != http.StatusBadGateway {
		t.Errorf("error = %v, want host status 502", err)
	}
}

func TestUpdatePost_RequiresExistence(t *testing.T) {
	svc, fake, _ := testService(t)
	err := svc.UpdatePost(context.Background(), "ghost", models.PostInput{Title: "Ghost", Content: "x"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if fake.Calls(http.MethodPut) != 0 {
		t.Error("no write should be issued")
	}
}

func TestUpdatePost_PreservesDate(t *testing.T) {
	svc, fake, now := testService(t)
	ctx := context.Background()

	res, err := svc.CreatePost(ctx, models.PostInput{Title: "Keep Date", Content: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	*now = fixedNow.Add(48 * time.Hour)

	err = svc.UpdatePost(ctx, res.Slug, models.PostInput{Title: "Keep Date", Content: "v2", Tags: models.StringList{"x"}})
	if err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}

	p, _ := svc.GetPost(ctx, res.Slug)
	if p.Content != "v2" {
		t.Errorf("content = %q", p.Content)
	}
	if p.Date != "2024-05-01T10:00:00.000Z" {
		t.Errorf("date = %q, want original", p.Date)
	}
	if p.UpdatedAt != "2024-05-03T10:00:00.000Z" {
		t.Errorf("updatedAt = %q", p.UpdatedAt)
	}
	if !reflect.DeepEqual(p.Tags, []string{"x"}) {
		t.Errorf("tags = %v", p.Tags)
	}
	if fake.Calls(http.MethodPut) != 2 {
		t.Errorf("PUT calls = %d, want 2", fake.Calls(http.MethodPut))
	}
}

func TestUpdatePost_StaleRevision(t *testing.T) {
	svc, fake, _ := testService(t)
	fake.Seed("posts/a.md", "a")
	fake.ForceStatus(http.MethodPut, "posts/a.md", http.StatusConflict)

	err := svc.UpdatePost(context.Background(), "a", models.PostInput{Title: "A", Content: "b"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestDeletePost(t *testing.T) {
	svc, fake, _ := testService(t)
	ctx := context.Background()

	if err := svc.DeletePost(ctx, "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("delete missing = %v, want ErrNotFound", err)
	}
	if fake.Calls(http.MethodDelete) != 0 {
		t.Error("no delete should be issued for a missing post")
	}

	fake.Seed("posts/bye.md", "gone soon")
	if err := svc.DeletePost(ctx, "bye"); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if _, ok := fake.File("posts/bye.md"); ok {
		t.Error("file still present")
	}
	if p, _ := svc.GetPost(ctx, "bye"); p != nil {
		t.Error("post still readable")
	}
}

func TestTraversalSlugs(t *testing.T) {
	svc, fake, _ := testService(t)
	ctx := context.Background()
	if p, err := svc.GetPost(ctx, "../secrets"); p != nil || err != nil {
		t.Errorf("GetPost(traversal) = %v, %v", p, err)
	}
	if err := svc.DeletePost(ctx, "a/b"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("DeletePost(traversal) = %v", err)
	}
	if fake.Calls(http.MethodGet) != 0 {
		t.Error("invalid slugs must not reach the host")
	}
}

func TestDiffPost(t *testing.T) {
	svc, fake, now := testService(t)
	ctx := context.Background()
	res, _ := svc.CreatePost(ctx, models.PostInput{Title: "Diffed", Content: "line one\n"})
	*now = fixedNow.Add(time.Hour)

	diff, err := svc.DiffPost(ctx, res.Slug, models.PostInput{Title: "Diffed", Content: "line two\n"})
	if err != nil {
		t.Fatalf("DiffPost: %v", err)
	}
	for _, want := range []string{"--- a/posts/diffed.md", "+++ b/posts/diffed.md", "-line one", "+line two", "+updatedAt:"} {
		if !strings.Contains(diff, want) {
			t.Errorf("diff missing %q:\n%s", want, diff)
		}
	}
	if fake.Calls(http.MethodPut) != 1 {
		t.Error("diff must not write")
	}
}

func TestRenderPost(t *testing.T) {
	svc, fake, _ := testService(t)
	fake.Seed("posts/r.md", "---\ntitle: \"R\"\n---\n\n# Heading\n")

	out, err := svc.RenderPost(context.Background(), "r")
	if err != nil {
		t.Fatalf("RenderPost: %v", err)
	}
	if !strings.Contains(out.HTML, "<h1") || out.Post.Title != "R" {
		t.Errorf("rendered = %+v", out)
	}
	if _, err := svc.RenderPost(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("render missing = %v", err)
	}
}

func TestFSBackend(t *testing.T) {
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	svc := New(fs, Config{})
	ctx := context.Background()

	res, err := svc.CreatePost(ctx, models.PostInput{Title: "Local", Content: "body"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if err := svc.UpdatePost(ctx, res.Slug, models.PostInput{Title: "Local", Content: "body 2"}); err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	posts, err := svc.ListPosts(ctx)
	if err != nil || len(posts) != 1 || posts[0].Content != "body 2" {
		t.Fatalf("ListPosts = %+v, %v", posts, err)
	}
	if err := svc.DeletePost(ctx, res.Slug); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
}
