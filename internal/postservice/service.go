// Package postservice maps blog posts onto Markdown files in a remote
// repository: one file per post under a posts directory, with a frontmatter
// header carrying the post metadata.
package postservice

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/frontmatter"
	"github.com/starford/quill/internal/markdown"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

// Defaults applied when a header omits a field.
const (
	DefaultDir      = "posts"
	DefaultAuthor   = "Admin"
	DefaultTitle    = "Untitled"
	StatusPublished = "published"

	postExt = ".md"
	// isoLayout matches JavaScript's Date.prototype.toISOString.
	isoLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Config configures a Service.
type Config struct {
	// Dir is the posts directory relative to the repository root.
	Dir string
	// DefaultAuthor fills in posts without an author.
	DefaultAuthor string
	// Concurrency bounds parallel file fetches while listing.
	Concurrency int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Service is the content store adapter.
type Service struct {
	store    storage.Provider
	dir      string
	author   string
	limit    int
	now      func() time.Time
	renderer *markdown.Renderer
}

// CreateResult is returned by CreatePost.
type CreateResult struct {
	Success bool   `json:"success"`
	Slug    string `json:"slug"`
}

// Rendered is a post with its body converted to HTML.
type Rendered struct {
	Post *models.Post `json:"post"`
	HTML string       `json:"html"`
}

// New creates a post service over store.
func New(store storage.Provider, cfg Config) *Service {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.DefaultAuthor == "" {
		cfg.DefaultAuthor = DefaultAuthor
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:    store,
		dir:      strings.Trim(cfg.Dir, "/"),
		author:   cfg.DefaultAuthor,
		limit:    cfg.Concurrency,
		now:      cfg.Now,
		renderer: markdown.NewRenderer(),
	}
}

// Dir returns the posts directory.
func (s *Service) Dir() string {
	return s.dir
}

// PostPath returns the repository path for slug.
func (s *Service) PostPath(slug string) string {
	return path.Join(s.dir, slug+postExt)
}

// ListPosts returns every post, newest first. A missing posts directory
// yields an empty list. Any single fetch failure fails the whole listing.
func (s *Service) ListPosts(ctx context.Context) ([]models.Post, error) {
	entries, err := s.store.List(ctx, s.dir)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return []models.Post{}, nil
		}
		return nil, fmt.Errorf("postservice: list: %w", err)
	}

	var files []models.Entry
	for _, e := range entries {
		if e.Type != "" && e.Type != models.EntryFile {
			continue
		}
		if strings.HasSuffix(e.Name, postExt) {
			files = append(files, e)
		}
	}

	posts := make([]models.Post, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, e := range files {
		g.Go(func() error {
			p := e.Path
			if p == "" {
				p = path.Join(s.dir, e.Name)
			}
			f, err := s.store.Read(gctx, p)
			if err != nil {
				return fmt.Errorf("postservice: fetch %s: %w", e.Name, err)
			}
			posts[i] = s.assemble(strings.TrimSuffix(e.Name, postExt), f.Content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortPosts(posts)
	return posts, nil
}

// GetPost returns the post for slug, or nil when it does not exist.
func (s *Service) GetPost(ctx context.Context, slug string) (*models.Post, error) {
	if !validSlug(slug) {
		return nil, nil
	}
	f, err := s.store.Read(ctx, s.PostPath(slug))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("postservice: get %s: %w", slug, err)
	}
	p := s.assemble(slug, f.Content)
	return &p, nil
}

// CreatePost validates in, derives the slug from the title and writes a new
// post file. An existing file with the same slug is reported as
// apperr.ErrAlreadyExists.
func (s *Service) CreatePost(ctx context.Context, in models.PostInput) (*CreateResult, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	slug := Slugify(in.Title)
	if slug == "" {
		return nil, apperr.Invalid(validation.Errors{"title": errors.New("must contain at least one letter or digit")})
	}

	p := s.PostPath(slug)
	if _, err := s.store.Read(ctx, p); err == nil {
		return nil, fmt.Errorf("postservice: create %s: %w", slug, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("postservice: create %s: %w", slug, err)
	}

	md := s.header(in, s.timestamp(), "")
	_, err := s.store.Write(ctx, storage.WriteRequest{
		Path:    p,
		Content: []byte(frontmatter.Compose(md, in.Content)),
		Message: "Add post: " + in.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("postservice: create %s: %w", slug, err)
	}
	return &CreateResult{Success: true, Slug: slug}, nil
}

// UpdatePost rewrites the post at slug. The original publish date is kept
// and updatedAt is stamped with the current time.
func (s *Service) UpdatePost(ctx context.Context, slug string, in models.PostInput) error {
	if err := validateInput(&in); err != nil {
		return err
	}
	current, err := s.read(ctx, slug)
	if err != nil {
		return fmt.Errorf("postservice: update %s: %w", slug, err)
	}

	_, err = s.store.Write(ctx, storage.WriteRequest{
		Path:     s.PostPath(slug),
		Content:  []byte(s.nextContent(current, in)),
		Message:  "Update post: " + in.Title,
		Revision: current.Revision,
	})
	if err != nil {
		return fmt.Errorf("postservice: update %s: %w", slug, err)
	}
	return nil
}

// DeletePost removes the post file at slug.
func (s *Service) DeletePost(ctx context.Context, slug string) error {
	current, err := s.read(ctx, slug)
	if err != nil {
		return fmt.Errorf("postservice: delete %s: %w", slug, err)
	}
	if err := s.store.Delete(ctx, s.PostPath(slug), "Delete post: "+slug, current.Revision); err != nil {
		return fmt.Errorf("postservice: delete %s: %w", slug, err)
	}
	return nil
}

// RenderPost returns the post at slug with its body rendered to HTML.
func (s *Service) RenderPost(ctx context.Context, slug string) (*Rendered, error) {
	p, err := s.GetPost(ctx, slug)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("postservice: render %s: %w", slug, apperr.ErrNotFound)
	}
	html, err := s.renderer.Render(p.Content)
	if err != nil {
		return nil, fmt.Errorf("postservice: render %s: %w", slug, err)
	}
	return &Rendered{Post: p, HTML: html}, nil
}

// read fetches the current file for slug. A missing file or an unusable
// slug is reported as apperr.ErrNotFound.
func (s *Service) read(ctx context.Context, slug string) (*models.File, error) {
	if !validSlug(slug) {
		return nil, apperr.ErrNotFound
	}
	f, err := s.store.Read(ctx, s.PostPath(slug))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// nextContent is the file UpdatePost writes over current.
func (s *Service) nextContent(current *models.File, in models.PostInput) string {
	old, _ := frontmatter.Decode(string(current.Content))
	now := s.timestamp()
	date := old.String("date")
	if date == "" {
		date = now
	}
	return frontmatter.Compose(s.header(in, date, now), in.Content)
}

// header builds the frontmatter for a post in its canonical key order.
func (s *Service) header(in models.PostInput, date, updatedAt string) *frontmatter.Metadata {
	author := strings.TrimSpace(in.Author)
	if author == "" {
		author = s.author
	}
	md := frontmatter.New()
	md.Set("title", in.Title)
	md.Set("date", date)
	md.Set("author", author)
	md.Set("excerpt", in.Excerpt)
	md.Set("tags", nonNilSlice([]string(in.Tags)))
	md.Set("categories", nonNilSlice([]string(in.Categories)))
	md.Set("image", in.Image)
	md.Set("status", StatusPublished)
	if in.MetaDescription != "" {
		md.Set("metaDescription", in.MetaDescription)
	}
	if updatedAt != "" {
		md.Set("updatedAt", updatedAt)
	}
	return md
}

// assemble builds a Post from raw file content, applying header defaults.
func (s *Service) assemble(slug string, content []byte) models.Post {
	md, body := frontmatter.Decode(string(content))

	date := md.String("date")
	if date == "" {
		date = s.timestamp()
	}
	excerpt := md.String("excerpt")

	return models.Post{
		ID:              slug,
		Slug:            slug,
		Title:           orDefault(md.String("title"), DefaultTitle),
		Author:          orDefault(md.String("author"), s.author),
		Date:            date,
		Excerpt:         excerpt,
		Tags:            md.Strings("tags"),
		Content:         body,
		Image:           md.String("image"),
		Categories:      md.Strings("categories"),
		MetaDescription: orDefault(md.String("metaDescription"), excerpt),
		Status:          orDefault(md.String("status"), StatusPublished),
		PublishDate:     date,
		UpdatedAt:       orDefault(md.String("updatedAt"), date),
	}
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(isoLayout)
}

func validateInput(in *models.PostInput) error {
	in.Title = strings.TrimSpace(in.Title)
	return apperr.Invalid(validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Content, validation.Required),
	))
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sortPosts orders by date descending. Posts whose date does not parse sort
// after all dated posts; ties fall back to slug order.
func sortPosts(posts []models.Post) {
	type key struct {
		t  time.Time
		ok bool
	}
	keys := make(map[string]key, len(posts))
	for _, p := range posts {
		t, ok := parseDate(p.Date)
		keys[p.Slug] = key{t, ok}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := keys[posts[i].Slug], keys[posts[j].Slug]
		switch {
		case a.ok != b.ok:
			return a.ok
		case a.ok && !a.t.Equal(b.t):
			return a.t.After(b.t)
		}
		return posts[i].Slug < posts[j].Slug
	})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
