package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/docstore"
	"github.com/starford/quill/internal/postservice"
	"github.com/starford/quill/internal/sse"
)

// ChangePublisher receives content change notifications.
type ChangePublisher interface {
	PublishChange(kind, subject, id string)
}

// Handler holds API route handlers.
type Handler struct {
	posts  *postservice.Service
	store  docstore.Store
	events ChangePublisher
	author string
}

// NewHandler creates a new Handler. events may be nil.
func NewHandler(posts *postservice.Service, store docstore.Store, events ChangePublisher) *Handler {
	return &Handler{posts: posts, store: store, events: events, author: postservice.DefaultAuthor}
}

// WithReplyAuthor sets the author name used for admin replies.
func (h *Handler) WithReplyAuthor(name string) *Handler {
	if name != "" {
		h.author = name
	}
	return h
}

func (h *Handler) publish(kind, subject, id string) {
	if h.events != nil {
		h.events.PublishChange(kind, subject, id)
	}
}

var postMessages = errorMessages{
	notFound: "Post not found",
	exists:   "A post with this title already exists",
}

// ListPosts handles GET /api/posts.
//
//	@Summary		List all posts, newest first
//	@Tags			posts
//	@Produce		json
//	@Success		200	{array}		Post
//	@Failure		502	{object}	errResponse
//	@Router			/posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPosts(r.Context())
	if err != nil {
		writeError(w, "list posts", err, postMessages)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// GetPost handles GET /api/posts/{slug}.
//
//	@Summary		Get a single post by slug
//	@Tags			posts
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Success		200		{object}	Post
//	@Failure		404		{object}	errResponse
//	@Router			/posts/{slug} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post, err := h.posts.GetPost(r.Context(), slug)
	if err != nil {
		writeError(w, "get post", err, postMessages, slog.String("slug", slug))
		return
	}
	if post == nil {
		writeJSON(w, http.StatusNotFound, errorBody(postMessages.notFound))
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// RenderPost handles GET /api/posts/{slug}/html.
//
//	@Summary		Get a post with its body rendered to HTML
//	@Tags			posts
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Success		200		{object}	RenderedPostResponse
//	@Failure		404		{object}	errResponse
//	@Router			/posts/{slug}/html [get]
func (h *Handler) RenderPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	out, err := h.posts.RenderPost(r.Context(), slug)
	if err != nil {
		writeError(w, "render post", err, postMessages, slog.String("slug", slug))
		return
	}
	writeJSON(w, http.StatusOK, RenderedPostResponse{Post: out.Post, HTML: out.HTML})
}

// CreatePost handles POST /api/posts.
//
//	@Summary		Create a post and commit it to the content repository
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PostRequest	true	"Post to create"
//	@Success		201		{object}	CreatePostResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts [post]
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req PostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("Title and content are required"))
		return
	}
	res, err := h.posts.CreatePost(r.Context(), req)
	if err != nil {
		writeError(w, "create post", err, postMessages, slog.String("title", req.Title))
		return
	}
	h.publish(sse.KindCreated, sse.SubjectPost, res.Slug)
	writeJSON(w, http.StatusCreated, CreatePostResponse{Success: res.Success, Slug: res.Slug})
}

// UpdatePost handles PUT /api/posts/{slug}.
//
//	@Summary		Rewrite a post, keeping its original date
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			slug	path		string		true	"Post slug"
//	@Param			body	body		PostRequest	true	"Updated post"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{slug} [put]
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	var req PostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.posts.UpdatePost(r.Context(), slug, req); err != nil {
		writeError(w, "update post", err, postMessages, slog.String("slug", slug))
		return
	}
	h.publish(sse.KindUpdated, sse.SubjectPost, slug)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// DiffPost handles POST /api/posts/{slug}/diff.
//
//	@Summary		Preview the file change an update would commit
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			slug	path		string		true	"Post slug"
//	@Param			body	body		PostRequest	true	"Proposed post"
//	@Success		200		{object}	DiffResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{slug}/diff [post]
func (h *Handler) DiffPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	var req PostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	diff, err := h.posts.DiffPost(r.Context(), slug, req)
	if err != nil {
		writeError(w, "diff post", err, postMessages, slog.String("slug", slug))
		return
	}
	writeJSON(w, http.StatusOK, DiffResponse{Changed: diff != "", Diff: diff})
}

// DeletePost handles DELETE /api/posts/{slug}.
//
//	@Summary		Delete a post file
//	@Tags			posts
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Success		200		{object}	SuccessResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{slug} [delete]
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	h.deletePost(w, r, chi.URLParam(r, "slug"))
}

// DeletePostByBody handles DELETE /api/posts/delete with a {"slug"} body.
//
//	@Summary		Delete a post file named in the request body
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DeletePostRequest	true	"Post to delete"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/delete [delete]
func (h *Handler) DeletePostByBody(w http.ResponseWriter, r *http.Request) {
	var req DeletePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Slug == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("Slug is required"))
		return
	}
	h.deletePost(w, r, req.Slug)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request, slug string) {
	if err := h.posts.DeletePost(r.Context(), slug); err != nil {
		writeError(w, "delete post", err, postMessages, slog.String("slug", slug))
		return
	}
	h.publish(sse.KindDeleted, sse.SubjectPost, slug)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
