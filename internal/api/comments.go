package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/docstore"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/sse"
)

var commentMessages = errorMessages{notFound: "Comment not found"}

// CreateComment handles POST /api/comments.
//
//	@Summary		Submit a reader comment for moderation
//	@Tags			comments
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateCommentRequest	true	"Comment"
//	@Success		201		{object}	CommentCreatedResponse
//	@Failure		400		{object}	errResponse
//	@Router			/comments [post]
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req CreateCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.PostSlug) == "" || strings.TrimSpace(req.Author) == "" || strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("Missing required fields"))
		return
	}

	c, err := h.store.CreateComment(r.Context(), models.Comment{
		PostSlug: req.PostSlug,
		Author:   req.Author,
		Email:    req.Email,
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		writeError(w, "create comment", err, commentMessages, slog.String("post", req.PostSlug))
		return
	}
	h.publish(sse.KindCreated, sse.SubjectComment, c.ID)
	writeJSON(w, http.StatusCreated, CommentCreatedResponse{
		ID:       c.ID,
		PostSlug: c.PostSlug,
		Author:   c.Author,
		Content:  c.Content,
		Approved: c.Approved,
	})
}

// ListPostComments handles GET /api/posts/{slug}/comments.
//
//	@Summary		List approved comments on a post, newest first
//	@Tags			comments
//	@Produce		json
//	@Param			slug	path	string	true	"Post slug"
//	@Success		200		{array}	PublicComment
//	@Router			/posts/{slug}/comments [get]
func (h *Handler) ListPostComments(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	comments, err := h.store.ListComments(r.Context(), docstore.CommentFilter{
		Status:   docstore.StatusApproved,
		PostSlug: slug,
	})
	if err != nil {
		writeError(w, "list post comments", err, commentMessages, slog.String("slug", slug))
		return
	}
	out := make([]PublicComment, len(comments))
	for i, c := range comments {
		out[i] = publicComment(c)
	}
	writeJSON(w, http.StatusOK, out)
}

// ListComments handles GET /api/admin/comments.
//
//	@Summary		List comments for moderation
//	@Tags			admin
//	@Produce		json
//	@Param			status	query	string	false	"Moderation state"	Enums(all, pending, approved)
//	@Param			post	query	string	false	"Post slug"
//	@Success		200		{array}	Comment
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/comments [get]
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	comments, err := h.store.ListComments(r.Context(), docstore.CommentFilter{
		Status:   q.Get("status"),
		PostSlug: q.Get("post"),
	})
	if err != nil {
		writeError(w, "list comments", err, commentMessages)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// ApproveComment handles POST /api/admin/comments/{id}/approve.
//
//	@Summary		Approve a pending comment
//	@Tags			admin
//	@Produce		json
//	@Param			id	path		string	true	"Comment id"
//	@Success		200	{object}	SuccessResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/comments/{id}/approve [post]
func (h *Handler) ApproveComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.ApproveComment(r.Context(), id); err != nil {
		writeError(w, "approve comment", err, commentMessages, slog.String("id", id))
		return
	}
	h.publish(sse.KindApproved, sse.SubjectComment, id)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ReplyComment handles POST /api/admin/comments/{id}/reply.
//
//	@Summary		Publish an admin reply to a comment
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Parent comment id"
//	@Param			body	body		ReplyRequest	true	"Reply"
//	@Success		201		{object}	Comment
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/comments/{id}/reply [post]
func (h *Handler) ReplyComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ReplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	parent, err := h.store.GetComment(r.Context(), id)
	if err != nil {
		writeError(w, "reply comment", err, commentMessages, slog.String("id", id))
		return
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = h.author
	}
	reply, err := h.store.CreateComment(r.Context(), models.Comment{
		PostSlug: parent.PostSlug,
		Author:   author,
		Content:  req.Content,
		ParentID: parent.ID,
		Approved: true,
		IsAdmin:  true,
	})
	if err != nil {
		writeError(w, "reply comment", err, commentMessages, slog.String("id", id))
		return
	}
	h.publish(sse.KindCreated, sse.SubjectComment, reply.ID)
	writeJSON(w, http.StatusCreated, reply)
}

// DeleteComment handles DELETE /api/admin/comments/{id}.
//
//	@Summary		Delete a comment
//	@Tags			admin
//	@Produce		json
//	@Param			id	path		string	true	"Comment id"
//	@Success		200	{object}	SuccessResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/comments/{id} [delete]
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteComment(r.Context(), id); err != nil {
		writeError(w, "delete comment", err, commentMessages, slog.String("id", id))
		return
	}
	h.publish(sse.KindDeleted, sse.SubjectComment, id)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Overview handles GET /api/admin/overview.
//
//	@Summary		Dashboard counters
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	OverviewResponse
//	@Security		BearerAuth
//	@Router			/admin/overview [get]
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var out OverviewResponse

	posts, err := h.posts.ListPosts(ctx)
	if err != nil {
		writeError(w, "overview", err, errorMessages{})
		return
	}
	out.PostsCount = len(posts)

	total, pending, err := h.store.CountComments(ctx)
	if err != nil {
		writeError(w, "overview", err, errorMessages{})
		return
	}
	out.CommentsCount, out.PendingComments = total, pending

	subs, err := h.store.CountSubscribers(ctx)
	if err != nil {
		writeError(w, "overview", err, errorMessages{})
		return
	}
	out.SubscribersCount = subs

	writeJSON(w, http.StatusOK, out)
}
