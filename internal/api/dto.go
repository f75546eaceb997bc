package api

import (
	"time"

	"github.com/starford/quill/internal/models"
)

// PostRequest is the request body for creating or updating a post. Tags and
// categories accept an array or a comma-separated string.
type PostRequest = models.PostInput

// Post is the post response type (aliased from the domain layer).
type Post = models.Post

// CreatePostResponse is returned after a post file is committed.
type CreatePostResponse struct {
	Success bool   `json:"success" example:"true" validate:"required"`
	Slug    string `json:"slug" example:"hello-world" validate:"required"`
}

// DeletePostRequest is the body of DELETE /api/posts/delete.
type DeletePostRequest struct {
	Slug string `json:"slug" example:"hello-world" validate:"required"`
}

// RenderedPostResponse carries a post with its body rendered to HTML.
type RenderedPostResponse struct {
	Post *Post  `json:"post" validate:"required"`
	HTML string `json:"html" example:"<h1>Hello</h1>" validate:"required"`
}

// DiffResponse previews the change an update would commit.
type DiffResponse struct {
	Changed bool   `json:"changed" example:"true"`
	Diff    string `json:"diff" example:"--- a/posts/hello.md\n+++ b/posts/hello.md\n..."`
}

// SuccessResponse acknowledges an operation without a payload.
type SuccessResponse struct {
	Success bool `json:"success" example:"true" validate:"required"`
}

// LoginRequest is the admin login body.
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// CreateCommentRequest is the public comment form.
type CreateCommentRequest struct {
	PostSlug string `json:"postSlug" example:"hello-world" validate:"required"`
	Author   string `json:"author" example:"Ann" validate:"required"`
	Email    string `json:"email" example:"ann@example.com"`
	Content  string `json:"content" example:"Great post!" validate:"required"`
	ParentID string `json:"parentId" example:""`
}

// CommentCreatedResponse echoes a stored comment awaiting moderation.
type CommentCreatedResponse struct {
	ID       string `json:"id" validate:"required"`
	PostSlug string `json:"postSlug" validate:"required"`
	Author   string `json:"author" validate:"required"`
	Content  string `json:"content" validate:"required"`
	Approved bool   `json:"approved"`
}

// PublicComment is an approved comment as shown to readers; the email
// address is withheld.
type PublicComment struct {
	ID        string    `json:"id"`
	PostSlug  string    `json:"postSlug"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	ParentID  string    `json:"parentId,omitempty"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

func publicComment(c models.Comment) PublicComment {
	return PublicComment{
		ID:        c.ID,
		PostSlug:  c.PostSlug,
		Author:    c.Author,
		Content:   c.Content,
		ParentID:  c.ParentID,
		IsAdmin:   c.IsAdmin,
		CreatedAt: c.CreatedAt,
	}
}

// Comment is the moderation view of a comment (aliased from the domain layer).
type Comment = models.Comment

// ReplyRequest is an admin reply to a comment.
type ReplyRequest struct {
	Author  string `json:"author" example:"Admin"`
	Content string `json:"content" example:"Thanks!" validate:"required"`
}

// SubscribeRequest is the newsletter signup form.
type SubscribeRequest struct {
	Email    string `json:"email" example:"reader@example.com" validate:"required"`
	PostSlug string `json:"postSlug" example:"hello-world"`
}

// SubscribeResponse acknowledges a new subscription.
type SubscribeResponse struct {
	Success bool   `json:"success" validate:"required"`
	Message string `json:"message" validate:"required"`
	ID      string `json:"id" validate:"required"`
}

// Subscriber is a newsletter subscription (aliased from the domain layer).
type Subscriber = models.Subscriber

// OverviewResponse holds the dashboard counters.
type OverviewResponse struct {
	PostsCount       int `json:"postsCount" example:"12"`
	CommentsCount    int `json:"commentsCount" example:"40"`
	PendingComments  int `json:"pendingComments" example:"3"`
	SubscribersCount int `json:"subscribersCount" example:"250"`
}
