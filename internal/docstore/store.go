// Package docstore persists reader comments and newsletter subscribers.
// Backends: SQLite for single-node deployments and Redis for shared ones.
package docstore

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
)

// Comment filter statuses.
const (
	StatusAll      = "all"
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// CommentFilter narrows ListComments.
type CommentFilter struct {
	Status   string
	PostSlug string
}

// Match reports whether c passes the filter.
func (f CommentFilter) Match(c models.Comment) bool {
	if f.PostSlug != "" && c.PostSlug != f.PostSlug {
		return false
	}
	switch f.Status {
	case StatusPending:
		return !c.Approved
	case StatusApproved:
		return c.Approved
	}
	return true
}

// Store is the comment and subscriber document store.
type Store interface {
	// CreateComment assigns an id and creation time and stores c.
	CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error)
	// ListComments returns matching comments, newest first.
	ListComments(ctx context.Context, f CommentFilter) ([]models.Comment, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	ApproveComment(ctx context.Context, id string) error
	DeleteComment(ctx context.Context, id string) error
	CountComments(ctx context.Context) (total, pending int, err error)

	// AddSubscriber stores s. A second subscription for the same email,
	// compared case-insensitively, fails with apperr.ErrAlreadyExists.
	AddSubscriber(ctx context.Context, s models.Subscriber) (*models.Subscriber, error)
	// ListSubscribers returns all subscribers, newest first.
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)
	DeleteSubscriber(ctx context.Context, id string) error
	CountSubscribers(ctx context.Context) (int, error)

	Close() error
}

func validFilterStatus(s string) bool {
	return s == "" || s == StatusAll || s == StatusPending || s == StatusApproved
}

// prepareComment validates c and fills in id and timestamp.
func prepareComment(c models.Comment, now time.Time) (models.Comment, error) {
	c.PostSlug = strings.TrimSpace(c.PostSlug)
	c.Author = strings.TrimSpace(c.Author)
	c.Email = strings.TrimSpace(c.Email)
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.PostSlug, validation.Required),
		validation.Field(&c.Author, validation.Required, validation.Length(1, 100)),
		validation.Field(&c.Content, validation.Required, validation.Length(1, 5000)),
		validation.Field(&c.Email, is.EmailFormat),
	); err != nil {
		return c, apperr.Invalid(err)
	}
	c.ID = uuid.NewString()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

// prepareSubscriber validates s and fills in id and timestamp.
func prepareSubscriber(s models.Subscriber, now time.Time) (models.Subscriber, error) {
	s.Email = strings.TrimSpace(s.Email)
	s.PostSlug = strings.TrimSpace(s.PostSlug)
	if err := validation.ValidateStruct(&s,
		validation.Field(&s.Email, validation.Required, is.EmailFormat),
	); err != nil {
		return s, apperr.Invalid(err)
	}
	s.ID = uuid.NewString()
	if s.SubscribedAt.IsZero() {
		s.SubscribedAt = now
	}
	s.SubscribedAt = s.SubscribedAt.UTC()
	return s, nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
