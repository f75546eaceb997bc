package models

import "time"

// Comment is a reader comment awaiting or past moderation.
type Comment struct {
	ID        string    `json:"id"`
	PostSlug  string    `json:"postSlug"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Content   string    `json:"content"`
	ParentID  string    `json:"parentId,omitempty"`
	Approved  bool      `json:"approved"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscriber is a newsletter subscription.
type Subscriber struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PostSlug     string    `json:"postSlug,omitempty"`
	SubscribedAt time.Time `json:"subscribedAt"`
}
