package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted. Reader routes
// are public; the admin group sits behind auth.Require. events, if non-nil,
// is mounted at GET /admin/events.
func NewRouter(h *Handler, auth *Auth, events http.Handler) chi.Router {
	r := chi.NewRouter()

	// Reader-facing routes.
	r.Get("/posts", h.ListPosts)
	r.Get("/posts/{slug}", h.GetPost)
	r.Get("/posts/{slug}/html", h.RenderPost)
	r.Get("/posts/{slug}/comments", h.ListPostComments)
	r.Post("/comments", h.CreateComment)
	r.Post("/subscribe", h.Subscribe)
	r.Options("/subscribe", h.SubscribePreflight)

	r.Post("/auth/login", auth.Login)
	r.Post("/auth/logout", auth.Logout)

	r.Group(func(r chi.Router) {
		r.Use(auth.Require)

		r.Post("/posts", h.CreatePost)
		r.Put("/posts/{slug}", h.UpdatePost)
		r.Delete("/posts/delete", h.DeletePostByBody)
		r.Delete("/posts/{slug}", h.DeletePost)
		r.Post("/posts/{slug}/diff", h.DiffPost)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/overview", h.Overview)

			r.Get("/comments", h.ListComments)
			r.Post("/comments/{id}/approve", h.ApproveComment)
			r.Post("/comments/{id}/reply", h.ReplyComment)
			r.Delete("/comments/{id}", h.DeleteComment)

			r.Get("/subscribers", h.ListSubscribers)
			r.Get("/subscribers/export", h.ExportSubscribers)
			r.Delete("/subscribers/{id}", h.DeleteSubscriber)

			if events != nil {
				r.Get("/events", events.ServeHTTP)
			}
		})
	})

	return r
}
