package api

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/sse"
)

// csvTimeLayout matches JavaScript's Date.prototype.toISOString.
const csvTimeLayout = "2006-01-02T15:04:05.000Z07:00"

var subscriberMessages = errorMessages{
	notFound: "Subscriber not found",
	exists:   "Email already subscribed",
}

// allowCORS lets the signup form post from any origin.
func allowCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

// SubscribePreflight handles OPTIONS /api/subscribe.
func (h *Handler) SubscribePreflight(w http.ResponseWriter, _ *http.Request) {
	allowCORS(w)
	w.WriteHeader(http.StatusOK)
}

// Subscribe handles POST /api/subscribe.
//
//	@Summary		Subscribe an email address to the newsletter
//	@Tags			subscribers
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SubscribeRequest	true	"Signup"
//	@Success		201		{object}	SubscribeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/subscribe [post]
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	allowCORS(w)
	var req SubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.store.AddSubscriber(r.Context(), models.Subscriber{Email: req.Email, PostSlug: req.PostSlug})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalid) {
			writeJSON(w, http.StatusBadRequest, errorBody("Valid email is required"))
			return
		}
		writeError(w, "subscribe", err, subscriberMessages)
		return
	}
	h.publish(sse.KindCreated, sse.SubjectSubscriber, s.ID)
	writeJSON(w, http.StatusCreated, SubscribeResponse{
		Success: true,
		Message: "Successfully subscribed to the newsletter!",
		ID:      s.ID,
	})
}

// ListSubscribers handles GET /api/admin/subscribers.
//
//	@Summary		List newsletter subscribers, newest first
//	@Tags			admin
//	@Produce		json
//	@Success		200	{array}	Subscriber
//	@Security		BearerAuth
//	@Router			/admin/subscribers [get]
func (h *Handler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ListSubscribers(r.Context())
	if err != nil {
		writeError(w, "list subscribers", err, subscriberMessages)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// DeleteSubscriber handles DELETE /api/admin/subscribers/{id}.
//
//	@Summary		Remove a subscriber
//	@Tags			admin
//	@Produce		json
//	@Param			id	path		string	true	"Subscriber id"
//	@Success		200	{object}	SuccessResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/subscribers/{id} [delete]
func (h *Handler) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteSubscriber(r.Context(), id); err != nil {
		writeError(w, "delete subscriber", err, subscriberMessages, slog.String("id", id))
		return
	}
	h.publish(sse.KindDeleted, sse.SubjectSubscriber, id)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ExportSubscribers handles GET /api/admin/subscribers/export.
//
//	@Summary		Download subscribers as CSV
//	@Tags			admin
//	@Produce		text/csv
//	@Success		200	{file}	file
//	@Security		BearerAuth
//	@Router			/admin/subscribers/export [get]
func (h *Handler) ExportSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ListSubscribers(r.Context())
	if err != nil {
		writeError(w, "export subscribers", err, subscriberMessages)
		return
	}

	name := "subscribers-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Email", "Subscribed From Post", "Subscription Date"})
	for _, s := range subs {
		date := "N/A"
		if !s.SubscribedAt.IsZero() {
			date = s.SubscribedAt.UTC().Format(csvTimeLayout)
		}
		_ = cw.Write([]string{orDefault(s.Email, "N/A"), orDefault(s.PostSlug, "N/A"), date})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.Error("export subscribers failed", slog.String("error", err.Error()))
	}
}
