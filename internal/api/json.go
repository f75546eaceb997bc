package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/quill/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeJSON reads a size-limited JSON body into v. It answers 400 itself and
// returns false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// errorMessages overrides the default message per error kind.
type errorMessages struct {
	notFound string
	exists   string
}

// writeError maps a service error onto an HTTP status. Failures that are not
// the caller's fault are logged with op and attrs.
func writeError(w http.ResponseWriter, op string, err error, msgs errorMessages, attrs ...any) {
	var ve *apperr.ValidationError
	var se *apperr.StatusError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody(ve.Err.Error()))
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(orDefault(msgs.notFound, "not found")))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody(orDefault(msgs.exists, "already exists")))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("modified concurrently, reload and retry"))
	case errors.As(err, &se):
		slog.Error(op+" failed", append(attrs, slog.Int("host_status", se.Status), slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusBadGateway, errorBody("content host error"))
	default:
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
