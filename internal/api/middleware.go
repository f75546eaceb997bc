// Package api implements the quill REST API using chi.
package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
)

// SessionCookie is the name of the admin session cookie.
const SessionCookie = "admin-session"

const sessionAuthKey = "authenticated"

// AuthConfig configures admin access.
//
// When Enabled is false every admin route is open, which suits local
// development. Otherwise a request needs either the Bearer token or a
// session cookie issued by Login.
type AuthConfig struct {
	Enabled       bool
	Token         string
	AdminPassword string
	// SessionSecret signs the session cookie. Sessions are unavailable
	// without it.
	SessionSecret string
	SessionTTL    time.Duration
	SecureCookie  bool
}

// Auth guards admin routes and serves login and logout.
type Auth struct {
	enabled  bool
	token    string
	password string
	sessions sessions.Store
}

// NewAuth builds an Auth from cfg.
func NewAuth(cfg AuthConfig) *Auth {
	a := &Auth{
		enabled:  cfg.Enabled,
		token:    cfg.Token,
		password: cfg.AdminPassword,
	}
	if cfg.SessionSecret != "" {
		ttl := cfg.SessionTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
		store.Options = &sessions.Options{
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			Secure:   cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		}
		a.sessions = store
	}
	return a
}

// Require returns middleware that admits only authenticated admin requests.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled || a.bearerOK(r) || a.sessionOK(r) {
			next.ServeHTTP(w, r)
			return
		}
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
	})
}

func (a *Auth) bearerOK(r *http.Request) bool {
	if a.token == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(auth, "Bearer ")), []byte(a.token)) == 1
}

func (a *Auth) sessionOK(r *http.Request) bool {
	if a.sessions == nil {
		return false
	}
	s, err := a.sessions.Get(r, SessionCookie)
	if err != nil {
		return false
	}
	ok, _ := s.Values[sessionAuthKey].(bool)
	return ok
}

// Login handles POST /api/auth/login.
//
//	@Summary		Exchange the admin password for a session cookie
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest	true	"Credentials"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Router			/auth/login [post]
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("Password is required"))
		return
	}
	if a.password == "" || a.sessions == nil {
		slog.Error("admin login attempted but no admin password is configured")
		writeJSON(w, http.StatusUnauthorized, errorBody("Invalid password"))
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.password)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorBody("Invalid password"))
		return
	}

	// A stale or foreign cookie fails to decode; a fresh session replaces it.
	s, _ := a.sessions.New(r, SessionCookie)
	s.Values[sessionAuthKey] = true
	if err := s.Save(r, w); err != nil {
		slog.Error("save session failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Logout handles POST /api/auth/logout.
//
//	@Summary		Clear the admin session cookie
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	SuccessResponse
//	@Router			/auth/logout [post]
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if a.sessions != nil {
		s, _ := a.sessions.New(r, SessionCookie)
		s.Options.MaxAge = -1
		if err := s.Save(r, w); err != nil {
			slog.Error("clear session failed", slog.String("error", err.Error()))
		}
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
