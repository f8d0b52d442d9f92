package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/travel-journal/internal/apperror"
	"github.com/sakif/travel-journal/internal/auth"
	"github.com/sakif/travel-journal/internal/model"
	"github.com/sakif/travel-journal/internal/view"
)

// AuthService is the part of *service.AuthService the handlers use.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
}

// SessionManager starts and ends browser sessions. *auth.Sessions
// satisfies it.
type SessionManager interface {
	Login(w http.ResponseWriter, r *http.Request, userID int64) error
	Logout(w http.ResponseWriter, r *http.Request)
}

// AuthHandler serves the login, registration and logout pages.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLoginForm / HandleLogin       → GET/POST /login
//   - HandleRegisterForm / HandleRegister → GET/POST /register
//   - HandleLogout                        → GET /logout
type AuthHandler struct {
	users    AuthService
	sessions SessionManager
	views    Renderer
	logger   *slog.Logger
}

func NewAuthHandler(users AuthService, sessions SessionManager, views Renderer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		views:    views,
		logger:   logger,
	}
}

// HandleLoginForm renders the login form. A ?next= left by the login guard
// is carried through to the form's action.
//
// HTTP: GET /login
func (h *AuthHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	page := newPage(r, "Log in")
	page.Next = r.URL.Query().Get("next")
	h.views.Render(w, http.StatusOK, view.PageLogin, page)
}

// HandleLogin checks the submitted credentials. On success it starts a
// session and redirects to ?next= (local paths only) or home. On failure
// the form comes back with a single message that does not reveal whether
// the username exists.
//
// HTTP: POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderError(w, r, h.views, h.logger, apperror.ValidationFailed("", "the submitted form could not be read"))
		return
	}
	username := r.PostForm.Get("username")
	next := r.Form.Get("next")

	user, err := h.users.Authenticate(r.Context(), username, r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidCredentials) {
			h.logger.Info("login failed", slog.String("username", username))

			page := newPage(r, "Log in")
			page.Error = userMessage(err)
			page.Form = url.Values{"username": {username}}
			page.Next = next
			h.views.Render(w, http.StatusUnauthorized, view.PageLogin, page)
			return
		}
		renderError(w, r, h.views, h.logger, err)
		return
	}

	if err := h.sessions.Login(w, r, user.ID); err != nil {
		renderError(w, r, h.views, h.logger, err)
		return
	}

	h.logger.Info("user logged in", slog.Int64("userID", user.ID))
	http.Redirect(w, r, auth.SafeRedirect(next), http.StatusFound)
}

// HandleRegisterForm renders the registration form.
//
// HTTP: GET /register
func (h *AuthHandler) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, http.StatusOK, view.PageRegister, newPage(r, "Register"))
}

// HandleRegister creates an account and logs the new user straight in.
//
// HTTP: POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderError(w, r, h.views, h.logger, apperror.ValidationFailed("", "the submitted form could not be read"))
		return
	}
	username := r.PostForm.Get("username")

	user, err := h.users.Register(r.Context(), username, r.PostForm.Get("password"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusConflict || status == http.StatusBadRequest {
			page := newPage(r, "Register")
			page.Error = userMessage(err)
			page.Form = url.Values{"username": {username}}
			h.views.Render(w, status, view.PageRegister, page)
			return
		}
		renderError(w, r, h.views, h.logger, err)
		return
	}

	if err := h.sessions.Login(w, r, user.ID); err != nil {
		renderError(w, r, h.views, h.logger, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout ends the session and redirects home.
//
// HTTP: GET /logout (login required)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}
