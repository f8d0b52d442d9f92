package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/travel-journal/internal/apperror"
)

// LoginPath is where guarded routes send anonymous visitors.
const LoginPath = "/login"

// LogoutPath ends the session. It is never a redirect target after login.
const LogoutPath = "/logout"

// DefaultCookieName is the cookie that carries the session token.
const DefaultCookieName = "session"

// Identity is the per-request view of an authenticated user.
type Identity struct {
	ID       int64
	Username string
}

// IdentityLoader maps a user ID stored in a session back to an Identity.
// It returns an error wrapping apperror.ErrNotFound when the user is gone.
type IdentityLoader interface {
	LoadIdentity(ctx context.Context, userID int64) (*Identity, error)
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the logged-in identity, or (nil, false) for an
// anonymous request.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// Sessions is the session authenticator. A request is either Anonymous (no
// Identity in its context) or Authenticated; Login and Logout move a browser
// between the two by setting or clearing the cookie.
type Sessions struct {
	store  SessionStore
	users  IdentityLoader
	cookie CookieConfig
	logger *slog.Logger
}

func NewSessions(store SessionStore, users IdentityLoader, cookie CookieConfig, logger *slog.Logger) *Sessions {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	return &Sessions{
		store:  store,
		users:  users,
		cookie: cookie,
		logger: logger,
	}
}

// Middleware resolves the session cookie, if any, and stores the Identity in
// the request context. It never blocks: a missing, invalid or stale token
// just leaves the request anonymous.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := s.identify(r); id != nil {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Sessions) identify(r *http.Request) *Identity {
	cookie, err := r.Cookie(s.cookie.Name)
	if err != nil || cookie.Value == "" {
		return nil
	}

	userID, err := s.store.Resolve(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, ErrInvalidSession) {
			s.logger.Error("resolving session failed", slog.String("error", err.Error()))
		}
		return nil
	}

	id, err := s.users.LoadIdentity(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("session refers to an unknown user",
				slog.Int64("userID", userID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.Error("loading session identity failed",
				slog.Int64("userID", userID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return id
}

// RequireAuth guards a route. Anonymous requests are redirected to the login
// page with the original path in ?next= and the wrapped handler never runs.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			target := LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Login issues a session for userID and sets the cookie.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, userID int64) error {
	token, err := s.store.Issue(r.Context(), userID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout revokes the current session (when the store supports it) and
// always clears the cookie.
func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.cookie.Name); err == nil && cookie.Value != "" {
		if err := s.store.Revoke(r.Context(), cookie.Value); err != nil {
			s.logger.Error("revoking session failed", slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SafeRedirect returns next when it is a local absolute path and "/"
// otherwise, so ?next= cannot bounce a user to another site. The logout
// page is refused too, or logging in would end the new session at once.
func SafeRedirect(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return "/"
	}
	if path, _, _ := strings.Cut(next, "?"); strings.TrimSuffix(path, "/") == LogoutPath {
		return "/"
	}
	return next
}
