package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/travel-journal/internal/apperror"
)

type fakeLoader map[int64]string

func (f fakeLoader) LoadIdentity(_ context.Context, id int64) (*Identity, error) {
	name, ok := f[id]
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return &Identity{ID: id, Username: name}, nil
}

// revokingStore wraps TokenService and remembers revoked tokens, standing in
// for a server-side store.
type revokingStore struct {
	*TokenService
	revoked map[string]bool
}

func (s *revokingStore) Resolve(ctx context.Context, token string) (int64, error) {
	if s.revoked[token] {
		return 0, ErrInvalidSession
	}
	return s.TokenService.Resolve(ctx, token)
}

func (s *revokingStore) Revoke(_ context.Context, token string) error {
	s.revoked[token] = true
	return nil
}

func newTestSessions(t *testing.T, users fakeLoader) (*Sessions, *revokingStore) {
	t.Helper()
	store := &revokingStore{TokenService: newTestTokenService(t), revoked: map[string]bool{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSessions(store, users, CookieConfig{MaxAge: time.Hour}, logger), store
}

// whoami echoes the identity the middleware attached.
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if id, ok := IdentityFromContext(r.Context()); ok {
		io.WriteString(w, id.Username)
		return
	}
	io.WriteString(w, "anonymous")
})

func loginCookie(t *testing.T, s *Sessions, userID int64) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	require.NoError(t, s.Login(rr, httptest.NewRequest(http.MethodPost, "/login", nil), userID))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestLogin_SetsHttpOnlyCookie(t *testing.T) {
	s, _ := newTestSessions(t, fakeLoader{1: "alice"})

	c := loginCookie(t, s, 1)

	assert.Equal(t, DefaultCookieName, c.Name)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestMiddleware(t *testing.T) {
	s, _ := newTestSessions(t, fakeLoader{1: "alice"})
	valid := loginCookie(t, s, 1)
	orphan := loginCookie(t, s, 99) // user 99 is not known to the loader

	tests := []struct {
		name   string
		cookie *http.Cookie
		want   string
	}{
		{"no cookie", nil, "anonymous"},
		{"valid session", valid, "alice"},
		{"tampered token", &http.Cookie{Name: DefaultCookieName, Value: valid.Value + "x"}, "anonymous"},
		{"unknown user", orphan, "anonymous"},
		{"empty value", &http.Cookie{Name: DefaultCookieName, Value: ""}, "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rr := httptest.NewRecorder()

			s.Middleware(whoami).ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Body.String())
		})
	}
}

type brokenLoader struct{ err error }

func (b brokenLoader) LoadIdentity(context.Context, int64) (*Identity, error) {
	return nil, b.err
}

func TestMiddleware_IdentityLoadLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
	}{
		{"user deleted", apperror.NotFound("user", "1"), "level=WARN"},
		{"database down", errors.New("sql: database is closed"), "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			store := newTestTokenService(t)
			s := NewSessions(store, brokenLoader{err: tt.err}, CookieConfig{MaxAge: time.Hour},
				slog.New(slog.NewTextHandler(&logs, nil)))

			token, err := store.Issue(context.Background(), 1)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})
			rr := httptest.NewRecorder()
			s.Middleware(whoami).ServeHTTP(rr, req)

			assert.Equal(t, "anonymous", rr.Body.String())
			assert.Contains(t, logs.String(), tt.wantLevel)
		})
	}
}

func TestRequireAuth_AnonymousIsRedirected(t *testing.T) {
	s, _ := newTestSessions(t, fakeLoader{})
	called := false
	guarded := s.RequireAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	s.Middleware(guarded).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/add", nil))

	assert.False(t, called, "guarded handler must not run for anonymous requests")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?next=%2Fadd", rr.Header().Get("Location"))
}

func TestRequireAuth_AuthenticatedPassesThrough(t *testing.T) {
	s, _ := newTestSessions(t, fakeLoader{1: "alice"})
	req := httptest.NewRequest(http.MethodGet, "/add", nil)
	req.AddCookie(loginCookie(t, s, 1))
	rr := httptest.NewRecorder()

	s.Middleware(s.RequireAuth(whoami)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", rr.Body.String())
}

func TestLogout_ClearsCookieAndRevokes(t *testing.T) {
	s, store := newTestSessions(t, fakeLoader{1: "alice"})
	session := loginCookie(t, s, 1)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(session)
	rr := httptest.NewRecorder()
	s.Logout(rr, req)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
	assert.True(t, store.revoked[session.Value])

	// A replayed cookie is now anonymous.
	replay := httptest.NewRequest(http.MethodGet, "/", nil)
	replay.AddCookie(session)
	rr = httptest.NewRecorder()
	s.Middleware(whoami).ServeHTTP(rr, replay)
	assert.Equal(t, "anonymous", rr.Body.String())
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/add":                 "/add",
		"/trip/3?x=1":          "/trip/3?x=1",
		"https://evil.example": "/",
		"//evil.example/path":  "/",
		`/\evil.example`:       "/",
		"relative/path":        "/",
		"/logout":              "/",
		"/logout/":             "/",
		"/logout?x=1":          "/",
		"/logouts":             "/logouts",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeRedirect(in), "SafeRedirect(%q)", in)
	}
}
