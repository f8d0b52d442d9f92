package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sakif/travel-journal/internal/apperror"
	"github.com/sakif/travel-journal/internal/auth"
	"github.com/sakif/travel-journal/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. Like the SQLite
// implementation it rejects duplicate usernames on insert.
type fakeUserRepo struct {
	byID       map[int64]*model.User
	byUsername map[string]*model.User
	nextID     int64

	// set to a non-nil error to simulate a database failure
	getErr    error
	createErr error
	creates   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:       make(map[int64]*model.User),
		byUsername: make(map[string]*model.User),
		nextID:     1,
	}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byUsername[user.Username]; ok {
		return apperror.DuplicateUsername(user.Username)
	}
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now().UTC()

	stored := *user
	f.byID[user.ID] = &stored
	f.byUsername[user.Username] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	result := *u
	return &result, nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byUsername[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	result := *u
	return &result, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestAuthService uses bcrypt cost 4 (the minimum) to keep tests fast.
func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()
	return NewAuthService(repo, auth.NewPasswordServiceForTest(4), newTestLogger())
}

// =========================================================================
// Register TESTS
// =========================================================================

func TestRegister_StoresHashNotPlaintext(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	user, err := svc.Register(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.ID == 0 {
		t.Error("User.ID should be set after register")
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret" {
		t.Errorf("PasswordHash = %q, want a bcrypt hash", user.PasswordHash)
	}
	if !strings.HasPrefix(user.PasswordHash, "$2") {
		t.Errorf("PasswordHash = %q, want bcrypt prefix $2", user.PasswordHash)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	first, err := svc.Register(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err = svc.Register(ctx, "alice", "other-password")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Register() error = %v, want ErrConflict", err)
	}

	// The first account is untouched and still logs in with its password.
	got, err := svc.Authenticate(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("Authenticate() after duplicate = %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("ID = %d, want %d", got.ID, first.ID)
	}
	if _, err := svc.Authenticate(ctx, "alice", "other-password"); !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Errorf("second password must not work, got err = %v", err)
	}
}

func TestRegister_UsernamesAreCaseSensitive(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "secret"); err != nil {
		t.Fatalf("Register(alice) error = %v", err)
	}
	if _, err := svc.Register(ctx, "Alice", "secret"); err != nil {
		t.Fatalf("Register(Alice) error = %v, want success", err)
	}
}

func TestRegister_ConflictFromInsertRace(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = apperror.DuplicateUsername("alice")
	svc := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), "alice", "secret")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Register() error = %v, want ErrConflict", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		password  string
		wantField string
	}{
		{"empty username", "", "secret", "username"},
		{"password over bcrypt limit", "alice", strings.Repeat("p", auth.MaxPasswordBytes+1), "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeUserRepo()
			svc := newTestAuthService(t, repo)

			_, err := svc.Register(context.Background(), tt.username, tt.password)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Register() error = %v, want validation error", err)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
			if repo.creates != 0 {
				t.Errorf("CreateUser called %d times, want 0", repo.creates)
			}
		})
	}
}

func TestRegister_PasswordAtLimitIsAccepted(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())

	pw := strings.Repeat("p", auth.MaxPasswordBytes)
	if _, err := svc.Register(context.Background(), "alice", pw); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "alice", pw); err != nil {
		t.Errorf("Authenticate() error = %v", err)
	}
}

func TestRegister_RepositoryFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.getErr = errors.New("database is locked")
	svc := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), "alice", "secret")
	if err == nil {
		t.Fatal("Register() should fail when the lookup fails")
	}
	if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Register() error = %v, want a plain infrastructure error", err)
	}
}

// =========================================================================
// Authenticate TESTS
// =========================================================================

func TestAuthenticate(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("correct password", func(t *testing.T) {
		got, err := svc.Authenticate(ctx, "alice", "secret")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if got.ID != registered.ID {
			t.Errorf("ID = %d, want %d", got.ID, registered.ID)
		}
	})

	t.Run("wrong password and unknown user fail the same way", func(t *testing.T) {
		_, wrongPw := svc.Authenticate(ctx, "alice", "wrong")
		_, noUser := svc.Authenticate(ctx, "bob", "secret")

		for _, err := range []error{wrongPw, noUser} {
			if !errors.Is(err, apperror.ErrInvalidCredentials) {
				t.Fatalf("error = %v, want ErrInvalidCredentials", err)
			}
		}
		if wrongPw.Error() != noUser.Error() {
			t.Errorf("messages differ: %q vs %q", wrongPw.Error(), noUser.Error())
		}
	})

	t.Run("username match is exact", func(t *testing.T) {
		if _, err := svc.Authenticate(ctx, "Alice", "secret"); !errors.Is(err, apperror.ErrInvalidCredentials) {
			t.Errorf("Authenticate(Alice) error = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestAuthenticate_RepositoryFailureIsNotInvalidCredentials(t *testing.T) {
	repo := newFakeUserRepo()
	repo.getErr = errors.New("disk I/O error")
	svc := newTestAuthService(t, repo)

	_, err := svc.Authenticate(context.Background(), "alice", "secret")
	if err == nil || errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Errorf("Authenticate() error = %v, want infrastructure error", err)
	}
}

// =========================================================================
// LoadIdentity / EnsureUser TESTS
// =========================================================================

func TestLoadIdentity(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	id, err := svc.LoadIdentity(ctx, user.ID)
	if err != nil {
		t.Fatalf("LoadIdentity() error = %v", err)
	}
	if id.ID != user.ID || id.Username != "alice" {
		t.Errorf("Identity = %+v, want {%d alice}", *id, user.ID)
	}

	if _, err := svc.LoadIdentity(ctx, 999); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("LoadIdentity(999) error = %v, want ErrNotFound", err)
	}
}

func TestEnsureUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	first, created, err := svc.EnsureUser(ctx, "test", "test123")
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if !created {
		t.Error("first EnsureUser() should create the user")
	}

	second, created, err := svc.EnsureUser(ctx, "test", "a-different-password")
	if err != nil {
		t.Fatalf("second EnsureUser() error = %v", err)
	}
	if created {
		t.Error("second EnsureUser() should not create a user")
	}
	if second.ID != first.ID {
		t.Errorf("ID = %d, want %d", second.ID, first.ID)
	}

	// The original password still works; the second one was ignored.
	if _, err := svc.Authenticate(ctx, "test", "test123"); err != nil {
		t.Errorf("Authenticate() error = %v", err)
	}
	if repo.creates != 1 {
		t.Errorf("CreateUser called %d times, want 1", repo.creates)
	}
}
