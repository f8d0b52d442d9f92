package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "travel-journal"

// ErrInvalidSession is returned by SessionStore.Resolve for tokens that are
// malformed, tampered with, expired or revoked.
var ErrInvalidSession = errors.New("auth: invalid session")

// SessionStore maps opaque session tokens to user IDs.
type SessionStore interface {
	// Issue creates a new session for userID and returns its token.
	Issue(ctx context.Context, userID int64) (string, error)
	// Resolve returns the user ID behind a token, or ErrInvalidSession.
	Resolve(ctx context.Context, token string) (int64, error)
	// Revoke ends a session. Stores that cannot revoke treat it as a no-op.
	Revoke(ctx context.Context, token string) error
}

// TokenService is a stateless SessionStore: the token is an HS256 JWT whose
// subject is the user ID. Nothing is stored server-side, so a session lasts
// until the cookie is discarded, the token expires, or the signing secret
// changes.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

var _ SessionStore = (*TokenService)(nil)

// NewTokenService creates a TokenService. The secret must be at least 16
// bytes.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token for userID.
func (s *TokenService) Issue(_ context.Context, userID int64) (string, error) {
	return s.issueAt(userID, time.Now())
}

func (s *TokenService) issueAt(userID int64, now time.Time) (string, error) {
	c := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Resolve verifies the signature, algorithm, issuer and expiry, then returns
// the user ID from the subject claim.
func (s *TokenService) Resolve(_ context.Context, token string) (int64, error) {
	var c jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidSession, c.Subject)
	}
	return userID, nil
}

// Revoke is a no-op: a stateless token stays valid until it expires. The
// caller still clears the cookie, which is what logs the browser out.
func (s *TokenService) Revoke(context.Context, string) error {
	return nil
}
