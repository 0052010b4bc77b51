// Package identity provides the stub login: username validation, user ids
// and session tokens, plus request-scoped user ids for the stub server.
package identity

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/tutor-client/internal/domain"
)

// UserIDPrefix is prepended to the username to form the user id.
const UserIDPrefix = "user_"

// ErrInvalidUsername is returned for empty or unusable usernames.
var ErrInvalidUsername = errors.New("invalid username")

type contextKey int

const userIDKey contextKey = iota

var (
	usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}._@ -]{1,64}$`)
	userIDPattern   = regexp.MustCompile(`^user_[\p{L}\p{N}._@ -]{1,64}$`)
)

// NormalizeUsername trims surrounding whitespace and validates the result.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || !usernamePattern.MatchString(username) {
		return "", ErrInvalidUsername
	}
	return username, nil
}

// UserID derives the user id for a username.
func UserID(username string) string {
	return UserIDPrefix + username
}

// NewSession builds the session record for a login. There is no real
// authentication; the token only identifies this sign-in.
func NewSession(username string, now time.Time) (*domain.Session, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		UserID:    UserID(name),
		Username:  name,
		Token:     uuid.NewString(),
		CreatedAt: now,
	}, nil
}

// IsValidUserID reports whether id looks like one produced by UserID.
func IsValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Middleware validates the {userID} route parameter and stores it in the
// request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if !IsValidUserID(userID) {
			http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
