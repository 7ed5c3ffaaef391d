package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/gamelobby/internal/api/apierr"
	"github.com/mcoot/gamelobby/internal/model"
)

type contextKey string

const userContextKey contextKey = "user"

// Authenticator verifies bearer tokens
type Authenticator interface {
	Authenticate(token string) (model.UserID, error)
}

// Auth creates authentication middleware. Requests without a valid bearer
// token are rejected before reaching the handler.
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthenticatedError())
				return
			}

			userID, err := authenticator.Authenticate(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// extractToken extracts the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithUserID returns a context carrying the authenticated user
func WithUserID(ctx context.Context, userID model.UserID) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// GetUserID returns the authenticated user from the request context
func GetUserID(ctx context.Context) (model.UserID, bool) {
	userID, ok := ctx.Value(userContextKey).(model.UserID)
	return userID, ok && userID != ""
}

// MustGetUserID returns the authenticated user or panics
func MustGetUserID(ctx context.Context) model.UserID {
	userID, ok := GetUserID(ctx)
	if !ok {
		panic("no user in context - auth middleware not applied?")
	}
	return userID
}
