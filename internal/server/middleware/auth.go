// Package middleware provides HTTP middleware for authentication and authorization.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// subjectKey is the context key for the authenticated token subject.
const subjectKey ContextKey = "subject"

// ErrNoSubject is returned when a request carries no authenticated subject.
var ErrNoSubject = errors.New("subject not found in request context")

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (SubjectGetter, error)
}

// SubjectGetter exposes the subject of validated token claims.
type SubjectGetter interface {
	GetSubject() (string, error)
}

// RequireBearer rejects requests without a valid bearer token and stores the
// token subject in the request context.
func RequireBearer(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(tokenString)
			if err != nil {
				unauthorized(w)
				return
			}
			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

//nolint:errcheck // response already committed
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}

// Subject returns the authenticated subject from the request context.
func Subject(r *http.Request) (string, error) {
	subject, ok := r.Context().Value(subjectKey).(string)
	if !ok || subject == "" {
		return "", ErrNoSubject
	}
	return subject, nil
}
