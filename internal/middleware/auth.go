// Package middleware provides reusable HTTP middleware for the KamperHub API.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader carries the authenticated user's id. The gateway in front of
// this service validates the session token and forwards the resolved id.
const UserIDHeader = "X-User-ID"

type contextKey string

const userIDKey contextKey = "userID"

// NewAuthHandler returns a middleware that requires the X-User-ID header on
// every request and places its value in the request context. Requests
// without it are rejected with 401 and the standard error body.
func NewAuthHandler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"missing ` + UserIDHeader + ` header"}}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

// UserID returns the authenticated user id placed in ctx by NewAuthHandler,
// or "" when the request did not pass through it.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
