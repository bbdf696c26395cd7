/*
session.go - Session cookie issuance

PURPOSE:
  Correlates cart and wishlist state to one browsing session via an opaque
  cookie. The session identifier is a server-issued UUID, never
  client-chosen business data; handlers read it from the request context.

SECURITY NOTE:
  The cookie is HttpOnly and SameSite=Lax. There is no authentication;
  a session identifies a browser, not a customer.
*/
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const sessionCookieName = "session_id"

type contextKey int

const sessionContextKey contextKey = iota

// SessionMiddleware ensures every request carries a session identifier,
// issuing a new cookie when none is present.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
			id = c.Value
		} else {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   60 * 60 * 24 * 30,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionID returns the request's session identifier, or "" outside the
// session middleware.
func sessionID(r *http.Request) string {
	id, _ := r.Context().Value(sessionContextKey).(string)
	return id
}
