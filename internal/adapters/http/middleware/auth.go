package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	sessionStore "rancho/internal/adapters/storage/session"
	domainSession "rancho/internal/domain/session"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const sessionContextKey contextKey = "session"

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "rancho_session"

// SecureCookies marks session cookies Secure. Set in production.
var SecureCookies = false

// Auth returns middleware that loads the session named by the cookie into the request context.
// It does NOT block anonymous requests; use RequireAuth for that.
// A failing session backend degrades to anonymous.
func Auth(sessions sessionStore.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err == nil && cookie.Value != "" {
				sess, err := sessions.Get(r.Context(), cookie.Value)
				switch {
				case err == nil:
					r = r.WithContext(ContextWithSession(r.Context(), sess))
				case errors.Is(err, domainSession.ErrNotFound):
					ClearSessionCookie(w)
				default:
					slog.Error("session_lookup_failed", "error", err)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth redirects anonymous requests to /login.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthenticated(r.Context()) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSessionFromContext extracts the session from the request context.
func GetSessionFromContext(ctx context.Context) (domainSession.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(domainSession.Session)
	return sess, ok
}

// IsAuthenticated reports whether the request carries an authenticated session.
func IsAuthenticated(ctx context.Context) bool {
	sess, ok := GetSessionFromContext(ctx)
	return ok && sess.Authenticated
}

// ContextWithSession returns a context with the given session set.
func ContextWithSession(ctx context.Context, sess domainSession.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SetSessionCookie writes the session token cookie, expiring with the session.
func SetSessionCookie(w http.ResponseWriter, sess domainSession.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.Token,
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		Expires:  sess.ExpiresAt,
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
