package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"rancho/internal/adapters/http/middleware"
	"rancho/internal/application/orchestrators"
	"rancho/internal/application/projections"
)

// loginFailedMessage is shown when the submitted password is wrong.
const loginFailedMessage = "Senha incorreta!"

// menuPage is the data for the public listing.
type menuPage struct {
	Menu projections.GetMenuResult
}

// loginPage is the data for the login form.
type loginPage struct {
	Error string
}

// handleIndex renders the public menu.
func handleIndex(w http.ResponseWriter, r *http.Request) {
	menu, err := projections.QueryGetMenu(r.Context(), projections.GetMenuQuery{}, projections.GetMenuDeps{
		ItemStore: stores.ItemStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	renderTemplate(w, r, "index.html", menuPage{Menu: menu})
}

// handleLoginForm renders the password form, or skips it for an authenticated session.
func handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if middleware.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	renderTemplate(w, r, "login.html", loginPage{})
}

// handleLogin checks the submitted senha and opens an authenticated session.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	var previous string
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		previous = sess.Token
	}

	sess, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Password:      r.PostFormValue("senha"),
		PreviousToken: previous,
		RemoteAddr:    r.RemoteAddr,
	}, orchestrators.LoginDeps{
		Secret:     opts.Secret,
		Sessions:   stores.SessionStore,
		Mailer:     opts.Mailer,
		AlertEmail: opts.AlertEmail,
		TTL:        opts.SessionTTL,
		Now:        timeNow,
	})
	if errors.Is(err, orchestrators.ErrInvalidSecret) {
		renderTemplateStatus(w, r, http.StatusUnauthorized, "login.html", loginPage{Error: loginFailedMessage})
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}

	middleware.SetSessionCookie(w, sess)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleLogout destroys the session and returns to the public menu.
func handleLogout(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		token = cookie.Value
	}
	if err := orchestrators.ExecuteLogout(r.Context(), orchestrators.LogoutInput{Token: token}, orchestrators.LogoutDeps{
		Sessions: stores.SessionStore,
	}); err != nil {
		internalError(w, err)
		return
	}
	middleware.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleHealthz reports liveness and database reachability.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if opts.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := opts.Ping(ctx); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
