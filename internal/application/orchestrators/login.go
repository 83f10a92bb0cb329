package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"rancho/internal/adapters/email"
	"rancho/internal/domain/credential"
	"rancho/internal/domain/session"
)

// SessionStoreForAuth defines the session store interface needed by login and logout.
type SessionStoreForAuth interface {
	Save(ctx context.Context, s session.Session) error
	Delete(ctx context.Context, token string) error
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Password      string
	PreviousToken string // cookie token presented with the form, if any
	RemoteAddr    string
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	Secret     credential.Secret
	Sessions   SessionStoreForAuth
	Mailer     email.Sender // nil disables the login alert
	AlertEmail string
	TTL        time.Duration
	Now        func() time.Time
}

// ErrInvalidSecret is returned for any password that does not match the admin secret.
var ErrInvalidSecret = errors.New("senha incorreta")

// ExecuteLogin checks the submitted password and opens an authenticated session.
// PRE: deps.Secret is configured; deps.TTL > 0
// POST: on success a fresh session is saved and the previous token (if any) is revoked
// INVARIANT: a session token is never promoted in place; login always issues a new one
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (session.Session, error) {
	if !deps.Secret.Verify(input.Password) {
		slog.Info("auth_event", "event", "login_failed", "remote_addr", input.RemoteAddr)
		return session.Session{}, ErrInvalidSecret
	}

	if input.PreviousToken != "" {
		if err := deps.Sessions.Delete(ctx, input.PreviousToken); err != nil {
			slog.Warn("auth_event", "event", "previous_session_delete_failed", "error", err)
		}
	}

	now := deps.Now()
	sess, err := session.New(now, deps.TTL, true)
	if err != nil {
		return session.Session{}, fmt.Errorf("login: %w", err)
	}
	if err := deps.Sessions.Save(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("login: save session: %w", err)
	}

	slog.Info("auth_event", "event", "login_success", "remote_addr", input.RemoteAddr)
	sendLoginAlert(ctx, input, deps, now)
	return sess, nil
}

// sendLoginAlert notifies the owner of a successful admin login. Failures are logged only.
func sendLoginAlert(ctx context.Context, input LoginInput, deps LoginDeps, at time.Time) {
	if deps.Mailer == nil || deps.AlertEmail == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	body := fmt.Sprintf(
		"<p>Login no painel do Rancho em %s.</p><p>Endereço: %s</p>",
		at.Format("02/01/2006 15:04:05"),
		html.EscapeString(input.RemoteAddr),
	)
	if _, err := deps.Mailer.Send(ctx, email.Message{
		To:      []string{deps.AlertEmail},
		Subject: "Rancho: novo login no painel",
		HTML:    body,
	}); err != nil {
		slog.Error("auth_event", "event", "login_alert_failed", "error", err)
	}
}

// LogoutInput carries input for the logout orchestrator.
type LogoutInput struct {
	Token string
}

// LogoutDeps holds dependencies for Logout.
type LogoutDeps struct {
	Sessions SessionStoreForAuth
}

// ExecuteLogout destroys the session behind token. An empty or unknown token is not an error.
// PRE: none
// POST: token no longer resolves to a session
func ExecuteLogout(ctx context.Context, input LogoutInput, deps LogoutDeps) error {
	if input.Token == "" {
		return nil
	}
	if err := deps.Sessions.Delete(ctx, input.Token); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	slog.Info("auth_event", "event", "logout")
	return nil
}
