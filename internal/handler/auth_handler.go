package handler

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"net/http"
	"time"

	"go-directory-wiki/internal/auth"
	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/session"
)

const stateCookie = "oidc_state"

// AuthHandler holds the dependencies for the authentication handlers.
type AuthHandler struct {
	auth    *auth.Authenticator
	session session.Manager
	log     logger.Logger
}

// NewAuthHandler creates a new AuthHandler. a may be nil when no identity
// provider is configured; login is then unavailable.
func NewAuthHandler(a *auth.Authenticator, sm session.Manager, log logger.Logger) *AuthHandler {
	return &AuthHandler{auth: a, session: sm, log: log}
}

// handleLogin redirects the user to the OIDC provider to log in.
// It uses a random 'state' string for CSRF protection.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		http.Error(w, "Login is not configured", http.StatusNotFound)
		return
	}
	state, err := randString(16)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(10 * time.Minute / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
	})
	http.Redirect(w, r, h.auth.AuthCodeURL(state), http.StatusFound)
}

// handleCallback completes the code exchange and stores the verified subject
// in the session.
func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		http.Error(w, "Login is not configured", http.StatusNotFound)
		return
	}
	state, err := r.Cookie(stateCookie)
	if err != nil {
		http.Error(w, "state cookie not found", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != state.Value {
		http.Error(w, "state did not match", http.StatusBadRequest)
		return
	}

	identity, err := h.auth.Identify(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.log.Error(err, "OIDC login failed")
		http.Error(w, "Login failed", http.StatusUnauthorized)
		return
	}

	// New token on privilege change.
	if err := h.session.RenewToken(r.Context()); err != nil {
		h.log.Error(err, "Failed to renew session token")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.session.Put(r.Context(), session.SubjectKey, identity.Subject)
	h.log.With(map[string]interface{}{"subject": identity.Subject, "email": identity.Email}).Info("User logged in")

	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout ends the session.
func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Destroy(r.Context()); err != nil {
		h.log.Error(err, "Failed to destroy session")
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// randString is a helper function to generate a random string for the 'state' parameter.
func randString(nByte int) (string, error) {
	b := make([]byte, nByte)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
