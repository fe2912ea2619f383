package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/drive-tagger/internal/domain"
	"github.com/msomdec/drive-tagger/internal/service"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 600 // 10 minutes
)

// AuthHandler handles the sign-in flow.
type AuthHandler struct {
	auth         *service.AuthService
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, cookieSecure: cookieSecure}
}

// HandleLogin starts the OAuth flow.
// GET /auth/login
// Response: 302 to the identity provider, with the state in a cookie.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	redirectURL, state := h.auth.BeginLogin()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   stateCookieTTL,
	})
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// HandleCallback completes the OAuth flow.
// GET /auth/callback?code=...&state=...
// Response: 303 to / with the auth_token cookie set.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	var expected string
	if c, err := r.Cookie(stateCookieName); err == nil {
		expected = c.Value
	}
	// The state is single use.
	h.clearCookie(w, stateCookieName, "/auth")

	session, token, err := h.auth.CompleteLogin(r.Context(), r.URL, expected)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			slog.Warn("sign-in refused", "error", err)
		}
		writeServiceError(w, "complete login", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.auth.SessionTTL().Seconds()),
	})
	slog.Info("signed in", "email", session.Email)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout deletes the session and clears the auth cookie.
// POST /auth/logout
// Response: 204 No Content
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(authCookieName); err == nil {
		if sessionID, err := h.auth.ValidateToken(c.Value); err == nil {
			if err := h.auth.Logout(r.Context(), sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				slog.Error("delete session", "error", err)
			}
		}
	}

	h.clearCookie(w, authCookieName, "/")
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the signed-in account.
// GET /api/me
// Response: {"email": "..."}
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		writeError(w, http.StatusUnauthorized, "Not signed in.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email":     session.Email,
		"expiresAt": session.ExpiresAt,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
