package googleauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/datachat-app/google-auth/logging"
	"github.com/datachat-app/google-auth/session"
	"github.com/datachat-app/google-auth/utils"
)

// RegisterRoutes mounts the authentication endpoints on mux.
func (a *Authenticator) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/login", a.handleLogin)
	mux.HandleFunc("GET /auth/callback", a.handleCallback)
	mux.HandleFunc("GET /auth/logout", a.handleLogout)
	mux.HandleFunc("GET /auth/whoami", a.handleWhoAmI)
}

func (a *Authenticator) handleLogin(rw http.ResponseWriter, req *http.Request) {
	redirectAfter := req.URL.Query().Get("redirect_uri")

	redirectAfter, err := utils.ValidateRedirectUri(redirectAfter, a.Config.ValidPostLoginRedirectUris)
	if err != nil {
		a.logger.Log(logging.LevelWarn, "Login request with invalid redirect_uri rejected")
		writeJSONError(rw, http.StatusBadRequest, "invalid_request", "invalid redirect_uri")
		return
	}
	if redirectAfter == "" {
		redirectAfter = a.Config.PostLoginRedirectUri
	}

	authURL, err := a.BuildAuthorizationURL(redirectAfter)
	if err != nil {
		a.logger.Log(logging.LevelError, "Failed to build authorization URL: %s", err.Error())
		writeJSONError(rw, http.StatusInternalServerError, "server_error", "could not start authorization")
		return
	}

	http.Redirect(rw, req, authURL, http.StatusFound)
}

func (a *Authenticator) handleCallback(rw http.ResponseWriter, req *http.Request) {
	sess, redirectURL, err := a.HandleCallback(req.URL.Query())
	if err != nil {
		writeAuthError(rw, err)
		return
	}

	encryptedID, err := utils.Encrypt(sess.ID, a.Config.Secret)
	if err != nil {
		a.logger.Log(logging.LevelError, "Failed to encrypt session cookie: %s", err.Error())
		writeJSONError(rw, http.StatusInternalServerError, "server_error", "could not establish session")
		return
	}

	http.SetCookie(rw, a.sessionCookie(encryptedID, sess.ExpiresAt))

	if redirectURL == "" {
		redirectURL = a.Config.PostLoginRedirectUri
	}
	http.Redirect(rw, req, redirectURL, http.StatusFound)
}

func (a *Authenticator) handleLogout(rw http.ResponseWriter, req *http.Request) {
	if id, ok := a.sessionIDFromRequest(req); ok {
		if err := a.Sessions.Invalidate(id); err != nil {
			a.logger.Log(logging.LevelWarn, "Failed to invalidate session: %s", err.Error())
		}
	}

	// Clearing the cookie is unconditional; logging out twice is fine.
	cookie := a.sessionCookie("", time.Time{})
	cookie.Expires = time.Now().Add(-24 * time.Hour)
	cookie.MaxAge = -1
	http.SetCookie(rw, cookie)

	http.Redirect(rw, req, a.Config.PostLogoutRedirectUri, http.StatusFound)
}

func (a *Authenticator) handleWhoAmI(rw http.ResponseWriter, req *http.Request) {
	id, ok := a.sessionIDFromRequest(req)
	if !ok {
		writeJSONError(rw, http.StatusUnauthorized, "not_authenticated", "no session")
		return
	}

	identity, err := a.Sessions.Lookup(id)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrExpired):
			writeJSONError(rw, http.StatusUnauthorized, "session_expired", "session expired, log in again")
		case errors.Is(err, session.ErrNotFound):
			writeJSONError(rw, http.StatusUnauthorized, "not_authenticated", "no session")
		default:
			a.logger.Log(logging.LevelError, "Session lookup failed: %s", err.Error())
			writeJSONError(rw, http.StatusInternalServerError, "server_error", "session lookup failed")
		}
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(identity)
}

// sessionIDFromRequest reads and decrypts the session cookie. A cookie that
// fails to decrypt is treated as absent; it cannot name a real session.
func (a *Authenticator) sessionIDFromRequest(req *http.Request) (string, bool) {
	cookie, err := req.Cookie(a.Config.CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	id, err := utils.Decrypt(cookie.Value, a.Config.Secret)
	if err != nil {
		return "", false
	}
	return id, true
}

func (a *Authenticator) sessionCookie(value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     a.Config.CookieName,
		Value:    value,
		Path:     "/",
		Secure:   a.Config.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		cookie.Expires = expires
	}
	return cookie
}

// writeAuthError maps the error taxonomy onto status codes so the hosting
// UI can distinguish "show login again", "show denied" and "transient
// provider problem, retry".
func writeAuthError(rw http.ResponseWriter, err error) {
	authErr := &AuthError{}
	if !errors.As(err, &authErr) {
		writeJSONError(rw, http.StatusInternalServerError, "server_error", "authentication failed")
		return
	}

	switch authErr.Kind {
	case AuthErrorDenied:
		writeJSONError(rw, http.StatusForbidden, string(authErr.Kind), authErr.Reason)
	case AuthErrorExchangeFailed:
		writeJSONError(rw, http.StatusBadGateway, string(authErr.Kind), "token exchange failed, try logging in again")
	default:
		writeJSONError(rw, http.StatusBadRequest, string(authErr.Kind), "authorization attempt is no longer valid, restart the login flow")
	}
}

func writeJSONError(rw http.ResponseWriter, status int, code string, description string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}
