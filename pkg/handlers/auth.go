// Package handlers contains the HTTP handlers for Camelot-Organizer-Go. This
// file groups authentication helpers and the OAuth login, callback and logout
// endpoints. The Spotify token and user ID are kept in HMAC signed cookies;
// nothing about the session is stored server side. CSRF protection is
// implemented using a random token stored in a cookie which clients must echo
// back in the `X-CSRF-Token` header (or a `csrf_token` form field) for all
// state changing requests.
package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"Camelot-Organizer-Go/pkg/music"
)

const (
	userCookie  = "spotify_user_id"
	tokenCookie = "spotify_token"
	stateCookie = "oauth_state"
	csrfCookie  = "csrf_token"
	csrfHeader  = "X-CSRF-Token"
)

var errSessionExpired = errors.New("session expired")

// signValue computes an HMAC signature for value and appends it using the
// format value|signature. The signature is base64 URL encoded so it can be
// safely stored in cookies.
func signValue(value string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return value + "|" + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verifyValue checks the HMAC signature appended to signed. It returns the
// original value and true when the signature matches the provided key.
func verifyValue(signed string, key []byte) (string, bool) {
	i := strings.LastIndexByte(signed, '|')
	if i < 0 {
		return "", false
	}
	value, encoded := signed[:i], signed[i+1:]
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	sig, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || !hmac.Equal(mac.Sum(nil), sig) {
		return "", false
	}
	return value, true
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// setCSRFToken generates a new random token and sets it in a cookie. The
// cookie is not HttpOnly so client-side scripts can read the value and attach
// it to subsequent requests.
func setCSRFToken(w http.ResponseWriter, secure bool) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookie,
		Value:    token,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// csrfToken returns the token from the request cookie, issuing a new one when
// the cookie is missing.
func csrfToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(csrfCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return setCSRFToken(w, r.TLS != nil)
}

// verifyCSRF compares the X-CSRF-Token header, or the csrf_token form field
// for HTML forms, with the csrf_token cookie in constant time.
func verifyCSRF(r *http.Request) bool {
	c, err := r.Cookie(csrfCookie)
	if err != nil || c.Value == "" {
		return false
	}
	sent := r.Header.Get(csrfHeader)
	if sent == "" {
		sent = r.PostFormValue("csrf_token")
	}
	if sent == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(sent)) == 1
}

// userFromCookie returns the verified Spotify user ID from the request cookie.
// An error is returned when the cookie is missing or has been tampered with.
func (app *Application) userFromCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(userCookie)
	if err != nil {
		return "", err
	}
	if v, ok := verifyValue(c.Value, app.SignKey); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("invalid signature")
}

// tokenFromCookie returns the verified OAuth token. Expired tokens without a
// refresh token report errSessionExpired.
func (app *Application) tokenFromCookie(r *http.Request) (*oauth2.Token, error) {
	c, err := r.Cookie(tokenCookie)
	if err != nil {
		return nil, err
	}
	v, ok := verifyValue(c.Value, app.SignKey)
	if !ok {
		return nil, fmt.Errorf("invalid signature")
	}
	t, err := decodeToken(v)
	if err != nil {
		return nil, err
	}
	if !t.Valid() && t.RefreshToken == "" {
		return nil, errSessionExpired
	}
	return t, nil
}

// requireUser is a helper used by handlers to enforce authentication. It
// writes a 401 JSON response on failure and returns the user ID and a provider
// client acting for that user otherwise.
func (app *Application) requireUser(w http.ResponseWriter, r *http.Request) (string, music.Library, bool) {
	id, err := app.userFromCookie(r)
	if err != nil {
		respondJSONError(w, http.StatusUnauthorized, "authentication required")
		return "", nil, false
	}
	token, err := app.tokenFromCookie(r)
	if err != nil {
		msg := "authentication required"
		if errors.Is(err, errSessionExpired) {
			msg = "session expired, please log in again"
		}
		respondJSONError(w, http.StatusUnauthorized, msg)
		return "", nil, false
	}
	// Enforce CSRF protection on state-changing requests.
	if r.Method != http.MethodGet && r.Method != http.MethodHead && !verifyCSRF(r) {
		respondJSONError(w, http.StatusForbidden, "invalid csrf token")
		return "", nil, false
	}
	return id, app.Library(token), true
}

// decodeToken converts the base64 encoded JSON token stored in cookies back
// into an oauth2.Token instance.
func decodeToken(v string) (*oauth2.Token, error) {
	data, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, err
	}
	var t oauth2.Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// encodeToken signs and encodes the OAuth token for storage in a cookie.
func (app *Application) encodeToken(t *oauth2.Token, secure bool) *http.Cookie {
	b, _ := json.Marshal(t)
	return &http.Cookie{
		Name:     tokenCookie,
		Value:    signValue(base64.StdEncoding.EncodeToString(b), app.SignKey),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Login begins the Spotify OAuth flow and redirects the user to the
// authorization URL with a signed state value stored in a cookie.
func (app *Application) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    signValue(state, app.SignKey),
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, app.Auth.AuthURL(state), http.StatusFound)
}

// OAuthCallback completes the OAuth flow by exchanging the authorization code
// for a token. The resulting token and user ID are stored in signed cookies.
func (app *Application) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if e := r.URL.Query().Get("error"); e != "" {
		log.WithField("error", e).Info("spotify authorization declined")
		http.Redirect(w, r, "/?error=access_denied", http.StatusFound)
		return
	}
	c, err := r.Cookie(stateCookie)
	if err != nil {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	state, ok := verifyValue(c.Value, app.SignKey)
	if !ok || r.URL.Query().Get("state") != state {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

	token, err := app.Auth.Token(state, r)
	if err != nil {
		log.WithError(err).Error("token exchange failed")
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}
	user, err := app.Library(token).CurrentUser(r.Context())
	if err != nil {
		log.WithError(err).Error("load current user")
		http.Error(w, "failed to load spotify profile", http.StatusBadGateway)
		return
	}
	http.SetCookie(w, app.encodeToken(token, r.TLS != nil))
	http.SetCookie(w, &http.Cookie{
		Name:     userCookie,
		Value:    signValue(user.ID, app.SignKey),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	// Issue a CSRF token for the session so clients can include it with
	// state-changing requests.
	if _, err := setCSRFToken(w, r.TLS != nil); err != nil {
		http.Error(w, "csrf token", http.StatusInternalServerError)
		return
	}
	log.WithField("user", user.ID).Info("user logged in")
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout clears authentication cookies so the user must re-authenticate.
func (app *Application) Logout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{userCookie, tokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.SetCookie(w, &http.Cookie{Name: csrfCookie, Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusFound)
}
