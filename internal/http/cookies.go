package http

import (
	"net/http"
	"time"

	"evalgate/internal/auth"
	"evalgate/internal/config"
)

const (
	refreshCookieTTL = 30 * 24 * time.Hour
	toastCookieTTL   = 20 * time.Second
)

// Toast codes surfaced to the client when the identity provider was unreachable.
const (
	ToastNetwork = "network"
	ToastServer  = "server"
)

// SessionCookies writes the cookies that carry a session between requests:
// the access token, the refresh token and the signed profile.
type SessionCookies struct {
	names      config.CookieNames
	codec      *auth.ProfileCodec
	profileTTL time.Duration
	secure     bool
}

// NewSessionCookies builds a cookie writer. profileTTL is the transport
// lifetime of the profile cookie; trust is governed by the signed expiry.
func NewSessionCookies(names config.CookieNames, codec *auth.ProfileCodec, profileTTL time.Duration, secure bool) *SessionCookies {
	if profileTTL <= 0 {
		profileTTL = 30 * 24 * time.Hour
	}
	return &SessionCookies{names: names, codec: codec, profileTTL: profileTTL, secure: secure}
}

// Stamp writes the access, refresh and profile cookies for session.
func (c *SessionCookies) Stamp(w http.ResponseWriter, session auth.Session) {
	for _, cookie := range c.stampCookies(session) {
		http.SetCookie(w, cookie)
	}
}

// Clear deletes all three session cookies.
func (c *SessionCookies) Clear(w http.ResponseWriter) {
	for _, cookie := range c.clearCookies() {
		http.SetCookie(w, cookie)
	}
}

// SetToast writes a short-lived cookie the client UI reads to show a one-shot notice.
func (c *SessionCookies) SetToast(w http.ResponseWriter, code string) {
	http.SetCookie(w, c.toastCookie(code))
}

// Profile returns the trusted profile carried by r, if any.
func (c *SessionCookies) Profile(r *http.Request) (auth.SignedProfile, bool) {
	value := cookieValue(r, c.names.Profile)
	if value == "" {
		return auth.SignedProfile{}, false
	}
	return c.codec.Decode(value)
}

func (c *SessionCookies) stampCookies(session auth.Session) []*http.Cookie {
	accessTTL := session.Tokens.ExpiresIn
	if accessTTL < auth.MinTokenLifetime {
		accessTTL = auth.MinTokenLifetime
	}

	cookies := []*http.Cookie{c.sessionCookie(c.names.Access, session.Tokens.AccessToken, accessTTL)}
	if session.Tokens.RefreshToken != "" {
		cookies = append(cookies, c.sessionCookie(c.names.Refresh, session.Tokens.RefreshToken, refreshCookieTTL))
	}

	// Without a signing secret there is no local cache; every request goes remote.
	if profile, err := c.codec.Encode(session.Identity, accessTTL); err == nil {
		cookies = append(cookies, c.sessionCookie(c.names.Profile, profile, c.profileTTL))
	}
	return cookies
}

func (c *SessionCookies) clearCookies() []*http.Cookie {
	names := []string{c.names.Access, c.names.Refresh, c.names.Profile}
	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookie := c.sessionCookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		cookies = append(cookies, cookie)
	}
	return cookies
}

func (c *SessionCookies) toastCookie(code string) *http.Cookie {
	return &http.Cookie{
		Name:     c.names.Toast,
		Value:    code,
		Path:     "/",
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.secure,
		MaxAge:   int(toastCookieTTL.Seconds()),
	}
}

func (c *SessionCookies) sessionCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.secure,
		MaxAge:   int(ttl.Seconds()),
	}
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
