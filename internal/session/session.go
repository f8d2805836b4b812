// Package session implements the cookie-based session boundary: resolving a
// verified session from a request's cookie header, and building the session
// and PKCE-verifier cookies.
//
// Resolution is pure with respect to its input: no network or cache I/O.
// Token acquisition is a separate, explicit step (see the auth package).
package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jun/workspacehub/internal/config"
)

const (
	sessionMaxAge = 7 * 24 * 60 * 60 // 7 days
	pkceMaxAge    = 10 * 60          // 10 minutes

	// The verifier cookie is only ever sent back to the callback route.
	pkceCookiePath = "/api/auth/callback"
)

// Session is the decrypted session payload.
type Session struct {
	HomeAccountID string `json:"homeAccountId"`
}

// Codec seals and opens session tokens.
type Codec interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(token string) ([]byte, error)
}

// Manager builds and resolves session cookies for one deployment.
type Manager struct {
	codec  Codec
	secure bool
}

// NewManager returns a Manager. secure controls the cookie Secure attribute
// and should be true outside local development.
func NewManager(codec Codec, secure bool) *Manager {
	return &Manager{codec: codec, secure: secure}
}

// CreateCookie encrypts a session for homeAccountID and returns the
// Set-Cookie header value.
func (m *Manager) CreateCookie(homeAccountID string) (string, error) {
	payload, err := json.Marshal(Session{HomeAccountID: homeAccountID})
	if err != nil {
		return "", err
	}
	token, err := m.codec.Encrypt(payload)
	if err != nil {
		return "", err
	}
	c := fmt.Sprintf("%s=%s; HttpOnly; Path=/; Max-Age=%d; SameSite=Lax", config.SessionCookieName, token, sessionMaxAge)
	if m.secure {
		c += "; Secure"
	}
	return c, nil
}

// ClearCookie returns a Set-Cookie value that expires the session cookie.
func (m *Manager) ClearCookie() string {
	c := fmt.Sprintf("%s=; HttpOnly; Path=/; Max-Age=0; SameSite=Lax", config.SessionCookieName)
	if m.secure {
		c += "; Secure"
	}
	return c
}

// Resolve extracts and decrypts the session from a Cookie header. It returns
// nil for an absent cookie and for any decrypt or parse failure; callers must
// treat both identically.
func (m *Manager) Resolve(cookieHeader string) *Session {
	token := CookieValue(cookieHeader, config.SessionCookieName)
	if token == "" {
		return nil
	}
	plaintext, err := m.codec.Decrypt(token)
	if err != nil {
		return nil
	}
	var s Session
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return nil
	}
	if s.HomeAccountID == "" {
		return nil
	}
	return &s
}

// VerifierCookie returns the Set-Cookie value storing the PKCE verifier,
// short-lived and path-scoped to the callback route only.
func (m *Manager) VerifierCookie(verifier string) string {
	c := fmt.Sprintf("%s=%s; HttpOnly; Path=%s; Max-Age=%d; SameSite=Lax", config.PKCECookieName, verifier, pkceCookiePath, pkceMaxAge)
	if m.secure {
		c += "; Secure"
	}
	return c
}

// ClearVerifierCookie returns a Set-Cookie value that expires the PKCE cookie.
func (m *Manager) ClearVerifierCookie() string {
	c := fmt.Sprintf("%s=; HttpOnly; Path=%s; Max-Age=0; SameSite=Lax", config.PKCECookieName, pkceCookiePath)
	if m.secure {
		c += "; Secure"
	}
	return c
}

// CookieValue extracts a cookie value from a raw Cookie header.
func CookieValue(cookieHeader, name string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, name+"=") {
			return strings.TrimPrefix(part, name+"=")
		}
	}
	return ""
}
