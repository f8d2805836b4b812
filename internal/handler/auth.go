package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/workspacehub/internal/auth"
	"github.com/jun/workspacehub/internal/config"
	"github.com/jun/workspacehub/internal/session"
)

// AuthHandler drives the login, callback and logout routes.
type AuthHandler struct {
	authService *auth.Service
	sessions    *session.Manager
	appURI      string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *auth.Service, sessions *session.Manager, appURI string) *AuthHandler {
	return &AuthHandler{authService: s, sessions: sessions, appURI: appURI}
}

func (h *AuthHandler) redirectURI(req events.APIGatewayProxyRequest) string {
	return requestOrigin(req, h.appURI) + "/api/auth/callback"
}

// Login starts the PKCE flow: a fresh verifier goes into a short-lived
// cookie scoped to the callback route, the derived challenge goes to the
// identity provider.
func (h *AuthHandler) Login(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	verifier := auth.GenerateVerifier()
	url := h.authService.AuthCodeURL(verifier, h.redirectURI(req))

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": url,
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {h.sessions.VerifierCookie(verifier)},
		},
	}, nil
}

// Callback completes the flow: redeems the code against the verifier cookie,
// caches the account, sets the session cookie and hands control back to the
// client via a tiny HTML page. The JS redirect (rather than a 302) makes the
// browser commit the Set-Cookie before the app reloads.
func (h *AuthHandler) Callback(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	code := req.QueryStringParameters["code"]
	if code == "" {
		return textResponse(http.StatusBadRequest, "Missing authorization code"), nil
	}

	verifier := session.CookieValue(getHeader(req, "Cookie"), config.PKCECookieName)
	if verifier == "" {
		return textResponse(http.StatusBadRequest, "Missing PKCE verifier"), nil
	}

	token, account, err := h.authService.ExchangeCode(ctx, code, verifier, h.redirectURI(req))
	if err != nil {
		log.Printf("Callback: code exchange failed: %v", err)
		return textResponse(http.StatusInternalServerError, "Authentication failed"), nil
	}

	if err := h.authService.SaveAccount(ctx, account, token); err != nil {
		log.Printf("Callback: failed to cache account %s: %v", account.HomeAccountID, err)
		return textResponse(http.StatusInternalServerError, "Authentication failed"), nil
	}

	sessionCookie, err := h.sessions.CreateCookie(account.HomeAccountID)
	if err != nil {
		log.Printf("Callback: failed to create session cookie: %v", err)
		return textResponse(http.StatusInternalServerError, "Authentication failed"), nil
	}

	html := fmt.Sprintf(`<!DOCTYPE html><html><body><script>window.location.replace(%q);</script></body></html>`, h.appURI)
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       html,
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {sessionCookie, h.sessions.ClearVerifierCookie()},
		},
	}, nil
}

// Logout clears the session cookie and drops the cached account. Cache
// removal is best-effort: the cookie is cleared regardless.
func (h *AuthHandler) Logout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if s := resolveSession(req, h.sessions); s != nil {
		if err := h.authService.RemoveAccount(ctx, s.HomeAccountID); err != nil {
			log.Printf("Logout: failed to remove account %s: %v", s.HomeAccountID, err)
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": h.appURI,
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {h.sessions.ClearCookie()},
		},
	}, nil
}
