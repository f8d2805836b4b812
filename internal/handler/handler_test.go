package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jun/workspacehub/internal/auth"
	"github.com/jun/workspacehub/internal/config"
	"github.com/jun/workspacehub/internal/crypto"
	"github.com/jun/workspacehub/internal/knowledge"
	"github.com/jun/workspacehub/internal/session"
	"github.com/jun/workspacehub/internal/state"
	"golang.org/x/oauth2"
)

// testEnv wires the full handler dependency graph against in-memory stores
// and a fake identity provider.
type testEnv struct {
	sessions    *session.Manager
	authService *auth.Service
	store       *state.Store
	registry    *knowledge.Registry
	idp         *httptest.Server
	containerID string
}

func newTestEnv(t *testing.T, idpHandler http.HandlerFunc) *testEnv {
	t.Helper()

	codec, err := crypto.NewSessionCodec("test-session-secret")
	if err != nil {
		t.Fatalf("codec setup failed: %v", err)
	}
	sessions := session.NewManager(codec, false)

	if idpHandler == nil {
		idpHandler = func(w http.ResponseWriter, r *http.Request) {}
	}
	idp := httptest.NewServer(idpHandler)
	t.Cleanup(idp.Close)

	oauthConfig := &oauth2.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		Scopes:       auth.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  idp.URL + "/authorize",
			TokenURL: idp.URL + "/token",
		},
	}
	authService := auth.NewService(oauthConfig, nil, "test-accounts", crypto.NewMockEncryptor())

	store := state.NewStore(nil, "test-state")
	seeded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("state seed failed: %v", err)
	}

	return &testEnv{
		sessions:    sessions,
		authService: authService,
		store:       store,
		registry:    knowledge.NewRegistry(store),
		idp:         idp,
		containerID: seeded.Containers[0].ID,
	}
}

// signedInRequest returns a request carrying a valid session cookie.
func (e *testEnv) signedInRequest(t *testing.T, homeAccountID string) events.APIGatewayProxyRequest {
	t.Helper()
	cookie, err := e.sessions.CreateCookie(homeAccountID)
	if err != nil {
		t.Fatalf("session cookie setup failed: %v", err)
	}
	// Set-Cookie value up to the first attribute is a valid Cookie pair.
	return events.APIGatewayProxyRequest{
		Headers: map[string]string{"Cookie": cookieHeader(cookie)},
	}
}

func cookieHeader(setCookie string) string {
	for i := 0; i < len(setCookie); i++ {
		if setCookie[i] == ';' {
			return setCookie[:i]
		}
	}
	return setCookie
}

// signIDToken builds an id_token the auth service will accept.
func signIDToken(t *testing.T, oid, tid string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"oid":                oid,
		"tid":                tid,
		"name":               "Alex Thorne",
		"preferred_username": "alex.thorne@example.com",
		"exp":                time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("idp-key"))
	if err != nil {
		t.Fatalf("failed to sign id_token: %v", err)
	}
	return signed
}

// testConfig returns a fully configured deployment config.
func testConfig() *config.Config {
	return &config.Config{
		AppURI:           "https://hub.example.com",
		MSALClientID:     "client-id",
		MSALTenantID:     "tenant-id",
		MSALClientSecret: "client-secret",
		GeminiAPIKey:     "gemini-key",
		SessionSecret:    "test-session-secret",
	}
}

// tokenEndpoint answers the code exchange with a full token set.
func tokenEndpoint(t *testing.T, oid, tid string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"at-1","token_type":"Bearer","expires_in":3600,"refresh_token":"rt-1","id_token":"%s"}`,
			signIDToken(t, oid, tid))
	}
}
