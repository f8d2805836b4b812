package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/workspacehub/internal/auth"
	"golang.org/x/oauth2"
)

// seedAccount caches an account with a refresh token the fake IdP accepts.
func seedAccount(t *testing.T, env *testEnv, homeAccountID string) {
	t.Helper()
	err := env.authService.SaveAccount(context.Background(),
		&auth.Account{HomeAccountID: homeAccountID},
		&oauth2.Token{RefreshToken: "rt-1"})
	if err != nil {
		t.Fatalf("SaveAccount failed: %v", err)
	}
}

// refreshingIdP answers silent refreshes with a fresh access token.
func refreshingIdP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"access_token":"graph-at","token_type":"Bearer","expires_in":3600}`)
}

func newGraphEnv(t *testing.T, idp http.HandlerFunc, upstream http.HandlerFunc) (*testEnv, *GraphHandler) {
	t.Helper()
	env := newTestEnv(t, idp)
	graphSrv := httptest.NewServer(upstream)
	t.Cleanup(graphSrv.Close)
	return env, NewGraphHandler(env.authService, env.sessions, graphSrv.URL)
}

func TestGraph_RequiresSession(t *testing.T) {
	_, h := newGraphEnv(t, nil, func(w http.ResponseWriter, r *http.Request) {})

	resp, _ := h.Proxy(context.Background(), events.APIGatewayProxyRequest{
		QueryStringParameters: map[string]string{"path": "/me"},
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestGraph_MissingPath(t *testing.T) {
	env, h := newGraphEnv(t, refreshingIdP, func(w http.ResponseWriter, r *http.Request) {})
	seedAccount(t, env, "oid.tid")

	resp, _ := h.Proxy(context.Background(), env.signedInRequest(t, "oid.tid"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGraph_ProxiesJSON(t *testing.T) {
	var gotAuth, gotPath string
	env, h := newGraphEnv(t, refreshingIdP, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":[{"name":"report.docx"}]}`)
	})
	seedAccount(t, env, "oid.tid")

	req := env.signedInRequest(t, "oid.tid")
	req.QueryStringParameters = map[string]string{"path": "/me/drive/root/children"}
	resp, err := h.Proxy(context.Background(), req)
	if err != nil {
		t.Fatalf("Proxy failed: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	if gotAuth != "Bearer graph-at" {
		t.Errorf("upstream call missing bearer token: %q", gotAuth)
	}
	if gotPath != "/me/drive/root/children" {
		t.Errorf("unexpected upstream path: %q", gotPath)
	}
	if resp.IsBase64Encoded {
		t.Error("JSON response flagged binary")
	}
	if !strings.Contains(resp.Body, "report.docx") {
		t.Errorf("body not relayed: %s", resp.Body)
	}
}

func TestGraph_ProxiesBinaryBase64(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x01}
	env, h := newGraphEnv(t, refreshingIdP, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	})
	seedAccount(t, env, "oid.tid")

	req := env.signedInRequest(t, "oid.tid")
	req.QueryStringParameters = map[string]string{"path": "/me/photo/$value"}
	resp, _ := h.Proxy(context.Background(), req)

	if !resp.IsBase64Encoded {
		t.Fatal("binary response not base64-flagged")
	}
	decoded, err := base64.StdEncoding.DecodeString(resp.Body)
	if err != nil || string(decoded) != string(payload) {
		t.Errorf("binary body mangled: %v %v", decoded, err)
	}
}

func TestGraph_RelaysUpstreamStatus(t *testing.T) {
	env, h := newGraphEnv(t, refreshingIdP, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"itemNotFound"}}`)
	})
	seedAccount(t, env, "oid.tid")

	req := env.signedInRequest(t, "oid.tid")
	req.QueryStringParameters = map[string]string{"path": "/me/drive/items/nope"}
	resp, _ := h.Proxy(context.Background(), req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("upstream status not relayed: %d", resp.StatusCode)
	}
}

func TestGraph_InteractionRequired(t *testing.T) {
	env, h := newGraphEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"AADSTS50076"}`)
	}, func(w http.ResponseWriter, r *http.Request) {})
	seedAccount(t, env, "oid.tid")

	req := env.signedInRequest(t, "oid.tid")
	req.QueryStringParameters = map[string]string{"path": "/me"}
	resp, _ := h.Proxy(context.Background(), req)

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var body struct {
		InteractionRequired bool `json:"interactionRequired"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil || !body.InteractionRequired {
		t.Errorf("interaction-required not surfaced: %s", resp.Body)
	}
}

func TestGraph_NoCachedAccount(t *testing.T) {
	env, h := newGraphEnv(t, refreshingIdP, func(w http.ResponseWriter, r *http.Request) {})

	req := env.signedInRequest(t, "unknown.tenant")
	req.QueryStringParameters = map[string]string{"path": "/me"}
	resp, _ := h.Proxy(context.Background(), req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for session without cached account, got %d", resp.StatusCode)
	}
}
