package handler

import (
	"context"
	"encoding/base64"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/workspacehub/internal/auth"
	"github.com/jun/workspacehub/internal/session"
)

const defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphHandler proxies document-graph requests on behalf of the signed-in
// account. The access token never reaches the client.
type GraphHandler struct {
	authService *auth.Service
	sessions    *session.Manager
	baseURL     string
	httpClient  *http.Client
}

// NewGraphHandler creates a GraphHandler. baseURL overrides the public Graph
// endpoint for tests.
func NewGraphHandler(s *auth.Service, sessions *session.Manager, baseURL string) *GraphHandler {
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	return &GraphHandler{
		authService: s,
		sessions:    sessions,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// token acquires a Graph access token for the request's session, mapping
// auth failures to the response the client acts on.
func (h *GraphHandler) token(ctx context.Context, req events.APIGatewayProxyRequest) (string, *events.APIGatewayProxyResponse) {
	s := resolveSession(req, h.sessions)
	if s == nil {
		resp := unauthorized()
		return "", &resp
	}

	accessToken, err := h.authService.AcquireTokenOnBehalfOf(ctx, s.HomeAccountID)
	if err != nil {
		if auth.IsInteractionRequired(err) {
			resp := jsonResponse(http.StatusUnauthorized, map[string]any{
				"error":               "Unauthorized",
				"interactionRequired": true,
			})
			return "", &resp
		}
		log.Printf("graph: token acquisition failed for %s: %v", s.HomeAccountID, err)
		resp := unauthorized()
		return "", &resp
	}
	return accessToken, nil
}

// Proxy forwards GET ?path=... to the graph API, relaying status, body and
// content type. Binary bodies come back base64-encoded.
func (h *GraphHandler) Proxy(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.QueryStringParameters["path"]
	if path == "" {
		return textResponse(http.StatusBadRequest, "Missing path parameter"), nil
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	accessToken, errResp := h.token(ctx, req)
	if errResp != nil {
		return *errResp, nil
	}

	upstream, err := h.get(ctx, accessToken, path)
	if err != nil {
		log.Printf("graph: upstream request for %s failed: %v", path, err)
		return textResponse(http.StatusInternalServerError, "Graph request failed"), nil
	}
	defer upstream.Body.Close()

	body, err := io.ReadAll(upstream.Body)
	if err != nil {
		log.Printf("graph: failed to read upstream body for %s: %v", path, err)
		return textResponse(http.StatusInternalServerError, "Graph request failed"), nil
	}

	contentType := upstream.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp := events.APIGatewayProxyResponse{
		StatusCode: upstream.StatusCode,
		Headers: map[string]string{
			"Content-Type": contentType,
		},
	}
	if isTextual(contentType) {
		resp.Body = string(body)
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(body)
		resp.IsBase64Encoded = true
	}
	return resp, nil
}

func (h *GraphHandler) get(ctx context.Context, accessToken, path string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	return h.httpClient.Do(httpReq)
}

func isTextual(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") ||
		strings.Contains(contentType, "json") ||
		strings.Contains(contentType, "xml")
}
