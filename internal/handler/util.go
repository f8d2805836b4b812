package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/workspacehub/internal/session"
)

// getHeader performs a case-insensitive header lookup. API Gateway does not
// normalize header casing.
func getHeader(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// requestOrigin reconstructs the externally visible origin of the request
// from forwarding headers, falling back to the configured app URI.
func requestOrigin(req events.APIGatewayProxyRequest, appURI string) string {
	host := getHeader(req, "X-Forwarded-Host")
	if host == "" {
		host = getHeader(req, "Host")
	}
	if host == "" {
		return strings.TrimSuffix(appURI, "/")
	}
	proto := getHeader(req, "X-Forwarded-Proto")
	if proto == "" {
		proto = "https"
	}
	return proto + "://" + host
}

// resolveSession reads the session cookie off the request. Nil means the
// caller must answer 401.
func resolveSession(req events.APIGatewayProxyRequest, sessions *session.Manager) *session.Session {
	return sessions.Resolve(getHeader(req, "Cookie"))
}

func unauthorized() events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
}

func jsonResponse(status int, payload any) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(payload)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

func textResponse(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "text/plain",
		},
	}
}
