package handler

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/workspacehub/internal/config"
)

// ConfigHandler serves the public, unauthenticated client configuration.
type ConfigHandler struct {
	cfg *config.Config
}

// NewConfigHandler creates a ConfigHandler.
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// Get reports which login providers the deployment supports. Nothing here is
// secret; the client uses it to decide which buttons to render.
func (h *ConfigHandler) Get(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return jsonResponse(http.StatusOK, map[string]any{
		"auth": map[string]bool{
			"isMicrosoftConfigured": h.cfg.IsMicrosoftConfigured(),
			"isGoogleConfigured":    false,
		},
	}), nil
}
