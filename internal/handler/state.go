package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/workspacehub/internal/knowledge"
	"github.com/jun/workspacehub/internal/session"
	"github.com/jun/workspacehub/internal/state"
)

// StateHandler serves the whole client application state aggregate.
type StateHandler struct {
	sessions *session.Manager
	store    *state.Store
	registry *knowledge.Registry
}

// NewStateHandler creates a StateHandler.
func NewStateHandler(sessions *session.Manager, store *state.Store, registry *knowledge.Registry) *StateHandler {
	return &StateHandler{sessions: sessions, store: store, registry: registry}
}

// Get handles GET /state. The first call of a fresh deployment seeds the
// defaults.
func (h *StateHandler) Get(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if resolveSession(req, h.sessions) == nil {
		return unauthorized(), nil
	}

	appState, err := h.store.Load(ctx)
	if err != nil {
		log.Printf("state: load failed: %v", err)
		return textResponse(http.StatusInternalServerError, "Failed to load state"), nil
	}
	return jsonResponse(http.StatusOK, appState), nil
}

// Replace handles POST /state: whole-value replacement of the aggregate.
// Knowledge content orphaned by the new state is pruned afterwards.
func (h *StateHandler) Replace(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if resolveSession(req, h.sessions) == nil {
		return unauthorized(), nil
	}

	var next state.AppState
	if err := json.Unmarshal([]byte(req.Body), &next); err != nil {
		return textResponse(http.StatusBadRequest, "Invalid state payload"), nil
	}
	if err := state.ValidateState(&next); err != nil {
		return textResponse(http.StatusBadRequest, err.Error()), nil
	}

	if err := h.store.Save(ctx, &next); err != nil {
		log.Printf("state: save failed: %v", err)
		return textResponse(http.StatusInternalServerError, "Failed to save state"), nil
	}
	h.registry.PruneContent(next.KnowledgeFileIDs())

	return jsonResponse(http.StatusOK, map[string]bool{"success": true}), nil
}
