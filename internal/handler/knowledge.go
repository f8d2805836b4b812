package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/workspacehub/internal/knowledge"
	"github.com/jun/workspacehub/internal/session"
)

// KnowledgeHandler serves the per-workspace knowledge file routes.
type KnowledgeHandler struct {
	sessions *session.Manager
	registry *knowledge.Registry
}

// NewKnowledgeHandler creates a KnowledgeHandler.
func NewKnowledgeHandler(sessions *session.Manager, registry *knowledge.Registry) *KnowledgeHandler {
	return &KnowledgeHandler{sessions: sessions, registry: registry}
}

// List handles GET /knowledge/list?containerId=.
func (h *KnowledgeHandler) List(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if resolveSession(req, h.sessions) == nil {
		return unauthorized(), nil
	}

	files, err := h.registry.List(ctx, req.QueryStringParameters["containerId"])
	if err != nil {
		log.Printf("knowledge: list failed: %v", err)
		return textResponse(http.StatusInternalServerError, "Failed to list knowledge files"), nil
	}
	return jsonResponse(http.StatusOK, files), nil
}

// Upload handles POST /knowledge/upload.
func (h *KnowledgeHandler) Upload(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if resolveSession(req, h.sessions) == nil {
		return unauthorized(), nil
	}

	var body struct {
		ContainerID string           `json:"containerId"`
		File        knowledge.Upload `json:"file"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return textResponse(http.StatusBadRequest, "Invalid request body"), nil
	}
	if body.ContainerID == "" || body.File.Name == "" {
		return textResponse(http.StatusBadRequest, "Missing containerId or file"), nil
	}

	file, err := h.registry.Add(ctx, body.ContainerID, body.File)
	if err != nil {
		if errors.Is(err, knowledge.ErrWorkspaceNotFound) {
			return textResponse(http.StatusBadRequest, "Unknown workspace"), nil
		}
		log.Printf("knowledge: upload to %s failed: %v", body.ContainerID, err)
		return textResponse(http.StatusInternalServerError, "Failed to store knowledge file"), nil
	}
	return jsonResponse(http.StatusCreated, file), nil
}

// Delete handles POST /knowledge/delete.
func (h *KnowledgeHandler) Delete(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if resolveSession(req, h.sessions) == nil {
		return unauthorized(), nil
	}

	var body struct {
		ContainerID string `json:"containerId"`
		FileID      string `json:"fileId"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return textResponse(http.StatusBadRequest, "Invalid request body"), nil
	}
	if body.ContainerID == "" || body.FileID == "" {
		return textResponse(http.StatusBadRequest, "Missing containerId or fileId"), nil
	}

	if err := h.registry.Remove(ctx, body.ContainerID, body.FileID); err != nil {
		if errors.Is(err, knowledge.ErrWorkspaceNotFound) {
			return textResponse(http.StatusBadRequest, "Unknown workspace"), nil
		}
		log.Printf("knowledge: delete %s from %s failed: %v", body.FileID, body.ContainerID, err)
		return textResponse(http.StatusInternalServerError, "Failed to delete knowledge file"), nil
	}
	return textResponse(http.StatusOK, "Deleted"), nil
}
