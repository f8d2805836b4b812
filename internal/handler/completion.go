package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/workspacehub/internal/completion"
	"github.com/jun/workspacehub/internal/knowledge"
	"github.com/jun/workspacehub/internal/model"
	"github.com/jun/workspacehub/internal/session"
	"github.com/jun/workspacehub/internal/state"
)

// CompletionHandler proxies chat requests to the completion service for the
// workspace's selected model, grounding them with the workspace's knowledge.
type CompletionHandler struct {
	sessions  *session.Manager
	store     *state.Store
	registry  *knowledge.Registry
	factory   *completion.Factory
	clientFor func(m model.AIModel) (completion.Client, error)
}

// NewCompletionHandler creates a CompletionHandler.
func NewCompletionHandler(sessions *session.Manager, store *state.Store, registry *knowledge.Registry, factory *completion.Factory) *CompletionHandler {
	return &CompletionHandler{
		sessions:  sessions,
		store:     store,
		registry:  registry,
		factory:   factory,
		clientFor: factory.ClientFor,
	}
}

// completionRequest is the client payload. ContainerID routes grounding and
// never travels upstream.
type completionRequest struct {
	Stream bool `json:"stream"`
	Params *struct {
		Model       string              `json:"model"`
		ContainerID string              `json:"containerId"`
		Contents    []model.ChatMessage `json:"contents"`
		Config      json.RawMessage     `json:"config,omitempty"`
	} `json:"params"`
}

// Generate handles POST /gemini.
func (h *CompletionHandler) Generate(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if resolveSession(req, h.sessions) == nil {
		return unauthorized(), nil
	}

	var body completionRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return textResponse(http.StatusBadRequest, "Invalid request body"), nil
	}
	if body.Params == nil || body.Params.Model == "" {
		return textResponse(http.StatusBadRequest, "Missing completion parameters"), nil
	}
	if body.Params.ContainerID == "" {
		return textResponse(http.StatusBadRequest, "Missing containerId"), nil
	}

	registered, err := h.registeredModel(ctx, body.Params.Model)
	if err != nil {
		log.Printf("completion: model lookup failed: %v", err)
		return textResponse(http.StatusInternalServerError, "Completion failed"), nil
	}
	client, err := h.clientFor(registered)
	if err != nil {
		log.Printf("completion: no client for model %s: %v", registered.ID, err)
		return textResponse(http.StatusInternalServerError, "Completion failed"), nil
	}

	contents := body.Params.Contents
	grounding, err := h.registry.GroundingParts(ctx, body.Params.ContainerID)
	if err != nil {
		log.Printf("completion: grounding lookup for %s failed: %v", body.Params.ContainerID, err)
		return textResponse(http.StatusInternalServerError, "Completion failed"), nil
	}
	if len(grounding) > 0 {
		contents = append([]model.ChatMessage{{Role: "user", Parts: grounding}}, contents...)
	}

	creq := completion.Request{
		Model:    body.Params.Model,
		Contents: contents,
		Config:   body.Params.Config,
	}

	if body.Stream {
		return h.stream(ctx, client, creq)
	}

	result, err := client.GenerateContent(ctx, creq)
	if err != nil {
		log.Printf("completion: generate failed for model %s: %v", creq.Model, err)
		return textResponse(http.StatusInternalServerError, "Completion failed"), nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(result),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}, nil
}

// stream collects the chunk channel into a newline-delimited JSON body. The
// proxy integration has no response streaming, so chunks delivered before a
// mid-stream failure are still returned.
func (h *CompletionHandler) stream(ctx context.Context, client completion.Client, creq completion.Request) (events.APIGatewayProxyResponse, error) {
	ch, err := client.StreamGenerateContent(ctx, creq)
	if err != nil {
		log.Printf("completion: stream failed to open for model %s: %v", creq.Model, err)
		return textResponse(http.StatusInternalServerError, "Completion failed"), nil
	}

	var sb strings.Builder
	for chunk := range ch {
		sb.Write(chunk)
		sb.WriteString("\n")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       sb.String(),
		Headers: map[string]string{
			"Content-Type": "application/x-ndjson",
		},
	}, nil
}

// registeredModel resolves the model id against the registry so the api
// field decides the provider. Unregistered ids default to the primary
// provider rather than failing, matching how new models roll out.
func (h *CompletionHandler) registeredModel(ctx context.Context, id string) (model.AIModel, error) {
	appState, err := h.store.Load(ctx)
	if err != nil {
		return model.AIModel{}, err
	}
	for _, m := range appState.AvailableModels {
		if m.ID == id {
			return m, nil
		}
	}
	return model.AIModel{ID: id, API: "google"}, nil
}
