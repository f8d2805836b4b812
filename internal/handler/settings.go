package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/workspacehub/internal/draft"
	"github.com/jun/workspacehub/internal/model"
	"github.com/jun/workspacehub/internal/session"
	"github.com/jun/workspacehub/internal/state"
)

// globalSettingsID is the fixed id of the singleton branding+models entity.
const globalSettingsID = "global"

// GlobalSettings is the deployment-wide pair edited as one unit.
type GlobalSettings struct {
	Branding        model.Branding  `json:"branding"`
	AvailableModels []model.AIModel `json:"availableModels"`
}

// SettingsHandler exposes the draft/commit lifecycle over HTTP: one editor
// for container settings, one for the global pair. Edits live in the draft
// until an explicit commit writes them through the state store.
type SettingsHandler struct {
	sessions *session.Manager
	store    *state.Store

	mu        sync.Mutex
	container *draft.Editor[model.Container]
	global    *draft.Editor[GlobalSettings]
}

// NewSettingsHandler creates a SettingsHandler over the state store.
func NewSettingsHandler(sessions *session.Manager, store *state.Store) *SettingsHandler {
	h := &SettingsHandler{sessions: sessions, store: store}
	h.container = draft.NewEditor(func(id string) (model.Container, bool) {
		appState, err := store.Load(context.Background())
		if err != nil {
			log.Printf("settings: canonical load failed: %v", err)
			return model.Container{}, false
		}
		return appState.FindContainer(id)
	})
	h.global = draft.NewEditor(func(id string) (GlobalSettings, bool) {
		if id != globalSettingsID {
			return GlobalSettings{}, false
		}
		appState, err := store.Load(context.Background())
		if err != nil {
			log.Printf("settings: canonical load failed: %v", err)
			return GlobalSettings{}, false
		}
		return GlobalSettings{Branding: appState.Branding, AvailableModels: appState.AvailableModels}, true
	})
	return h
}

// Container routes /settings/container/... by the trailing action.
func (h *SettingsHandler) Container(ctx context.Context, req events.APIGatewayProxyRequest, action string) (events.APIGatewayProxyResponse, error) {
	if resolveSession(req, h.sessions) == nil {
		return unauthorized(), nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	switch action {
	case "begin":
		id := req.QueryStringParameters["id"]
		if id == "" {
			return textResponse(http.StatusBadRequest, "Missing id"), nil
		}
		if err := h.container.Begin(id); err != nil {
			if errors.Is(err, draft.ErrNotFound) {
				return textResponse(http.StatusNotFound, "Unknown workspace"), nil
			}
			log.Printf("settings: begin container %s failed: %v", id, err)
			return textResponse(http.StatusInternalServerError, "Failed to begin edit"), nil
		}
		return jsonResponse(http.StatusOK, h.container.Draft()), nil

	case "":
		switch req.HTTPMethod {
		case http.MethodGet:
			if !h.container.Active() {
				return textResponse(http.StatusNotFound, "No edit in progress"), nil
			}
			return jsonResponse(http.StatusOK, h.container.Draft()), nil
		case http.MethodPut:
			var next model.Container
			if err := json.Unmarshal([]byte(req.Body), &next); err != nil {
				return textResponse(http.StatusBadRequest, "Invalid container payload"), nil
			}
			if err := h.container.SetDraft(next); err != nil {
				return textResponse(http.StatusConflict, "No edit in progress"), nil
			}
			return jsonResponse(http.StatusOK, h.container.Draft()), nil
		}

	case "dirty":
		if !h.container.Active() {
			return textResponse(http.StatusNotFound, "No edit in progress"), nil
		}
		return jsonResponse(http.StatusOK, map[string]bool{"dirty": h.container.Dirty()}), nil

	case "commit":
		if !h.container.Active() {
			return textResponse(http.StatusConflict, "No edit in progress"), nil
		}
		if err := state.ValidateContainer(h.container.Draft()); err != nil {
			// Invalid drafts never reach the canonical state; the draft
			// stays so the user can fix it.
			return textResponse(http.StatusBadRequest, err.Error()), nil
		}
		committed, err := h.container.Commit(func(id string, value model.Container) error {
			return h.applyContainer(ctx, id, value)
		})
		if err != nil {
			log.Printf("settings: container commit failed: %v", err)
			return textResponse(http.StatusInternalServerError, "Failed to commit"), nil
		}
		return jsonResponse(http.StatusOK, map[string]bool{"committed": committed}), nil

	case "cancel":
		if err := h.container.Cancel(); err != nil {
			if errors.Is(err, draft.ErrNoDraft) {
				return textResponse(http.StatusConflict, "No edit in progress"), nil
			}
			if errors.Is(err, draft.ErrNotFound) {
				return textResponse(http.StatusNotFound, "Workspace no longer exists"), nil
			}
			log.Printf("settings: container cancel failed: %v", err)
			return textResponse(http.StatusInternalServerError, "Failed to cancel"), nil
		}
		return jsonResponse(http.StatusOK, h.container.Draft()), nil
	}

	return textResponse(http.StatusNotFound, "Not Found"), nil
}

func (h *SettingsHandler) applyContainer(ctx context.Context, id string, value model.Container) error {
	appState, err := h.store.Load(ctx)
	if err != nil {
		return err
	}
	if !appState.ReplaceContainer(value) {
		return errors.New("workspace disappeared during edit")
	}
	return h.store.Save(ctx, appState)
}

// Global routes /settings/global/... by the trailing action. The global
// entity always exists, so begin takes no id.
func (h *SettingsHandler) Global(ctx context.Context, req events.APIGatewayProxyRequest, action string) (events.APIGatewayProxyResponse, error) {
	if resolveSession(req, h.sessions) == nil {
		return unauthorized(), nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	switch action {
	case "begin":
		if err := h.global.Begin(globalSettingsID); err != nil {
			log.Printf("settings: begin global failed: %v", err)
			return textResponse(http.StatusInternalServerError, "Failed to begin edit"), nil
		}
		return jsonResponse(http.StatusOK, h.global.Draft()), nil

	case "":
		switch req.HTTPMethod {
		case http.MethodGet:
			if !h.global.Active() {
				return textResponse(http.StatusNotFound, "No edit in progress"), nil
			}
			return jsonResponse(http.StatusOK, h.global.Draft()), nil
		case http.MethodPut:
			var next GlobalSettings
			if err := json.Unmarshal([]byte(req.Body), &next); err != nil {
				return textResponse(http.StatusBadRequest, "Invalid settings payload"), nil
			}
			if err := h.global.SetDraft(next); err != nil {
				return textResponse(http.StatusConflict, "No edit in progress"), nil
			}
			return jsonResponse(http.StatusOK, h.global.Draft()), nil
		}

	case "dirty":
		if !h.global.Active() {
			return textResponse(http.StatusNotFound, "No edit in progress"), nil
		}
		return jsonResponse(http.StatusOK, map[string]bool{"dirty": h.global.Dirty()}), nil

	case "commit":
		if !h.global.Active() {
			return textResponse(http.StatusConflict, "No edit in progress"), nil
		}
		committed, err := h.global.Commit(func(id string, value GlobalSettings) error {
			return h.applyGlobal(ctx, value)
		})
		if err != nil {
			log.Printf("settings: global commit failed: %v", err)
			return textResponse(http.StatusInternalServerError, "Failed to commit"), nil
		}
		return jsonResponse(http.StatusOK, map[string]bool{"committed": committed}), nil

	case "cancel":
		if err := h.global.Cancel(); err != nil {
			if errors.Is(err, draft.ErrNoDraft) {
				return textResponse(http.StatusConflict, "No edit in progress"), nil
			}
			log.Printf("settings: global cancel failed: %v", err)
			return textResponse(http.StatusInternalServerError, "Failed to cancel"), nil
		}
		return jsonResponse(http.StatusOK, h.global.Draft()), nil
	}

	return textResponse(http.StatusNotFound, "Not Found"), nil
}

func (h *SettingsHandler) applyGlobal(ctx context.Context, value GlobalSettings) error {
	appState, err := h.store.Load(ctx)
	if err != nil {
		return err
	}
	appState.Branding = value.Branding
	appState.AvailableModels = value.AvailableModels
	return h.store.Save(ctx, appState)
}
