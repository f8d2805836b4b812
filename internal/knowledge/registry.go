// Package knowledge manages per-workspace uploaded files. Metadata lives in
// the container's knowledge list inside the application state; the file
// content itself stays in a process-local map keyed by file id and never
// travels with the metadata.
package knowledge

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jun/workspacehub/internal/model"
	"github.com/jun/workspacehub/internal/state"
)

// ErrWorkspaceNotFound is returned for operations against an unknown
// container id.
var ErrWorkspaceNotFound = fmt.Errorf("workspace not found")

// Upload is the client payload for a new knowledge file.
type Upload struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	Content string `json:"content"` // base64
}

// Registry coordinates knowledge metadata (in the state aggregate) with the
// in-process content map. Content does not survive a restart; the metadata
// does, which the client handles by re-uploading.
type Registry struct {
	store *state.Store

	mu      sync.RWMutex
	content map[string]contentEntry
}

type contentEntry struct {
	mimeType string
	data     string
}

// NewRegistry creates a Registry over the given state store.
func NewRegistry(store *state.Store) *Registry {
	return &Registry{
		store:   store,
		content: make(map[string]contentEntry),
	}
}

// List returns the metadata for one workspace. An unknown workspace yields
// an empty list, not an error, so a freshly created container lists cleanly.
func (r *Registry) List(ctx context.Context, containerID string) ([]model.KnowledgeFile, error) {
	appState, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	container, ok := appState.FindContainer(containerID)
	if !ok {
		return []model.KnowledgeFile{}, nil
	}
	if container.KnowledgeBase == nil {
		return []model.KnowledgeFile{}, nil
	}
	return container.KnowledgeBase, nil
}

// Add registers an uploaded file: assigns an id, appends the metadata to the
// workspace and retains the content in memory. The metadata is persisted
// through the state store; the returned value is what list will show.
func (r *Registry) Add(ctx context.Context, containerID string, upload Upload) (*model.KnowledgeFile, error) {
	appState, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	container, ok := appState.FindContainer(containerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, containerID)
	}

	file := model.KnowledgeFile{
		ID:         state.NewFileID(),
		Name:       upload.Name,
		Type:       upload.Type,
		Size:       upload.Size,
		UploadDate: nowISO(),
	}
	container.KnowledgeBase = append(container.KnowledgeBase, file)
	appState.ReplaceContainer(container)
	if err := r.store.Save(ctx, appState); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.content[file.ID] = contentEntry{mimeType: upload.Type, data: upload.Content}
	r.mu.Unlock()

	return &file, nil
}

// Remove deletes a file's metadata and content. Removing a file id that is
// not present is a no-op; an unknown workspace is an error.
func (r *Registry) Remove(ctx context.Context, containerID, fileID string) error {
	appState, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	container, ok := appState.FindContainer(containerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkspaceNotFound, containerID)
	}

	kept := container.KnowledgeBase[:0]
	for _, f := range container.KnowledgeBase {
		if f.ID != fileID {
			kept = append(kept, f)
		}
	}
	container.KnowledgeBase = kept
	appState.ReplaceContainer(container)
	if err := r.store.Save(ctx, appState); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.content, fileID)
	r.mu.Unlock()
	return nil
}

// GroundingParts builds inline-data parts for every knowledge file of the
// workspace whose content is still resident. It is consumed only by the
// completion proxy; the content never surfaces through list/add/remove.
func (r *Registry) GroundingParts(ctx context.Context, containerID string) ([]model.Part, error) {
	files, err := r.List(ctx, containerID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var parts []model.Part
	for _, f := range files {
		entry, ok := r.content[f.ID]
		if !ok {
			log.Printf("knowledge: content for %s (%s) not resident, skipping", f.ID, f.Name)
			continue
		}
		parts = append(parts, model.Part{
			InlineData: &model.InlineData{MIMEType: entry.mimeType, Data: entry.data},
		})
	}
	return parts, nil
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// PruneContent drops content whose id is no longer referenced by any
// workspace. Called after a whole-state replacement.
func (r *Registry) PruneContent(validIDs map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.content {
		if !validIDs[id] {
			delete(r.content, id)
		}
	}
}
