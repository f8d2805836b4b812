package state

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jun/workspacehub/internal/model"
)

func TestLoad_SeedsAndReachesFixedPoint(t *testing.T) {
	s := NewStore(nil, "test-state-table")

	first, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	if len(first.Containers) == 0 {
		t.Fatal("seeded state has no containers")
	}
	if len(first.AvailableModels) == 0 {
		t.Fatal("seeded state has no models")
	}

	second, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("second Load did not return the persisted seed unchanged")
	}
}

func TestLoad_MigratesMissingKnowledgeIDs(t *testing.T) {
	s := NewStore(nil, "test-state-table")
	state := DefaultState()
	state.Containers[0].KnowledgeBase = []model.KnowledgeFile{
		{Name: "handbook.pdf", Type: "application/pdf", Size: 1024},
	}
	if err := s.Save(context.Background(), state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := loaded.Containers[0].KnowledgeBase[0].ID; got == "" {
		t.Error("Load did not assign an id to the legacy knowledge file")
	}

	// The migration is persisted, so a reload sees the same id.
	again, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if again.Containers[0].KnowledgeBase[0].ID != loaded.Containers[0].KnowledgeBase[0].ID {
		t.Error("migrated id was not persisted")
	}
}

func TestSave_StripsAttachedContent(t *testing.T) {
	s := NewStore(nil, "test-state-table")
	state := DefaultState()

	// Simulate a client that sent content piggybacked on the metadata.
	var withContent map[string]any
	raw, _ := json.Marshal(state)
	if err := json.Unmarshal(raw, &withContent); err != nil {
		t.Fatalf("setup decode failed: %v", err)
	}
	containers := withContent["containers"].([]any)
	c0 := containers[0].(map[string]any)
	c0["knowledgeBase"] = []any{map[string]any{
		"id":      "file-1-abc",
		"name":    "secret.txt",
		"type":    "text/plain",
		"size":    float64(9),
		"content": "ZGF0YQ==",
	}}
	tainted, _ := json.Marshal(withContent)

	var decoded AppState
	if err := json.Unmarshal(tainted, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if err := s.Save(context.Background(), &decoded); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	blob, err := s.loadBlob(context.Background())
	if err != nil {
		t.Fatalf("loadBlob failed: %v", err)
	}
	if strings.Contains(string(blob), "ZGF0YQ==") || strings.Contains(string(blob), `"content"`) {
		t.Error("persisted blob carries knowledge content")
	}
	loaded, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := loaded.Containers[0].KnowledgeBase[0].Name; got != "secret.txt" {
		t.Errorf("metadata lost while stripping content: %q", got)
	}
}

func TestFindAndReplaceContainer(t *testing.T) {
	state := DefaultState()
	id := state.Containers[0].ID

	c, ok := state.FindContainer(id)
	if !ok {
		t.Fatalf("FindContainer(%q) missed", id)
	}

	// Mutating the copy does not touch the aggregate.
	c.Name = "Renamed"
	if state.Containers[0].Name == "Renamed" {
		t.Error("FindContainer returned an aliasing reference")
	}

	if !state.ReplaceContainer(c) {
		t.Fatal("ReplaceContainer missed an existing id")
	}
	if state.Containers[0].Name != "Renamed" {
		t.Error("ReplaceContainer did not swap the value in")
	}

	if state.ReplaceContainer(model.Container{ID: "nope"}) {
		t.Error("ReplaceContainer accepted an unknown id")
	}
}

func TestValidateContainer(t *testing.T) {
	base := DefaultState().Containers[0]

	if err := ValidateContainer(&base); err != nil {
		t.Fatalf("default container invalid: %v", err)
	}

	badModel := base
	badModel.SelectedModel = "not-offered"
	if err := ValidateContainer(&badModel); err == nil {
		t.Error("selected model outside available models accepted")
	}

	badPersona := base
	badPersona.SelectedPersona = "Nobody"
	if err := ValidateContainer(&badPersona); err == nil {
		t.Error("selected persona outside available personas accepted")
	}

	badChat := base
	missing := "chat-404"
	badChat.ActiveChatID = &missing
	if err := ValidateContainer(&badChat); err == nil {
		t.Error("dangling active chat id accepted")
	}

	goodChat := base
	chatID := "chat-1"
	goodChat.Chats = []model.ChatEntry{{ID: chatID, Name: "First"}}
	goodChat.ActiveChatID = &chatID
	if err := ValidateContainer(&goodChat); err != nil {
		t.Errorf("valid active chat rejected: %v", err)
	}
}

func TestValidateState_DuplicateIDs(t *testing.T) {
	state := DefaultState()
	state.Containers = append(state.Containers, state.Containers[0])
	if err := ValidateState(state); err == nil {
		t.Error("duplicate container ids accepted")
	}
}

func TestKnowledgeFileIDs(t *testing.T) {
	state := DefaultState()
	state.Containers[0].KnowledgeBase = []model.KnowledgeFile{
		{ID: "file-1-a", Name: "a.txt"},
		{ID: "file-2-b", Name: "b.txt"},
	}
	ids := state.KnowledgeFileIDs()
	if !ids["file-1-a"] || !ids["file-2-b"] || len(ids) != 2 {
		t.Errorf("unexpected id set: %v", ids)
	}
}
