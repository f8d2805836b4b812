// Package state persists the client application state aggregate: the
// workspace containers, the global branding and the model registry. The
// aggregate is stored as a single keyed blob so reads and writes are always
// whole-value.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/jun/workspacehub/internal/model"
)

// stateKey is the partition key of the singleton aggregate item.
const stateKey = "app-state"

// AppState is the aggregate the client boots from.
type AppState struct {
	Containers      []model.Container `json:"containers"`
	Branding        model.Branding    `json:"branding"`
	AvailableModels []model.AIModel   `json:"availableModels"`
}

// stateItem is the DynamoDB row shape. The aggregate travels as a JSON
// document attribute rather than a deep attribute tree.
type stateItem struct {
	ID        string    `dynamodbav:"id"`
	Data      string    `dynamodbav:"data"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// Store loads and saves the aggregate. With a nil DynamoDB client it keeps
// the blob in memory (tests, dev mode).
type Store struct {
	dynamoClient *dynamodb.Client
	tableName    string

	mu   sync.RWMutex
	blob []byte
}

// NewStore creates a Store backed by the given table, or by memory when
// dynamoClient is nil.
func NewStore(dynamoClient *dynamodb.Client, tableName string) *Store {
	return &Store{dynamoClient: dynamoClient, tableName: tableName}
}

// Load returns the aggregate, seeding and persisting the defaults on first
// run so that a second Load observes identical data. Stored knowledge
// metadata is migrated in passing: files without an id get one assigned, and
// any content that leaked into the blob is dropped by the metadata-only
// decode.
func (s *Store) Load(ctx context.Context) (*AppState, error) {
	raw, err := s.loadBlob(ctx)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		seeded := DefaultState()
		if err := s.Save(ctx, seeded); err != nil {
			return nil, fmt.Errorf("failed to persist seeded state: %w", err)
		}
		return seeded, nil
	}

	var state AppState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode stored state: %w", err)
	}
	if migrateKnowledgeMetadata(&state) {
		if err := s.Save(ctx, &state); err != nil {
			return nil, fmt.Errorf("failed to persist migrated state: %w", err)
		}
	}
	return &state, nil
}

// Save persists a deep copy of the aggregate. The JSON round trip through
// the metadata-only types guarantees no knowledge content ever reaches the
// blob, whatever the caller attached to it.
func (s *Store) Save(ctx context.Context, state *AppState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	var stripped AppState
	if err := json.Unmarshal(data, &stripped); err != nil {
		return fmt.Errorf("failed to re-decode state: %w", err)
	}
	blob, err := json.Marshal(&stripped)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if s.dynamoClient == nil {
		s.mu.Lock()
		s.blob = blob
		s.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(stateItem{
		ID:        stateKey,
		Data:      string(blob),
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal state item: %w", err)
	}
	_, err = s.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save state to DynamoDB: %w", err)
	}
	return nil
}

func (s *Store) loadBlob(ctx context.Context) ([]byte, error) {
	if s.dynamoClient == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.blob == nil {
			return nil, nil
		}
		out := make([]byte, len(s.blob))
		copy(out, s.blob)
		return out, nil
	}

	out, err := s.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: stateKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get state from DynamoDB: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item stateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state item: %w", err)
	}
	return []byte(item.Data), nil
}

// migrateKnowledgeMetadata assigns ids to knowledge files that predate id
// assignment. Returns true if anything changed.
func migrateKnowledgeMetadata(state *AppState) bool {
	changed := false
	for i := range state.Containers {
		kb := state.Containers[i].KnowledgeBase
		for j := range kb {
			if kb[j].ID == "" {
				kb[j].ID = NewFileID()
				changed = true
				log.Printf("state: assigned id %s to knowledge file %q in container %s",
					kb[j].ID, kb[j].Name, state.Containers[i].ID)
			}
		}
	}
	return changed
}

// NewFileID returns a fresh knowledge file id.
func NewFileID() string {
	return fmt.Sprintf("file-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// FindContainer returns a copy of the container with the given id.
func (a *AppState) FindContainer(id string) (model.Container, bool) {
	for _, c := range a.Containers {
		if c.ID == id {
			return c, true
		}
	}
	return model.Container{}, false
}

// ReplaceContainer swaps in the given container by id, whole-value.
func (a *AppState) ReplaceContainer(c model.Container) bool {
	for i := range a.Containers {
		if a.Containers[i].ID == c.ID {
			a.Containers[i] = c
			return true
		}
	}
	return false
}

// KnowledgeFileIDs returns every knowledge file id referenced anywhere in
// the aggregate. Used to prune orphaned content after a state replacement.
func (a *AppState) KnowledgeFileIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, c := range a.Containers {
		for _, f := range c.KnowledgeBase {
			ids[f.ID] = true
		}
	}
	return ids
}

// ValidateContainer checks the cross-field invariants a container must hold
// before it is accepted into the aggregate.
func ValidateContainer(c *model.Container) error {
	if c.ID == "" {
		return fmt.Errorf("container has no id")
	}
	if c.SelectedModel != "" && !contains(c.AvailableModels, c.SelectedModel) {
		return fmt.Errorf("selected model %q not in available models", c.SelectedModel)
	}
	if c.SelectedPersona != "" && !contains(c.AvailablePersonas, c.SelectedPersona) {
		return fmt.Errorf("selected persona %q not in available personas", c.SelectedPersona)
	}
	if c.ActiveChatID != nil {
		found := false
		for _, chat := range c.Chats {
			if chat.ID == *c.ActiveChatID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("active chat %q not present in chats", *c.ActiveChatID)
		}
	}
	for _, f := range c.KnowledgeBase {
		if f.ID == "" {
			return fmt.Errorf("knowledge file %q has no id", f.Name)
		}
	}
	return nil
}

// ValidateState validates every container and rejects duplicate ids.
func ValidateState(state *AppState) error {
	seen := make(map[string]bool, len(state.Containers))
	for i := range state.Containers {
		c := &state.Containers[i]
		if seen[c.ID] {
			return fmt.Errorf("duplicate container id %q", c.ID)
		}
		seen[c.ID] = true
		if err := ValidateContainer(c); err != nil {
			return fmt.Errorf("container %q: %w", c.ID, err)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
