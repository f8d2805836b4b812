// Package completion fronts the AI completion services. Every provider is
// normalized to the same request and chunk shape so the proxy handler and
// the client never care which API served a workspace's selected model.
package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/jun/workspacehub/internal/model"
)

// Request is the provider-neutral completion request: an ordered list of
// chat turns plus an optional raw generation config (system instruction,
// temperature and friends) in the completion service's native shape.
type Request struct {
	Model    string              `json:"model"`
	Contents []model.ChatMessage `json:"contents"`
	Config   json.RawMessage     `json:"config,omitempty"`
}

// Client is one completion backend. StreamGenerateContent returns a channel
// of JSON chunks; the producer closes it when the stream ends, the context
// is cancelled, or a chunk fails to parse (already delivered chunks stand).
type Client interface {
	GenerateContent(ctx context.Context, req Request) (json.RawMessage, error)
	StreamGenerateContent(ctx context.Context, req Request) (<-chan json.RawMessage, error)
}

// Factory routes a model to its provider client by the registry's api field.
type Factory struct {
	geminiAPIKey    string
	openAIAPIKey    string
	anthropicAPIKey string
}

// NewFactory creates a Factory. Keys left empty disable the provider.
func NewFactory(geminiAPIKey, openAIAPIKey, anthropicAPIKey string) *Factory {
	return &Factory{
		geminiAPIKey:    geminiAPIKey,
		openAIAPIKey:    openAIAPIKey,
		anthropicAPIKey: anthropicAPIKey,
	}
}

// ClientFor returns the client for a registered model.
func (f *Factory) ClientFor(m model.AIModel) (Client, error) {
	switch m.API {
	case "", "google":
		if f.geminiAPIKey == "" {
			return nil, fmt.Errorf("gemini api key not configured")
		}
		return NewGeminiClient(f.geminiAPIKey, ""), nil
	case "openai":
		if f.openAIAPIKey == "" {
			return nil, fmt.Errorf("openai api key not configured")
		}
		return NewOpenAIClient(f.openAIAPIKey, ""), nil
	case "anthropic":
		if f.anthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic api key not configured")
		}
		return NewAnthropicClient(f.anthropicAPIKey), nil
	}
	return nil, fmt.Errorf("unknown completion api %q", m.API)
}

// textChunk wraps plain text in the canonical chunk shape every provider
// response is normalized to.
func textChunk(text string) json.RawMessage {
	chunk := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
					"role":  "model",
				},
			},
		},
	}
	data, _ := json.Marshal(chunk)
	return data
}

// flattenText joins a message's text parts. Inline data cannot be forwarded
// to text-only providers; it is skipped with a log line.
func flattenText(msg model.ChatMessage) string {
	var sb strings.Builder
	for _, p := range msg.Parts {
		if p.InlineData != nil {
			log.Printf("completion: dropping inline-data part (%s) for text-only provider", p.InlineData.MIMEType)
			continue
		}
		if p.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// systemText pulls the system instruction out of a raw config, if present.
// The config uses the completion service's native shape, where the system
// instruction is a content object of text parts.
func systemText(config json.RawMessage) string {
	if len(config) == 0 {
		return ""
	}
	var cfg struct {
		SystemInstruction *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"systemInstruction"`
	}
	if err := json.Unmarshal(config, &cfg); err != nil || cfg.SystemInstruction == nil {
		return ""
	}
	var parts []string
	for _, p := range cfg.SystemInstruction.Parts {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}
