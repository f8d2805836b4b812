package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const anthropicMaxTokens = 4096

// AnthropicClient adapts the Anthropic messages API to the canonical
// request and chunk shape. Text-only: inline-data parts are dropped.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a client.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{client: anthropic.NewClient(apiKey)}
}

func (c *AnthropicClient) buildRequest(req Request) anthropic.MessagesRequest {
	msgs := make([]anthropic.Message, 0, len(req.Contents))
	for _, msg := range req.Contents {
		text := flattenText(msg)
		if text == "" {
			continue
		}
		role := anthropic.RoleUser
		if msg.Role == "model" {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(text)},
		})
	}

	areq := anthropic.MessagesRequest{
		Model:     anthropic.Model(req.Model),
		Messages:  msgs,
		MaxTokens: anthropicMaxTokens,
	}
	if sys := systemText(req.Config); sys != "" {
		areq.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: sys}}
	}
	return areq
}

// GenerateContent performs a single call and normalizes the reply.
func (c *AnthropicClient) GenerateContent(ctx context.Context, req Request) (json.RawMessage, error) {
	resp, err := c.client.CreateMessages(ctx, c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}
	return textChunk(text), nil
}

// StreamGenerateContent streams text deltas as normalized chunks. The SDK is
// callback-driven; the callbacks feed the channel until the underlying call
// returns.
func (c *AnthropicClient) StreamGenerateContent(ctx context.Context, req Request) (<-chan json.RawMessage, error) {
	out := make(chan json.RawMessage)

	sreq := anthropic.MessagesStreamRequest{MessagesRequest: c.buildRequest(req)}
	sreq.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
		if delta.Delta.Type != "text_delta" || delta.Delta.Text == nil {
			return
		}
		select {
		case out <- textChunk(*delta.Delta.Text):
		case <-ctx.Done():
		}
	}
	sreq.OnError = func(errResp anthropic.ErrorResponse) {
		log.Printf("completion: anthropic stream error: %s", errResp.Error.Message)
	}

	go func() {
		defer close(out)
		if _, err := c.client.CreateMessagesStream(ctx, sreq); err != nil {
			log.Printf("completion: anthropic stream failed: %v", err)
		}
	}()
	return out, nil
}
