package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIClient adapts the OpenAI chat completion API to the canonical
// request and chunk shape. Text-only: inline-data parts are dropped.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a client. baseURL overrides the public endpoint
// for tests.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(config)}
}

func (c *OpenAIClient) buildRequest(req Request) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Contents)+1)
	if sys := systemText(req.Config); sys != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: sys,
		})
	}
	for _, msg := range req.Contents {
		role := openai.ChatMessageRoleUser
		if msg.Role == "model" {
			role = openai.ChatMessageRoleAssistant
		}
		text := flattenText(msg)
		if text == "" {
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: text})
	}
	return openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
	}
}

// GenerateContent performs a single call and normalizes the reply.
func (c *OpenAIClient) GenerateContent(ctx context.Context, req Request) (json.RawMessage, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}
	return textChunk(resp.Choices[0].Message.Content), nil
}

// StreamGenerateContent streams deltas as normalized chunks.
func (c *OpenAIClient) StreamGenerateContent(ctx context.Context, req Request) (<-chan json.RawMessage, error) {
	oreq := c.buildRequest(req)
	oreq.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, oreq)
	if err != nil {
		return nil, fmt.Errorf("openai stream failed to open: %w", err)
	}

	out := make(chan json.RawMessage)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Printf("completion: openai stream read failed: %v", err)
				}
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case out <- textChunk(resp.Choices[0].Delta.Content):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
