package completion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiClient calls the Gemini REST API. Its responses already are the
// canonical chunk shape, so they pass through untouched.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient creates a client. baseURL overrides the public endpoint
// for tests.
func NewGeminiClient(apiKey, baseURL string) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// requestBody merges the contents with the raw config into the upstream
// request shape.
func (c *GeminiClient) requestBody(req Request) ([]byte, error) {
	body := map[string]json.RawMessage{}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &body); err != nil {
			return nil, fmt.Errorf("invalid generation config: %w", err)
		}
	}
	contents, err := json.Marshal(req.Contents)
	if err != nil {
		return nil, err
	}
	body["contents"] = contents
	return json.Marshal(body)
}

func (c *GeminiClient) do(ctx context.Context, url string, payload []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("completion service returned %d: %s", resp.StatusCode, detail)
	}
	return resp, nil
}

// GenerateContent performs a single non-streaming call.
func (c *GeminiClient) GenerateContent(ctx context.Context, req Request) (json.RawMessage, error) {
	payload, err := c.requestBody(req)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, req.Model)
	resp, err := c.do(ctx, url, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read completion response: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("completion service returned invalid JSON")
	}
	return data, nil
}

// StreamGenerateContent opens a server-sent-events stream and forwards each
// data chunk. A malformed chunk terminates the stream after what already
// arrived; the consumer sees a closed channel either way.
func (c *GeminiClient) StreamGenerateContent(ctx context.Context, req Request) (<-chan json.RawMessage, error) {
	payload, err := c.requestBody(req)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", c.baseURL, req.Model)
	resp, err := c.do(ctx, url, payload)
	if err != nil {
		return nil, err
	}

	out := make(chan json.RawMessage)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				continue
			}
			if !json.Valid([]byte(data)) {
				log.Printf("completion: unparseable stream chunk, terminating stream")
				return
			}
			select {
			case out <- json.RawMessage(data):
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Printf("completion: stream read failed: %v", err)
		}
	}()
	return out, nil
}
