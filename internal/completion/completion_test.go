package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jun/workspacehub/internal/model"
)

func TestFactoryRouting(t *testing.T) {
	f := NewFactory("gk", "ok", "ak")

	cases := []struct {
		api  string
		want string
	}{
		{"google", "*completion.GeminiClient"},
		{"", "*completion.GeminiClient"},
		{"openai", "*completion.OpenAIClient"},
		{"anthropic", "*completion.AnthropicClient"},
	}
	for _, tc := range cases {
		client, err := f.ClientFor(model.AIModel{ID: "m", API: tc.api})
		if err != nil {
			t.Errorf("ClientFor(%q) failed: %v", tc.api, err)
			continue
		}
		if got := fmt.Sprintf("%T", client); got != tc.want {
			t.Errorf("ClientFor(%q) = %s, want %s", tc.api, got, tc.want)
		}
	}

	if _, err := f.ClientFor(model.AIModel{ID: "m", API: "cohere"}); err == nil {
		t.Error("unknown api accepted")
	}
}

func TestFactory_MissingKey(t *testing.T) {
	f := NewFactory("gk", "", "")
	if _, err := f.ClientFor(model.AIModel{ID: "m", API: "openai"}); err == nil {
		t.Error("openai client handed out without a key")
	}
	if _, err := f.ClientFor(model.AIModel{ID: "m", API: "anthropic"}); err == nil {
		t.Error("anthropic client handed out without a key")
	}
}

func TestGeminiGenerateContent(t *testing.T) {
	var gotPath string
	var gotBody map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"hello"}],"role":"model"}}]}`)
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", srv.URL)
	resp, err := c.GenerateContent(context.Background(), Request{
		Model:    "gemini-2.5-flash",
		Contents: []model.ChatMessage{{Role: "user", Parts: []model.Part{{Text: "hi"}}}},
		Config:   json.RawMessage(`{"systemInstruction":{"parts":[{"text":"be brief"}]}}`),
	})
	if err != nil {
		t.Fatalf("GenerateContent failed: %v", err)
	}

	if gotPath != "/gemini-2.5-flash:generateContent" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if _, ok := gotBody["contents"]; !ok {
		t.Error("upstream body missing contents")
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Error("generation config not merged into upstream body")
	}
	if !strings.Contains(string(resp), "hello") {
		t.Errorf("unexpected response %s", resp)
	}
}

func TestGeminiGenerateContent_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota"}}`)
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", srv.URL)
	_, err := c.GenerateContent(context.Background(), Request{Model: "m"})
	if err == nil {
		t.Fatal("expected error for non-200 upstream")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error does not carry upstream status: %v", err)
	}
}

func TestGeminiStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "alt=sse") {
			t.Errorf("stream request missing alt=sse: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"one\"}]}}]}\n\n")
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"two\"}]}}]}\n\n")
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", srv.URL)
	ch, err := c.StreamGenerateContent(context.Background(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("StreamGenerateContent failed: %v", err)
	}

	var chunks []string
	for chunk := range ch {
		chunks = append(chunks, string(chunk))
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0], "one") || !strings.Contains(chunks[1], "two") {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestGeminiStream_ParseErrorTerminates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"good\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {not json\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"never\"}]}}]}\n\n")
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", srv.URL)
	ch, err := c.StreamGenerateContent(context.Background(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("StreamGenerateContent failed: %v", err)
	}

	var chunks []string
	for chunk := range ch {
		chunks = append(chunks, string(chunk))
	}
	if len(chunks) != 1 || !strings.Contains(chunks[0], "good") {
		t.Errorf("expected only the chunk before the parse error, got %v", chunks)
	}
}

func TestTextChunkShape(t *testing.T) {
	var decoded struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
				Role string `json:"role"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(textChunk("hi there"), &decoded); err != nil {
		t.Fatalf("chunk does not decode: %v", err)
	}
	if len(decoded.Candidates) != 1 || decoded.Candidates[0].Content.Parts[0].Text != "hi there" {
		t.Errorf("unexpected chunk: %+v", decoded)
	}
	if decoded.Candidates[0].Content.Role != "model" {
		t.Errorf("chunk role = %q", decoded.Candidates[0].Content.Role)
	}
}

func TestFlattenText_SkipsInlineData(t *testing.T) {
	msg := model.ChatMessage{
		Role: "user",
		Parts: []model.Part{
			{Text: "first"},
			{InlineData: &model.InlineData{MIMEType: "image/png", Data: "aW1n"}},
			{Text: "second"},
		},
	}
	if got := flattenText(msg); got != "first\nsecond" {
		t.Errorf("flattenText = %q", got)
	}
}

func TestSystemText(t *testing.T) {
	cfg := json.RawMessage(`{"systemInstruction":{"parts":[{"text":"a"},{"text":"b"}]},"temperature":0.3}`)
	if got := systemText(cfg); got != "a\nb" {
		t.Errorf("systemText = %q", got)
	}
	if got := systemText(nil); got != "" {
		t.Errorf("systemText(nil) = %q", got)
	}
	if got := systemText(json.RawMessage(`{"temperature":1}`)); got != "" {
		t.Errorf("systemText without instruction = %q", got)
	}
}
