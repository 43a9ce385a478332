package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dinoki-ai/osaurus/internal/httpkit"
	"github.com/dinoki-ai/osaurus/internal/wire"
)

// SSEBackend is a network-backed Backend adapter for SSE-streaming
// providers (Anthropic-shaped message/content-block event streams),
// grounded on the teacher's internal/llm.AnthropicClient.handleStreaming:
// a bufio.Scanner over "data: <json>" lines, accumulating text_delta
// content and input_json_delta tool-argument fragments per content block.
type SSEBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSSEBackend creates an SSE-wire backend adapter.
func NewSSEBackend(baseURL, apiKey string, logger *slog.Logger) *SSEBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSEBackend{
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger.With("backend", "sse"),
		httpClient: httpkit.NewClient(httpkit.WithTimeout(5*time.Minute), httpkit.WithLogger(logger)),
	}
}

type sseWireMessage struct {
	Role    string          `json:"role"`
	Content []sseWireBlock `json:"content"`
}

type sseWireBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type sseWireRequest struct {
	Model     string           `json:"model"`
	Messages  []sseWireMessage `json:"messages"`
	MaxTokens int              `json:"max_tokens"`
	Stream    bool             `json:"stream"`
}

type sseContentBlock struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type sseDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

type sseStreamEvent struct {
	Type         string           `json:"type"`
	ContentBlock *sseContentBlock `json:"content_block,omitempty"`
	Delta        *sseDelta        `json:"delta,omitempty"`
}

func toSSEMessages(messages []wire.Message) []sseWireMessage {
	out := make([]sseWireMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == wire.RoleSystem {
			continue
		}
		out = append(out, sseWireMessage{Role: string(m.Role), Content: []sseWireBlock{{Type: "text", Text: m.Content}}})
	}
	return out
}

func (b *SSEBackend) post(ctx context.Context, body sseWireRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal sse backend request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create sse backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sse backend request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		resp.Body.Close()
		return nil, fmt.Errorf("sse backend API error %d: %s", resp.StatusCode, errBody)
	}
	return resp, nil
}

// StreamEvents streams Anthropic-shaped SSE events, translating text_delta
// into content chunks and a completed tool_use block into a terminal
// ToolCall event.
func (b *SSEBackend) StreamEvents(ctx context.Context, messages []wire.Message, _ []wire.ToolDefinition, _ wire.ToolChoice, params Params) (<-chan GenerationEvent, error) {
	model := modelFromContext(ctx)
	resp, err := b.post(ctx, sseWireRequest{Model: model, Messages: toSSEMessages(messages), MaxTokens: params.MaxTokens, Stream: true})
	if err != nil {
		return nil, err
	}

	ch := make(chan GenerationEvent, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				resp.Body.Close()
			case <-done:
			}
		}()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var currentToolID, currentToolName string
		var toolJSON strings.Builder
		inToolBlock := false

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			if data == "" || data == "[DONE]" {
				continue
			}

			var event sseStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}

			switch event.Type {
			case "content_block_start":
				if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
					inToolBlock = true
					currentToolID = event.ContentBlock.ID
					currentToolName = event.ContentBlock.Name
					toolJSON.Reset()
				}
			case "content_block_delta":
				if event.Delta == nil {
					continue
				}
				switch event.Delta.Type {
				case "text_delta":
					select {
					case <-ctx.Done():
						return
					case ch <- GenerationEvent{Kind: EventChunk, Chunk: event.Delta.Text}:
					}
				case "input_json_delta":
					toolJSON.WriteString(event.Delta.PartialJSON)
				}
			case "content_block_stop":
				if inToolBlock {
					tc := wire.ToolCall{ID: currentToolID, Type: "function", ArgumentsJSON: toolJSON.String()}
					tc.Function.Name = currentToolName
					select {
					case <-ctx.Done():
					case ch <- GenerationEvent{Kind: EventToolCall, ToolCall: tc}:
					}
					inToolBlock = false
					return
				}
			}
		}
	}()
	return ch, nil
}

// GenerateOnce performs a non-streaming request to the same endpoint with
// stream:false and reads a single JSON body.
func (b *SSEBackend) GenerateOnce(ctx context.Context, messages []wire.Message, _ []wire.ToolDefinition, _ wire.ToolChoice, params Params) (Result, error) {
	model := modelFromContext(ctx)
	resp, err := b.post(ctx, sseWireRequest{Model: model, Messages: toSSEMessages(messages), MaxTokens: params.MaxTokens, Stream: false})
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var wireResp struct {
		Content []sseWireBlock `json:"content"`
		Usage   struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return Result{}, fmt.Errorf("decode sse backend response: %w", err)
	}

	var text strings.Builder
	for _, block := range wireResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Result{Text: text.String(), InputTokens: wireResp.Usage.InputTokens, OutputTokens: wireResp.Usage.OutputTokens}, nil
}
