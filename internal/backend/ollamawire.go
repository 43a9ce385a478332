package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dinoki-ai/osaurus/internal/httpkit"
	"github.com/dinoki-ai/osaurus/internal/wire"
)

// OllamaBackend is a network-backed Backend adapter that speaks the Ollama
// /api/chat wire protocol, grounded on the teacher's internal/llm.OllamaClient:
// same httpkit-built client with a long ResponseHeaderTimeout (local models
// can take a while to start producing tokens) and the same NDJSON decode
// loop shape, adapted to emit backend.GenerationEvent instead of invoking a
// token callback directly.
type OllamaBackend struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaBackend creates an Ollama-wire backend adapter pointed at
// baseURL (e.g. "http://localhost:11434").
func NewOllamaBackend(baseURL string, logger *slog.Logger) *OllamaBackend {
	if logger == nil {
		logger = slog.Default()
	}
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 5 * time.Minute
	return &OllamaBackend{
		baseURL: baseURL,
		logger:  logger.With("backend", "ollama"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(5*time.Minute),
			httpkit.WithTransport(t),
			httpkit.WithRetry(3, 2*time.Second),
			httpkit.WithLogger(logger),
		),
	}
}

type ollamaWireMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaWireRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaWireMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaWireOptions   `json:"options,omitempty"`
}

type ollamaWireOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

type ollamaWireChunk struct {
	Message         ollamaWireMessage `json:"message"`
	Done            bool              `json:"done"`
	PromptEvalCount int               `json:"prompt_eval_count,omitempty"`
	EvalCount       int               `json:"eval_count,omitempty"`
}

func toOllamaMessages(messages []wire.Message) []ollamaWireMessage {
	out := make([]ollamaWireMessage, len(messages))
	for i, m := range messages {
		out[i] = ollamaWireMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func (b *OllamaBackend) buildRequest(model string, messages []wire.Message, params Params, stream bool) ollamaWireRequest {
	opts := ollamaWireOptions{Temperature: params.Temperature, NumPredict: params.MaxTokens}
	if params.TopP != nil {
		opts.TopP = *params.TopP
	}
	return ollamaWireRequest{Model: model, Messages: toOllamaMessages(messages), Stream: stream, Options: opts}
}

func (b *OllamaBackend) post(ctx context.Context, body ollamaWireRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama API error %d: %s", resp.StatusCode, errBody)
	}
	return resp, nil
}

// StreamEvents streams NDJSON chunks from Ollama's /api/chat, translating
// each line into a GenerationEvent. The model name is read from ctx, where
// the gateway pipeline stores the resolved effective model via WithModel.
func (b *OllamaBackend) StreamEvents(ctx context.Context, messages []wire.Message, _ []wire.ToolDefinition, _ wire.ToolChoice, params Params) (<-chan GenerationEvent, error) {
	model := modelFromContext(ctx)
	resp, err := b.post(ctx, b.buildRequest(model, messages, params, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan GenerationEvent, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		// Closing the body unblocks a pending decoder.Decode() read when
		// the caller cancels ctx, since the decoder has no native context
		// awareness over an http.Response.Body.
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				resp.Body.Close()
			case <-done:
			}
		}()

		decoder := json.NewDecoder(resp.Body)
		var toolCalls []ollamaToolCall
		for {
			var chunk ollamaWireChunk
			if err := decoder.Decode(&chunk); err != nil {
				if err != io.EOF {
					b.logger.Debug("ollama stream decode ended", "error", err)
				}
				return
			}
			if chunk.Message.Content != "" {
				select {
				case <-ctx.Done():
					return
				case ch <- GenerationEvent{Kind: EventChunk, Chunk: chunk.Message.Content}:
				}
			}
			if len(chunk.Message.ToolCalls) > 0 {
				toolCalls = chunk.Message.ToolCalls
			}
			if chunk.Done {
				if len(toolCalls) > 0 {
					tc := toolCalls[0]
					argsJSON, _ := json.Marshal(tc.Function.Arguments)
					ev := GenerationEvent{
						Kind: EventToolCall,
						ToolCall: wire.ToolCall{
							ID:            tc.ID,
							Type:          "function",
							ArgumentsJSON: string(argsJSON),
						},
					}
					ev.ToolCall.Function.Name = tc.Function.Name
					select {
					case <-ctx.Done():
					case ch <- ev:
					}
				}
				return
			}
		}
	}()
	return ch, nil
}

// GenerateOnce runs a non-streaming /api/chat request.
func (b *OllamaBackend) GenerateOnce(ctx context.Context, messages []wire.Message, _ []wire.ToolDefinition, _ wire.ToolChoice, params Params) (Result, error) {
	model := modelFromContext(ctx)
	resp, err := b.post(ctx, b.buildRequest(model, messages, params, false))
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var chunk ollamaWireChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return Result{}, fmt.Errorf("decode ollama response: %w", err)
	}

	result := Result{
		Text:         chunk.Message.Content,
		InputTokens:  chunk.PromptEvalCount,
		OutputTokens: chunk.EvalCount,
	}
	if len(chunk.Message.ToolCalls) > 0 {
		tc := chunk.Message.ToolCalls[0]
		argsJSON, _ := json.Marshal(tc.Function.Arguments)
		tool := wire.ToolCall{ID: tc.ID, Type: "function", ArgumentsJSON: string(argsJSON)}
		tool.Function.Name = tc.Function.Name
		result.ToolCall = &tool
		result.Text = ""
	}
	return result, nil
}

type modelContextKey struct{}

// WithModel attaches the resolved effective model name to ctx, read back
// by StreamEvents/GenerateOnce. The Backend interface (spec.md §4.4) does
// not carry a model argument directly — model resolution happens in
// internal/modelservice one layer up — so the gateway pipeline threads it
// through the request context instead of widening the interface.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, modelContextKey{}, model)
}

func modelFromContext(ctx context.Context) string {
	m, _ := ctx.Value(modelContextKey{}).(string)
	return m
}
