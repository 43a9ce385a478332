package toolproxy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dinoki-ai/osaurus/internal/wire"
)

// ChatCompleter is the subset of gateway.Pipeline this package depends on,
// kept narrow so tests can substitute a stub without constructing a full
// Pipeline.
type ChatCompleter interface {
	CompleteChat(ctx context.Context, req wire.ChatCompletionRequest) (wire.ChatCompletionResponse, error)
}

// toolName is the single tool this bridge exposes. A stdio client with many
// tools to proxy would register one entry per tool; osaurus only ever
// proxies its own chat pipeline, so one fixed name is sufficient.
const toolName = "chat_completions"

// Server answers JSON-RPC requests read from an io.Reader, one
// newline-delimited message at a time, writing responses to an io.Writer.
// It implements "initialize", "tools/list", and "tools/call" — the minimal
// MCP-shaped surface needed to proxy non-streaming chat completions to a
// stdio-speaking client. Streaming is deliberately not offered here: MCP's
// request/response framing has no place for incremental deltas the way
// SSE/NDJSON does over HTTP, and a client wanting partial output should call
// the HTTP surface directly instead.
type Server struct {
	Pipeline ChatCompleter
	Logger   *slog.Logger

	// mu serializes writes to the output stream: a "tools/call" handler may
	// run concurrently with another request's handler, but stdio, like the
	// teacher's StdioTransport, is inherently sequential on the wire.
	mu sync.Mutex
}

// NewServer creates a stdio JSON-RPC server proxying pipeline.
func NewServer(pipeline ChatCompleter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Pipeline: pipeline, Logger: logger.With("component", "toolproxy")}
}

// Run reads newline-delimited JSON-RPC requests from r and writes responses
// to w until r is exhausted, the scanner fails (for example on a line over
// its 4 MiB limit), or ctx is canceled. A line that is not valid JSON gets a
// parse-error response and reading continues. Each request is dispatched in its own goroutine so a slow
// tools/call does not block later requests already waiting to be read; ctx
// cancellation recovers the reader by returning rather than by interrupting
// a blocked read, since stdin has no native context awareness.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Copy before handing off: scanner.Bytes() is reused on the next Scan.
		msg := make([]byte, len(line))
		copy(msg, line)

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleLine(ctx, msg, w)
		}()
	}
	return scanner.Err()
}

func (s *Server) handleLine(ctx context.Context, line []byte, w io.Writer) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.write(w, newErrorResponse(0, codeParseError, "parse error: "+err.Error()))
		return
	}
	if req.JSONRPC != jsonrpcVersion || req.Method == "" {
		s.write(w, newErrorResponse(req.ID, codeInvalidRequest, "invalid request"))
		return
	}

	var resp Response
	switch req.Method {
	case "initialize":
		resp = s.handleInitialize(req)
	case "tools/list":
		resp = s.handleToolsList(req)
	case "tools/call":
		resp = s.handleToolsCall(ctx, req)
	default:
		resp = newErrorResponse(req.ID, codeMethodNotFound, "unknown method "+req.Method)
	}
	s.write(w, resp)
}

func (s *Server) write(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.Logger.Error("marshal jsonrpc response", "error", err)
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := w.Write(data); err != nil {
		s.Logger.Error("write jsonrpc response", "error", err)
	}
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      serverInfo     `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (s *Server) handleInitialize(req Request) Response {
	return newResultResponse(req.ID, initializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo:      serverInfo{Name: "osaurus", Version: "1"},
		Capabilities:    map[string]any{"tools": map[string]any{}},
	})
}

type toolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []toolDescriptor `json:"tools"`
}

func (s *Server) handleToolsList(req Request) Response {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"model":       map[string]any{"type": "string"},
			"messages":    map[string]any{"type": "array"},
			"temperature": map[string]any{"type": "number"},
			"max_tokens":  map[string]any{"type": "integer"},
		},
		"required": []string{"messages"},
	}
	return newResultResponse(req.ID, toolsListResult{
		Tools: []toolDescriptor{{
			Name:        toolName,
			Description: "Run a non-streaming chat completion through the osaurus gateway.",
			InputSchema: schema,
		}},
	})
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// chatToolArguments is the subset of wire.ChatCompletionRequest a
// "tools/call" invocation of toolName may supply; stream is never honored
// here regardless of what a caller passes.
type chatToolArguments struct {
	Model       string        `json:"model"`
	Messages    []wire.Message `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
}

type toolsCallResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Server) handleToolsCall(ctx context.Context, req Request) Response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return newErrorResponse(req.ID, codeInvalidParams, "invalid params: "+err.Error())
	}
	if params.Name != toolName {
		return newErrorResponse(req.ID, codeInvalidParams, "unknown tool "+params.Name)
	}

	var args chatToolArguments
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return newErrorResponse(req.ID, codeInvalidParams, "invalid tool arguments: "+err.Error())
	}
	if len(args.Messages) == 0 {
		return newErrorResponse(req.ID, codeInvalidParams, "messages must not be empty")
	}

	chatReq := wire.ChatCompletionRequest{
		Model:       args.Model,
		Messages:    args.Messages,
		Temperature: args.Temperature,
		MaxTokens:   args.MaxTokens,
		TopP:        args.TopP,
	}

	resp, err := s.Pipeline.CompleteChat(ctx, chatReq)
	if err != nil {
		return newResultResponse(req.ID, toolsCallResult{
			IsError: true,
			Content: []toolContent{{Type: "text", Text: fmt.Sprintf("chat completion failed: %v", err)}},
		})
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return newResultResponse(req.ID, toolsCallResult{Content: []toolContent{{Type: "text", Text: text}}})
}
