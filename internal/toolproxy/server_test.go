package toolproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dinoki-ai/osaurus/internal/wire"
)

type stubCompleter struct {
	resp wire.ChatCompletionResponse
	err  error
}

func (s *stubCompleter) CompleteChat(ctx context.Context, req wire.ChatCompletionRequest) (wire.ChatCompletionResponse, error) {
	return s.resp, s.err
}

func runLine(t *testing.T, s *Server, line string) Response {
	t.Helper()
	var out bytes.Buffer
	if err := s.Run(context.Background(), strings.NewReader(line+"\n"), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v, body: %s", err, out.String())
	}
	return resp
}

func TestInitialize(t *testing.T) {
	s := NewServer(&stubCompleter{}, nil)
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)

	if resp.Error != nil {
		t.Fatalf("Error = %v, want nil", resp.Error)
	}
	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.ServerInfo.Name != "osaurus" {
		t.Errorf("ServerInfo.Name = %q, want osaurus", result.ServerInfo.Name)
	}
}

func TestToolsList(t *testing.T) {
	s := NewServer(&stubCompleter{}, nil)
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`)

	var result toolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Tools) != 1 || result.Tools[0].Name != toolName {
		t.Fatalf("Tools = %+v, want one tool named %q", result.Tools, toolName)
	}
}

func TestToolsCall_Success(t *testing.T) {
	completer := &stubCompleter{resp: wire.ChatCompletionResponse{
		Choices: []wire.Choice{{Message: wire.Message{Role: wire.RoleAssistant, Content: "hi there"}}},
	}}
	s := NewServer(completer, nil)

	line := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"chat_completions","arguments":{"messages":[{"role":"user","content":"hi"}]}}}`
	resp := runLine(t, s, line)

	if resp.Error != nil {
		t.Fatalf("Error = %v, want nil", resp.Error)
	}
	var result toolsCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.IsError {
		t.Fatalf("IsError = true, want false")
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hi there" {
		t.Fatalf("Content = %+v, want text %q", result.Content, "hi there")
	}
}

func TestToolsCall_BackendError(t *testing.T) {
	s := NewServer(&stubCompleter{err: errors.New("no model available")}, nil)

	line := `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"chat_completions","arguments":{"messages":[{"role":"user","content":"hi"}]}}}`
	resp := runLine(t, s, line)

	var result toolsCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.IsError {
		t.Fatalf("IsError = false, want true")
	}
}

func TestToolsCall_EmptyMessagesRejected(t *testing.T) {
	s := NewServer(&stubCompleter{}, nil)

	line := `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"chat_completions","arguments":{"messages":[]}}}`
	resp := runLine(t, s, line)

	if resp.Error == nil {
		t.Fatal("Error = nil, want invalid params error")
	}
	if resp.Error.Code != codeInvalidParams {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, codeInvalidParams)
	}
}

func TestUnknownMethod(t *testing.T) {
	s := NewServer(&stubCompleter{}, nil)
	resp := runLine(t, s, `{"jsonrpc":"2.0","id":6,"method":"bogus","params":{}}`)

	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("Error = %v, want method-not-found", resp.Error)
	}
}

func TestUnknownTool(t *testing.T) {
	s := NewServer(&stubCompleter{}, nil)
	line := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"not_a_tool","arguments":{}}}`
	resp := runLine(t, s, line)

	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("Error = %v, want invalid-params for unknown tool", resp.Error)
	}
}
