package wire

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
)

var completionIDPattern = regexp.MustCompile(`^chatcmpl-[A-Za-z0-9]{8}$`)
var toolCallIDPattern = regexp.MustCompile(`^call_[A-Za-z0-9]{8}$`)

func TestNewCompletionID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := NewCompletionID()
		if !completionIDPattern.MatchString(id) {
			t.Fatalf("NewCompletionID() = %q, does not match %s", id, completionIDPattern)
		}
	}
}

func TestNewToolCallID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := NewToolCallID()
		if !toolCallIDPattern.MatchString(id) {
			t.Fatalf("NewToolCallID() = %q, does not match %s", id, toolCallIDPattern)
		}
	}
}

func TestToolCall_MarshalJSON_PreservesRawArguments(t *testing.T) {
	tc := ToolCall{
		ID:            "call_abc12345",
		Type:          "function",
		ArgumentsJSON: `{"z":1,"a":2}`,
	}
	tc.Function.Name = "lookup"

	data, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	// The arguments string must appear byte-for-byte, not re-encoded with
	// sorted keys.
	if !strings.Contains(string(data), `"arguments":"{\"z\":1,\"a\":2}"`) {
		t.Errorf("marshaled tool call = %s, arguments not preserved verbatim", data)
	}
}

func TestChatCompletionRequest_ResolvedToolChoice(t *testing.T) {
	tests := []struct {
		name string
		req  ChatCompletionRequest
		want ToolChoice
	}{
		{
			name: "no tools, no choice",
			req:  ChatCompletionRequest{},
			want: ToolChoice{Mode: "none"},
		},
		{
			name: "tools present, no explicit choice defaults to auto",
			req:  ChatCompletionRequest{Tools: []ToolDefinition{{}}},
			want: ToolChoice{Mode: "auto"},
		},
		{
			name: "explicit none",
			req:  ChatCompletionRequest{Tools: []ToolDefinition{{}}, ToolChoiceRaw: "none"},
			want: ToolChoice{Mode: "none"},
		},
		{
			name: "explicit function",
			req: ChatCompletionRequest{
				Tools: []ToolDefinition{{}},
				ToolChoiceRaw: map[string]any{
					"type":     "function",
					"function": map[string]any{"name": "lookup"},
				},
			},
			want: ToolChoice{Mode: "function", FunctionName: "lookup"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.req.ResolvedToolChoice()
			if got != tt.want {
				t.Errorf("ResolvedToolChoice() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChatCompletionRequest_Defaults(t *testing.T) {
	var req ChatCompletionRequest
	temp, maxTok := req.Defaults()
	if temp != 0.7 || maxTok != 2048 {
		t.Errorf("Defaults() = (%v, %v), want (0.7, 2048)", temp, maxTok)
	}

	custom := 1.2
	customTokens := 50
	req = ChatCompletionRequest{Temperature: &custom, MaxTokens: &customTokens}
	temp, maxTok = req.Defaults()
	if temp != 1.2 || maxTok != 50 {
		t.Errorf("Defaults() with overrides = (%v, %v), want (1.2, 50)", temp, maxTok)
	}
}

func TestOllamaChatRequest_StreamRequested(t *testing.T) {
	var req OllamaChatRequest
	if !req.StreamRequested() {
		t.Error("StreamRequested() with nil Stream should default true")
	}
	f := false
	req.Stream = &f
	if req.StreamRequested() {
		t.Error("StreamRequested() with Stream=false should be false")
	}
}

func TestRenderBanner_EscapesValues(t *testing.T) {
	out := RenderBanner(map[string]string{"version": "<script>alert(1)</script>"})
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Errorf("RenderBanner did not escape HTML-significant input: %s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Errorf("RenderBanner output missing escaped form: %s", out)
	}
}

func TestEncoder_Reuse(t *testing.T) {
	enc := NewEncoder()
	first, err := enc.Encode(map[string]string{"a": "1"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	firstCopy := append([]byte(nil), first...)

	second, err := enc.Encode(map[string]string{"b": "2"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(second) == string(firstCopy) {
		t.Fatal("second Encode should differ from first")
	}
}
