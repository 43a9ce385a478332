// Package wire implements the request/response schema and codec for the
// OpenAI-compatible and Ollama-compatible HTTP surfaces, plus the request
// identifier scheme both surfaces share. Decoding reads directly off the
// request body via json.Decoder; encoding reuses a per-request bytes.Buffer
// rather than allocating fresh buffers per write.
package wire

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a chat transcript. Content may be empty when the
// message carries tool output keyed by ToolCallID, or when an assistant
// message carries only ToolCalls.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes a callable tool offered to the model.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema names a tool and its JSON-schema parameters.
type ToolFunctionSchema struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ToolCall is a call the backend produced, matching one of the active
// ToolDefinitions. ArgumentsJSON is the verbatim JSON-serialized arguments
// object — never re-encoded, to preserve client-observed byte identity.
type ToolCall struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Function      ToolCallFunction
	ArgumentsJSON string `json:"-"`
}

// ToolCallFunction names the called function; Arguments is populated from
// ArgumentsJSON at encode time.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// MarshalJSON renders the ToolCall in OpenAI wire shape, copying
// ArgumentsJSON into Function.Arguments without re-parsing it.
func (tc ToolCall) MarshalJSON() ([]byte, error) {
	type wireToolCall struct {
		ID       string           `json:"id"`
		Type     string           `json:"type"`
		Function ToolCallFunction `json:"function"`
	}
	w := wireToolCall{
		ID:   tc.ID,
		Type: tc.Type,
		Function: ToolCallFunction{
			Name:      tc.Function.Name,
			Arguments: tc.ArgumentsJSON,
		},
	}
	return jsonMarshal(w)
}

// ToolChoice constrains which tool(s) the model may call.
type ToolChoice struct {
	// Mode is "auto", "none", or "function" (the zero value "" is treated
	// as "auto" when Tools is non-empty).
	Mode         string
	FunctionName string
}
