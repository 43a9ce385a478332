package wire

// ChatCompletionRequest is the OpenAI-compatible request body for
// POST /chat/completions, per spec.md §3 and §6.1. Unknown fields are
// ignored by json.Decoder's default behavior.
type ChatCompletionRequest struct {
	Model            string             `json:"model"`
	Messages         []Message          `json:"messages"`
	Temperature      *float64           `json:"temperature,omitempty"`
	MaxTokens        *int               `json:"max_tokens,omitempty"`
	TopP             *float64           `json:"top_p,omitempty"`
	FrequencyPenalty *float64           `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64           `json:"presence_penalty,omitempty"`
	Stop             []string           `json:"stop,omitempty"`
	N                *int               `json:"n,omitempty"`
	Stream           bool               `json:"stream,omitempty"`
	Tools            []ToolDefinition   `json:"tools,omitempty"`
	ToolChoiceRaw    any                `json:"tool_choice,omitempty"`
	SessionID        string             `json:"session_id,omitempty"`
}

// ResolvedToolChoice interprets ToolChoiceRaw, which may arrive as the
// bare strings "auto"/"none" or as {"type":"function","function":{"name":...}}.
func (r *ChatCompletionRequest) ResolvedToolChoice() ToolChoice {
	switch v := r.ToolChoiceRaw.(type) {
	case string:
		return ToolChoice{Mode: v}
	case map[string]any:
		fn, _ := v["function"].(map[string]any)
		name, _ := fn["name"].(string)
		return ToolChoice{Mode: "function", FunctionName: name}
	default:
		if len(r.Tools) > 0 {
			return ToolChoice{Mode: "auto"}
		}
		return ToolChoice{Mode: "none"}
	}
}

// Defaults fills the optional generation parameters per spec.md §3:
// temperature 0.7, max_tokens 2048.
func (r *ChatCompletionRequest) Defaults() (temperature float64, maxTokens int) {
	temperature = 0.7
	if r.Temperature != nil {
		temperature = *r.Temperature
	}
	maxTokens = 2048
	if r.MaxTokens != nil {
		maxTokens = *r.MaxTokens
	}
	return temperature, maxTokens
}

// Usage reports token counts for a non-streaming completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is a single completion choice in a non-streaming response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatCompletionResponse is the non-streaming response envelope of
// spec.md §3.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Delta carries the incremental fields of a streaming chunk. Tool calls are
// indexed by call position; the core only ever emits index 0.
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is a partial tool-call delta: the id/type pair, the
// function name, and the arguments fragment each arrive as separate
// deltas per spec.md §4.6.
type ToolCallDelta struct {
	Index    int                   `json:"index"`
	ID       string                `json:"id,omitempty"`
	Type     string                `json:"type,omitempty"`
	Function *ToolCallFunctionDelta `json:"function,omitempty"`
}

// ToolCallFunctionDelta carries either a function name or an arguments
// fragment, never both, mirroring the three-step translator sequence.
type ToolCallFunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// StreamChoice is a single choice within a streaming chunk.
type StreamChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

// StreamChunk is the streaming chat-completion-chunk envelope of
// spec.md §3.
type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

// ErrorDetail is the nested object of the wire error envelope.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// ErrorEnvelope is the `{error:{...}}` body returned for 4xx/5xx responses,
// per spec.md §7.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// NewError builds an ErrorEnvelope for the given HTTP status, message, and
// wire error type (e.g. "invalid_request_error", "internal_error").
func NewError(status int, message, errType string) ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorDetail{Message: message, Type: errType, Code: status}}
}

// NewModelError builds the 404 "unknown model" / "no service available"
// envelope, which additionally carries param:"model".
func NewModelError(status int, message string) ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorDetail{Message: message, Type: "invalid_request_error", Param: "model", Code: status}}
}

// ModelsResponse is the body of GET /models.
type ModelsResponse struct {
	Object string         `json:"object"`
	Data   []ModelsEntry `json:"data"`
}

// ModelsEntry is one entry of ModelsResponse.Data.
type ModelsEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}
