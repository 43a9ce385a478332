// Package backend defines the Inference Backend contract of spec.md §4.4:
// the external collaborator that turns a transcript into a stream of
// generation events. The gateway core never touches weights, tokenizers, or
// KV caches directly — it only consumes this interface. This package also
// provides a deterministic in-memory stub (for tests) and two illustrative
// network-backed adapters grounded on the teacher's internal/llm clients.
package backend

import (
	"context"

	"github.com/dinoki-ai/osaurus/internal/wire"
)

// Params carries the generation parameters of spec.md §4.4. Pointer fields
// are optional and forwarded verbatim to the backend; the core neither
// interprets nor validates them beyond what spec.md §3 requires.
type Params struct {
	Temperature      float64
	MaxTokens        int
	TopP             *float64
	KVBits           *int
	KVGroupSize      *int
	QuantizedKVStart *int
	MaxKVSize        *int
	PrefillStepSize  *int
	SessionID        string
}

// GenerationEvent is the internal event stream element of spec.md §3:
// exactly one of Chunk or ToolCall is meaningful per event, selected by
// Kind.
type GenerationEvent struct {
	Kind     EventKind
	Chunk    string
	ToolCall wire.ToolCall
}

// EventKind discriminates a GenerationEvent's payload.
type EventKind int

const (
	EventChunk EventKind = iota
	EventToolCall
)

// Result is the outcome of a non-streaming GenerateOnce call.
type Result struct {
	Text      string
	ToolCall  *wire.ToolCall
	Truncated bool // true if generation stopped because max_tokens was hit
	InputTokens  int
	OutputTokens int
}

// Backend is the external collaborator contract. Implementations must
// honor context cancellation: when the caller stops iterating the
// StreamEvents channel or cancels ctx, any outstanding backend work must be
// released promptly.
type Backend interface {
	// StreamEvents returns a channel of generation events for a streaming
	// request. The channel is closed when generation ends (naturally, via
	// an emitted tool call, or because ctx was canceled). Implementations
	// must not send on the channel after it would block forever past ctx
	// cancellation.
	StreamEvents(ctx context.Context, messages []wire.Message, tools []wire.ToolDefinition, toolChoice wire.ToolChoice, params Params) (<-chan GenerationEvent, error)

	// GenerateOnce runs a non-streaming completion to finish.
	GenerateOnce(ctx context.Context, messages []wire.Message, tools []wire.ToolDefinition, toolChoice wire.ToolChoice, params Params) (Result, error)
}
