package backend

import (
	"context"

	"github.com/dinoki-ai/osaurus/internal/wire"
)

// Stub is a deterministic in-memory Backend used by gateway tests (spec.md
// §8's end-to-end scenarios specify the backend as "a stub"). It replays a
// fixed script of chunks, optionally followed by a single tool call.
type Stub struct {
	// Chunks are emitted in order before ToolCall (if any).
	Chunks []string
	// ToolCall, if non-nil, is emitted as the terminal event after Chunks.
	ToolCall *wire.ToolCall
	// Truncated marks GenerateOnce's Result as hitting max_tokens.
	Truncated bool
}

// StreamEvents replays Chunks then ToolCall (if set) onto a buffered
// channel, honoring ctx cancellation between sends.
func (s *Stub) StreamEvents(ctx context.Context, _ []wire.Message, _ []wire.ToolDefinition, _ wire.ToolChoice, _ Params) (<-chan GenerationEvent, error) {
	ch := make(chan GenerationEvent, len(s.Chunks)+1)
	go func() {
		defer close(ch)
		for _, c := range s.Chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- GenerationEvent{Kind: EventChunk, Chunk: c}:
			}
		}
		if s.ToolCall != nil {
			select {
			case <-ctx.Done():
			case ch <- GenerationEvent{Kind: EventToolCall, ToolCall: *s.ToolCall}:
			}
		}
	}()
	return ch, nil
}

// GenerateOnce concatenates Chunks (or returns ToolCall if set).
func (s *Stub) GenerateOnce(_ context.Context, _ []wire.Message, _ []wire.ToolDefinition, _ wire.ToolChoice, _ Params) (Result, error) {
	if s.ToolCall != nil {
		return Result{ToolCall: s.ToolCall}, nil
	}
	var text string
	for _, c := range s.Chunks {
		text += c
	}
	return Result{Text: text, Truncated: s.Truncated}, nil
}
