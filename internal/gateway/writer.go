package gateway

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"

	"github.com/dinoki-ai/osaurus/internal/wire"
)

// Writer is the response-writer contract of spec.md §4.7: SSE and NDJSON
// share it so handlers never branch on content-type; they dispatch through
// whichever Writer the route selected. WriteToolCall only produces visible
// output on the SSE writer; per spec.md §4.6 the NDJSON writer has no
// tool-call wire representation and instead flushes pending text and
// terminates.
type Writer interface {
	// WriteHeaders sets the writer's framing headers, then sends the
	// status line.
	WriteHeaders(w http.ResponseWriter)
	// WriteRole emits the role prelude (a no-op for NDJSON).
	WriteRole(w http.ResponseWriter, model, id string, created int64)
	// WriteContent emits one content delta/line.
	WriteContent(w http.ResponseWriter, text, model, id string, created int64)
	// WriteToolCall emits the backend's tool call in whatever form this
	// writer supports, per spec.md §4.6.
	WriteToolCall(w http.ResponseWriter, tc wire.ToolCall, model, id string, created int64)
	// WriteFinish emits the terminal finish record with the given
	// finish_reason ("stop" or "length"; tool-call finish is handled by
	// WriteToolCall).
	WriteFinish(w http.ResponseWriter, model, id string, created int64, finishReason string)
	// WriteEnd emits the writer's terminal marker. Safe to call multiple
	// times; only the first call has effect.
	WriteEnd(w http.ResponseWriter)
}

// flusher is satisfied by the http.ResponseWriter implementations the
// gateway runs behind; streaming writes are useless without it.
type flusher interface {
	Flush()
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
}

// endGuard makes WriteEnd idempotent and lets every Write* method refuse to
// write to an ended stream, satisfying spec.md §4.7's "safe against
// writing to a closed connection" requirement.
type endGuard struct {
	mu    sync.Mutex
	ended bool
}

// tryWrite runs fn only if the stream has not ended. Returns false if the
// stream had already ended.
func (g *endGuard) tryWrite(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ended {
		return false
	}
	fn()
	return true
}

// end marks the stream ended and runs fn exactly once.
func (g *endGuard) end(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ended {
		return
	}
	g.ended = true
	fn()
}

// SSEWriter implements Writer for OpenAI-compatible Server-Sent Events
// streaming, per spec.md §4.7 and §6.1.
type SSEWriter struct {
	endGuard
	enc *wire.Encoder
}

// NewSSEWriter creates an SSE writer with its own reusable encode buffer.
func NewSSEWriter() *SSEWriter {
	return &SSEWriter{enc: wire.NewEncoder()}
}

func (s *SSEWriter) WriteHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	flush(w)
}

func (s *SSEWriter) writeChunk(w http.ResponseWriter, chunk wire.StreamChunk) {
	s.tryWrite(func() {
		data, err := s.enc.Encode(chunk)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", bytes.TrimRight(data, "\n"))
		flush(w)
	})
}

func (s *SSEWriter) WriteRole(w http.ResponseWriter, model, id string, created int64) {
	s.writeChunk(w, wire.StreamChunk{
		ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
		Choices: []wire.StreamChoice{{Index: 0, Delta: wire.Delta{Role: "assistant"}}},
	})
}

func (s *SSEWriter) WriteContent(w http.ResponseWriter, text, model, id string, created int64) {
	if text == "" {
		return
	}
	s.writeChunk(w, wire.StreamChunk{
		ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
		Choices: []wire.StreamChoice{{Index: 0, Delta: wire.Delta{Content: text}}},
	})
}

// WriteToolCall emits the four-step tool-call delta sequence of spec.md
// §4.6 followed by the terminal marker, as a single uninterrupted
// sequence of writes (all of them run inside one tryWrite call, so the
// writer's own mutex is held for the duration, per §5's ordering
// guarantees).
func (s *SSEWriter) WriteToolCall(w http.ResponseWriter, tc wire.ToolCall, model, id string, created int64) {
	s.tryWrite(func() {
		base := wire.StreamChunk{ID: id, Object: "chat.completion.chunk", Created: created, Model: model}

		idType := base
		idType.Choices = []wire.StreamChoice{{Index: 0, Delta: wire.Delta{
			ToolCalls: []wire.ToolCallDelta{{Index: 0, ID: tc.ID, Type: "function"}},
		}}}
		s.writeChunkLocked(w, idType)

		name := base
		name.Choices = []wire.StreamChoice{{Index: 0, Delta: wire.Delta{
			ToolCalls: []wire.ToolCallDelta{{Index: 0, Function: &wire.ToolCallFunctionDelta{Name: tc.Function.Name}}},
		}}}
		s.writeChunkLocked(w, name)

		args := base
		args.Choices = []wire.StreamChoice{{Index: 0, Delta: wire.Delta{
			ToolCalls: []wire.ToolCallDelta{{Index: 0, Function: &wire.ToolCallFunctionDelta{Arguments: tc.ArgumentsJSON}}},
		}}}
		s.writeChunkLocked(w, args)

		finish := "tool_calls"
		fin := base
		fin.Choices = []wire.StreamChoice{{Index: 0, Delta: wire.Delta{}, FinishReason: &finish}}
		s.writeChunkLocked(w, fin)
	})

	s.end(func() {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flush(w)
	})
}

// writeChunkLocked writes without re-acquiring endGuard; callers must
// already hold it via tryWrite/end.
func (s *SSEWriter) writeChunkLocked(w http.ResponseWriter, chunk wire.StreamChunk) {
	data, err := s.enc.Encode(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", bytes.TrimRight(data, "\n"))
	flush(w)
}

func (s *SSEWriter) WriteFinish(w http.ResponseWriter, model, id string, created int64, finishReason string) {
	s.tryWrite(func() {
		fin := wire.StreamChunk{
			ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
			Choices: []wire.StreamChoice{{Index: 0, Delta: wire.Delta{}, FinishReason: &finishReason}},
		}
		s.writeChunkLocked(w, fin)
	})
}

func (s *SSEWriter) WriteEnd(w http.ResponseWriter) {
	s.end(func() {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flush(w)
	})
}

// NDJSONWriter implements Writer for Ollama-compatible newline-delimited
// JSON streaming, per spec.md §4.7 and §6.1. It has no role prelude and no
// tool-call wire representation.
type NDJSONWriter struct {
	endGuard
	enc *wire.Encoder
}

// NewNDJSONWriter creates an NDJSON writer with its own reusable encode
// buffer.
func NewNDJSONWriter() *NDJSONWriter {
	return &NDJSONWriter{enc: wire.NewEncoder()}
}

func (n *NDJSONWriter) WriteHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flush(w)
}

// WriteRole is a no-op: the Ollama wire format carries no separate role
// prelude record.
func (n *NDJSONWriter) WriteRole(w http.ResponseWriter, model, id string, created int64) {}

func (n *NDJSONWriter) WriteContent(w http.ResponseWriter, text, model, id string, created int64) {
	if text == "" {
		return
	}
	n.tryWrite(func() {
		data, err := n.enc.Encode(wire.OllamaChatLine{Message: wire.OllamaMessage{Role: "assistant", Content: text}})
		if err != nil {
			return
		}
		w.Write(data)
		flush(w)
	})
}

// WriteToolCall implements spec.md §4.6's NDJSON behavior: flush any
// pending text is the caller's responsibility (it always calls
// WriteContent first if there is pending text); here we just terminate
// the stream, since NDJSON carries no tool-call semantics.
func (n *NDJSONWriter) WriteToolCall(w http.ResponseWriter, tc wire.ToolCall, model, id string, created int64) {
	n.WriteEnd(w)
}

func (n *NDJSONWriter) WriteFinish(w http.ResponseWriter, model, id string, created int64, finishReason string) {
	// The Ollama wire format folds finish into the terminal {done:true}
	// record; WriteEnd emits it.
}

func (n *NDJSONWriter) WriteEnd(w http.ResponseWriter) {
	n.end(func() {
		data, err := n.enc.Encode(wire.OllamaChatLine{Done: true})
		if err != nil {
			return
		}
		w.Write(data)
		flush(w)
	})
}

// WriteOneShotJSON implements spec.md §4.7's third path: a single JSON
// body for non-streaming requests, with Content-Length set.
func WriteOneShotJSON(w http.ResponseWriter, status int, v any) {
	enc := wire.NewEncoder()
	data, err := enc.Encode(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(status)
	w.Write(data)
}
