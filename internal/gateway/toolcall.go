package gateway

import "github.com/dinoki-ai/osaurus/internal/wire"

// probeState is the tool-call stream translator's state, per spec.md
// §4.6/§9: a client committed to streaming content deltas cannot be told
// afterwards "actually that was a tool call", so early chunks are held
// back until either a tool call event arrives or the probe window closes.
type probeState int

const (
	waitingForFirstEvent probeState = iota
	streamingContent
	emittingToolCall
)

// ToolCallTranslator decides, chunk by chunk, whether a generation is
// plain content or a tool call, without ever emitting content deltas that
// later turn out to precede a tool call. It buffers up to probeBytes of
// text (or probeTokens chunks, whichever comes first) before committing to
// the streaming-content state.
type ToolCallTranslator struct {
	probeBytes  int
	probeTokens int

	state     probeState
	buf       string
	tokenSeen int
}

// NewToolCallTranslator builds a translator with the given probe window.
// A non-positive probeBytes/probeTokens disables that bound (the other
// bound still applies); if both are non-positive — the caller's way of
// saying "no tools in play" per spec.md §8's boundary behavior for
// tool_choice:"none" — the translator starts already in streamingContent,
// so chunks stream immediately with no probe buffering at all.
func NewToolCallTranslator(probeBytes, probeTokens int) *ToolCallTranslator {
	t := &ToolCallTranslator{probeBytes: probeBytes, probeTokens: probeTokens}
	if probeBytes <= 0 && probeTokens <= 0 {
		t.state = streamingContent
	}
	return t
}

// ProbeResult reports what the translator decided to do with one incoming
// event.
type ProbeResult struct {
	// Flush is text that is now safe to stream as a content delta.
	Flush string
	// FlushReady is true when Flush is content to stream: a non-empty chunk
	// once streaming, the probe buffer released when the probe window
	// closes, or non-empty leftover text at Finish. It is false while the
	// probe is still buffering and once a tool call was committed.
	FlushReady bool
	// ToolCall is set when the translator has committed to tool-call
	// emission; the buffered probe text is discarded, matching spec.md
	// §4.6's rule that tool-call preambles are never shown as content.
	ToolCall *wire.ToolCall
}

// Chunk processes one text chunk from the backend.
func (t *ToolCallTranslator) Chunk(text string) ProbeResult {
	switch t.state {
	case streamingContent:
		return ProbeResult{Flush: text, FlushReady: text != ""}
	case emittingToolCall:
		// Terminal state; any further chunk is dropped.
		return ProbeResult{}
	default: // waitingForFirstEvent
		t.buf += text
		t.tokenSeen++
		if (t.probeBytes > 0 && len(t.buf) >= t.probeBytes) || (t.probeTokens > 0 && t.tokenSeen >= t.probeTokens) {
			t.state = streamingContent
			out := t.buf
			t.buf = ""
			return ProbeResult{Flush: out, FlushReady: true}
		}
		return ProbeResult{}
	}
}

// ToolCallEvent processes a tool-call event from the backend, discarding
// any probe-buffered text (it was pre-tool-call preamble, never shown).
func (t *ToolCallTranslator) ToolCallEvent(tc wire.ToolCall) ProbeResult {
	t.state = emittingToolCall
	t.buf = ""
	return ProbeResult{ToolCall: &tc}
}

// Finish is called when the backend's event stream ends with no tool call
// having been seen; it flushes whatever is still probe-buffered as final
// content.
func (t *ToolCallTranslator) Finish() ProbeResult {
	if t.state == emittingToolCall {
		return ProbeResult{}
	}
	out := t.buf
	t.buf = ""
	if t.state == waitingForFirstEvent {
		t.state = streamingContent
	}
	return ProbeResult{Flush: out, FlushReady: out != ""}
}

// InToolCallState reports whether the translator has committed to
// tool-call emission.
func (t *ToolCallTranslator) InToolCallState() bool {
	return t.state == emittingToolCall
}
