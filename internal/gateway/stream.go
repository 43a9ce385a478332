package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/dinoki-ai/osaurus/internal/backend"
	"github.com/dinoki-ai/osaurus/internal/events"
	"github.com/dinoki-ai/osaurus/internal/usage"
	"github.com/dinoki-ai/osaurus/internal/wire"
)

// runStream drives one streaming generation end to end: it opens the
// backend's event channel, threads each chunk through the tool-call
// probe, the stop-sequence detector, and the micro-batcher, and writes
// the result through writer. It implements spec.md §4.5's stream loop and
// §4.5.2's single-in-flight-timer micro-batching policy.
func (p *Pipeline) runStream(ctx context.Context, w http.ResponseWriter, writer Writer, rr *resolvedRequest, model, id string) {
	created := time.Now().Unix()

	streamCtx := contextWithModel(ctx, rr)
	ch, err := p.Backend.StreamEvents(streamCtx, rr.messages, rr.tools, rr.toolChoice, rr.params)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), "backend_error")
		return
	}

	p.Bus.Publish(events.Event{Source: events.SourceGateway, Kind: events.KindGenerationStart,
		Data: map[string]any{"request_id": rr.requestID, "model": model, "streaming": true}})

	writer.WriteHeaders(w)
	writer.WriteRole(w, model, id, created)

	// spec.md §8: "tools present with tool_choice:none disables the probe
	// phase and behaves as free streaming" — the same holds when there are
	// no tools at all, since there is nothing for a probe to be guarding
	// against.
	probeBytes, probeTokens := p.Config.ToolProbeBytes, p.Config.ToolProbeTokens
	if len(rr.tools) == 0 || rr.toolChoice.Mode == "none" {
		probeBytes, probeTokens = 0, 0
	}
	translator := NewToolCallTranslator(probeBytes, probeTokens)
	batcher := NewMicrobatcher(p.Config.StreamBatchChars)
	stopDet := NewStopDetector(rr.stop)
	maxDelay := time.Duration(p.Config.StreamBatchMillis) * time.Millisecond

	timer := time.NewTimer(maxDelay)
	if !timer.Stop() {
		<-timer.C
	}
	timerActive := false

	stopTimer := func() {
		if timerActive {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timerActive = false
		}
	}
	armTimer := func() {
		if !timerActive && batcher.Pending() {
			timer.Reset(maxDelay)
			timerActive = true
		}
	}
	flushBatch := func(text string) {
		if text == "" {
			return
		}
		writer.WriteContent(w, text, model, id, created)
	}

	finishReason := "stop"
	toolCallEmitted := false

loop:
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				break loop
			}
			switch ev.Kind {
			case backend.EventChunk:
				probe := translator.Chunk(ev.Chunk)
				if !probe.FlushReady {
					continue
				}
				emit, hit, _ := stopDet.Feed(probe.Flush)
				out, ready := batcher.Add(emit)
				if hit {
					// A stop sequence was just found: flush everything
					// accumulated so far regardless of the size threshold,
					// since nothing further will ever reach the client.
					stopTimer()
					if !ready {
						out, ready = batcher.Drain()
					}
					if ready {
						flushBatch(out)
					}
					break loop
				}
				if ready {
					stopTimer()
					flushBatch(out)
				} else {
					armTimer()
				}
			case backend.EventToolCall:
				probe := translator.ToolCallEvent(ev.ToolCall)
				stopTimer()
				if out, ready := batcher.Drain(); ready {
					flushBatch(out)
				}
				writer.WriteToolCall(w, *probe.ToolCall, model, id, created)
				toolCallEmitted = true
				break loop
			}
		case <-timer.C:
			timerActive = false
			if out, ready := batcher.Drain(); ready {
				flushBatch(out)
			}
		case <-ctx.Done():
			break loop
		}
	}

	if !toolCallEmitted {
		final := translator.Finish()
		if final.FlushReady {
			emit, hit, _ := stopDet.Feed(final.Flush)
			if hit {
				finishReason = "stop"
			}
			if out, ready := batcher.Add(emit); ready {
				flushBatch(out)
			}
		}
		if tail := stopDet.Drain(); tail != "" {
			if out, ready := batcher.Add(tail); ready {
				flushBatch(out)
			}
		}
		if out, ready := batcher.Drain(); ready {
			flushBatch(out)
		}
		writer.WriteFinish(w, model, id, created, finishReason)
	}
	writer.WriteEnd(w)

	p.Bus.Publish(events.Event{Source: events.SourceGateway, Kind: events.KindGenerationEnd,
		Data: map[string]any{"request_id": rr.requestID, "model": model, "finish_reason": finishReason}})
}

// runOnce drives one non-streaming generation and returns the wire
// response envelope, implementing spec.md §4.7's one-shot JSON path.
func (p *Pipeline) runOnce(ctx context.Context, rr *resolvedRequest, model, id string) (wire.ChatCompletionResponse, error) {
	onceCtx := contextWithModel(ctx, rr)
	p.Bus.Publish(events.Event{Source: events.SourceGateway, Kind: events.KindGenerationStart,
		Data: map[string]any{"request_id": rr.requestID, "model": model, "streaming": false}})

	result, err := p.Backend.GenerateOnce(onceCtx, rr.messages, rr.tools, rr.toolChoice, rr.params)
	if err != nil {
		return wire.ChatCompletionResponse{}, err
	}

	finishReason := "stop"
	message := wire.Message{Role: wire.RoleAssistant, Content: result.Text}
	if result.ToolCall != nil {
		message.ToolCalls = []wire.ToolCall{*result.ToolCall}
		finishReason = "tool_calls"
	} else if result.Truncated {
		finishReason = "length"
	}

	// spec.md §4.5: fall back to a len/4 approximation when the backend
	// didn't report a token count of its own.
	if result.InputTokens == 0 {
		for _, m := range rr.messages {
			result.InputTokens += len(m.Content) / 4
		}
	}
	if result.OutputTokens == 0 {
		result.OutputTokens = len(result.Text) / 4
	}

	p.Bus.Publish(events.Event{Source: events.SourceGateway, Kind: events.KindGenerationEnd,
		Data: map[string]any{"request_id": rr.requestID, "model": model, "finish_reason": finishReason}})

	if p.Usage != nil {
		cost := usage.ComputeCost(model, result.InputTokens, result.OutputTokens, p.Config.Pricing)
		_ = p.Usage.Record(ctx, usage.Record{
			RequestID:    rr.requestID,
			SessionID:    rr.params.SessionID,
			Model:        model,
			Provider:     usage.ResolveProvider(model),
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
			CostUSD:      cost,
			Role:         "interactive",
		})
	}

	return wire.ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []wire.Choice{{Index: 0, Message: message, FinishReason: finishReason}},
		Usage: wire.Usage{
			PromptTokens:     result.InputTokens,
			CompletionTokens: result.OutputTokens,
			TotalTokens:      result.InputTokens + result.OutputTokens,
		},
	}, nil
}
