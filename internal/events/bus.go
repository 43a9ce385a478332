// Package events provides a publish/subscribe event bus for operational
// observability and control-plane signaling. Events flow from gateway
// components (the chat pipeline, the server lifecycle, the control
// plane) to subscribers (the generation-activity indicator, the local
// notification listener). The bus is nil-safe: calling Publish on a nil
// *Bus is a no-op, so components do not need guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceGateway identifies events from the chat pipeline (§4.5).
	SourceGateway = "gateway"
	// SourceServer identifies events from the server lifecycle (§4.8).
	SourceServer = "server"
	// SourceControl identifies events from the control plane's local
	// notification listener (§4.9).
	SourceControl = "control"
)

// Kind constants describe the type of event within a source.
const (
	// KindGenerationStart signals a chat request began generating.
	// Data: request_id, model, streaming.
	KindGenerationStart = "generation_start"
	// KindGenerationEnd signals a chat request's generation finished
	// (naturally, via stop sequence, timeout, or client disconnect).
	// Data: request_id, model, finish_reason.
	KindGenerationEnd = "generation_end"
	// KindToolCallEmitted signals the backend emitted a tool call.
	// Data: request_id, tool.
	KindToolCallEmitted = "tool_call_emitted"

	// KindServerStarting signals the listening socket is coming up.
	// Data: addr.
	KindServerStarting = "server_starting"
	// KindServerRunning signals the listener is bound and the server is
	// about to start serving it.
	// Data: addr.
	KindServerRunning = "server_running"
	// KindServerStopping signals a graceful shutdown has begun.
	// Data: addr.
	KindServerStopping = "server_stopping"
	// KindServerStopped signals the HTTP server has shut down.
	// Data: addr.
	KindServerStopped = "server_stopped"

	// KindControlServe is the local-broadcast "serve" notification.
	// Data: port, expose.
	KindControlServe = "control.serve"
	// KindControlStop is the local-broadcast "stop" notification.
	KindControlStop = "control.stop"
	// KindControlUI is the local-broadcast "ui" notification.
	KindControlUI = "control.ui"
	// KindControlToolsReload is the local-broadcast "toolsReload"
	// notification.
	KindControlToolsReload = "control.toolsReload"
)

// Event represents a single operational event published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs. This allows
	// Unsubscribe to accept <-chan Event (the caller's view) without
	// an illegal type conversion.
	recvToSend map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full — drop the event rather than block.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer; 64 is a reasonable default for
// WebSocket consumers.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
