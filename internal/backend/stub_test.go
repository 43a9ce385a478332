package backend

import (
	"context"
	"testing"
	"time"

	"github.com/dinoki-ai/osaurus/internal/wire"
)

func TestStub_StreamEvents(t *testing.T) {
	s := &Stub{Chunks: []string{"he", "llo"}}
	ch, err := s.StreamEvents(context.Background(), nil, nil, wire.ToolChoice{}, Params{})
	if err != nil {
		t.Fatalf("StreamEvents: %v", err)
	}

	var got []string
	for ev := range ch {
		if ev.Kind != EventChunk {
			t.Fatalf("unexpected event kind %v", ev.Kind)
		}
		got = append(got, ev.Chunk)
	}
	if len(got) != 2 || got[0] != "he" || got[1] != "llo" {
		t.Errorf("got chunks %v, want [he llo]", got)
	}
}

func TestStub_StreamEvents_ToolCall(t *testing.T) {
	tc := &wire.ToolCall{ID: "call_1", ArgumentsJSON: `{"q":"x"}`}
	tc.Function.Name = "lookup"
	s := &Stub{Chunks: []string{"think"}, ToolCall: tc}

	ch, err := s.StreamEvents(context.Background(), nil, nil, wire.ToolChoice{}, Params{})
	if err != nil {
		t.Fatalf("StreamEvents: %v", err)
	}

	var events []GenerationEvent
	for ev := range ch {
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[1].Kind != EventToolCall || events[1].ToolCall.Function.Name != "lookup" {
		t.Errorf("last event = %+v, want tool call lookup", events[1])
	}
}

func TestStub_StreamEvents_Cancellation(t *testing.T) {
	s := &Stub{Chunks: []string{"a", "b", "c", "d", "e"}}
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.StreamEvents(ctx, nil, nil, wire.ToolChoice{}, Params{})
	if err != nil {
		t.Fatalf("StreamEvents: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		_ = ok
	case <-time.After(time.Second):
		t.Fatal("channel did not close promptly after cancellation")
	}
}

func TestStub_GenerateOnce(t *testing.T) {
	s := &Stub{Chunks: []string{"hi"}}
	result, err := s.GenerateOnce(context.Background(), nil, nil, wire.ToolChoice{}, Params{})
	if err != nil {
		t.Fatalf("GenerateOnce: %v", err)
	}
	if result.Text != "hi" {
		t.Errorf("GenerateOnce().Text = %q, want %q", result.Text, "hi")
	}
}

func TestStub_GenerateOnce_ToolCall(t *testing.T) {
	tc := &wire.ToolCall{ID: "call_1"}
	s := &Stub{ToolCall: tc}
	result, err := s.GenerateOnce(context.Background(), nil, nil, wire.ToolChoice{}, Params{})
	if err != nil {
		t.Fatalf("GenerateOnce: %v", err)
	}
	if result.ToolCall == nil || result.ToolCall.ID != "call_1" {
		t.Errorf("GenerateOnce().ToolCall = %+v, want call_1", result.ToolCall)
	}
}
