package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dinoki-ai/osaurus/internal/backend"
	"github.com/dinoki-ai/osaurus/internal/config"
	"github.com/dinoki-ai/osaurus/internal/httprouter"
	"github.com/dinoki-ai/osaurus/internal/modelservice"
	"github.com/dinoki-ai/osaurus/internal/wire"
)

func testAvailability() AvailabilityFunc {
	return func() modelservice.Availability {
		return modelservice.Availability{SystemDefault: true, InstalledModels: []string{"llama3"}}
	}
}

func newTestPipeline(b backend.Backend) *Pipeline {
	cfg := config.Default()
	return NewPipeline(b, cfg, testAvailability(), nil, nil, nil)
}

func TestHandleChatCompletions_NonStreaming(t *testing.T) {
	p := newTestPipeline(&backend.Stub{Chunks: []string{"hello ", "world"}})
	rt := httprouter.New(httprouter.CORSConfig{})
	p.RegisterRoutes(rt)

	body := strings.NewReader(`{"model":"foundation","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp wire.ChatCompletionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v, body: %s", err, w.Body.String())
	}
	if resp.Choices[0].Message.Content != "hello world" {
		t.Errorf("content = %q", resp.Choices[0].Message.Content)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason = %q", resp.Choices[0].FinishReason)
	}
}

func TestHandleChatCompletions_Streaming(t *testing.T) {
	p := newTestPipeline(&backend.Stub{Chunks: []string{"he", "llo"}})
	rt := httprouter.New(httprouter.CORSConfig{})
	p.RegisterRoutes(rt)

	body := strings.NewReader(`{"model":"foundation","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	out := w.Body.String()
	if !strings.Contains(out, `"role":"assistant"`) {
		t.Errorf("missing role prelude: %s", out)
	}
	if !strings.Contains(out, "hello") && !(strings.Contains(out, "he") && strings.Contains(out, "llo")) {
		t.Errorf("missing streamed content: %s", out)
	}
	if !strings.Contains(out, "[DONE]") {
		t.Errorf("missing terminal marker: %s", out)
	}
}

// TestHandleChatCompletions_Streaming_NoToolsSkipsProbe guards against
// holding every chunk until stream end when no tools are in play: with no
// tools, NewToolCallTranslator must be constructed with a disabled probe
// window (see runStream), so content is streamed as it arrives, in at least
// two deltas ("he" first, then the micro-batched rest), rather than being
// coalesced into one flush at Finish().
func TestHandleChatCompletions_Streaming_NoToolsSkipsProbe(t *testing.T) {
	p := newTestPipeline(&backend.Stub{Chunks: []string{"he", "llo", " world"}})
	rt := httprouter.New(httprouter.CORSConfig{})
	p.RegisterRoutes(rt)

	body := strings.NewReader(`{"model":"foundation","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	contentFrames := strings.Count(w.Body.String(), `"content":"`)
	if contentFrames < 2 {
		t.Errorf("got %d content deltas, want >= 2 (chunks should stream immediately, not buffer until Finish): %s", contentFrames, w.Body.String())
	}
}

func TestHandleChatCompletions_ToolCall(t *testing.T) {
	tc := &wire.ToolCall{ID: "call_1", ArgumentsJSON: `{"q":"x"}`}
	tc.Function.Name = "lookup"
	p := newTestPipeline(&backend.Stub{ToolCall: tc})
	rt := httprouter.New(httprouter.CORSConfig{})
	p.RegisterRoutes(rt)

	body := strings.NewReader(`{"model":"foundation","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	out := w.Body.String()
	if !strings.Contains(out, `"name":"lookup"`) || !strings.Contains(out, `"finish_reason":"tool_calls"`) {
		t.Errorf("missing tool call content: %s", out)
	}
}

func TestHandleChatCompletions_EmptyMessages(t *testing.T) {
	p := newTestPipeline(&backend.Stub{})
	rt := httprouter.New(httprouter.CORSConfig{})
	p.RegisterRoutes(rt)

	body := strings.NewReader(`{"model":"foundation","messages":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"type":"invalid_request_error"`) {
		t.Errorf("missing invalid_request_error type: %s", w.Body.String())
	}
}

func TestHandleOllamaChat_EmptyMessages(t *testing.T) {
	p := newTestPipeline(&backend.Stub{})
	rt := httprouter.New(httprouter.CORSConfig{})
	p.RegisterRoutes(rt)

	body := strings.NewReader(`{"model":"llama3","messages":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestHandleOllamaGenerate_EmptyPrompt(t *testing.T) {
	p := newTestPipeline(&backend.Stub{})
	rt := httprouter.New(httprouter.CORSConfig{})
	p.RegisterRoutes(rt)

	body := strings.NewReader(`{"model":"llama3","prompt":""}`)
	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestHandleChatCompletions_UnknownModel(t *testing.T) {
	p := newTestPipeline(&backend.Stub{})
	p.Availability = func() modelservice.Availability { return modelservice.Availability{} }
	rt := httprouter.New(httprouter.CORSConfig{})
	p.RegisterRoutes(rt)

	body := strings.NewReader(`{"model":"nope","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"param":"model"`) {
		t.Errorf("missing model param in error: %s", w.Body.String())
	}
}

func TestHandleOllamaChat_Streaming(t *testing.T) {
	p := newTestPipeline(&backend.Stub{Chunks: []string{"hi ", "there"}})
	rt := httprouter.New(httprouter.CORSConfig{})
	p.RegisterRoutes(rt)

	body := strings.NewReader(`{"model":"llama3","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	out := w.Body.String()
	if !strings.Contains(out, `"done":true`) {
		t.Errorf("missing done marker: %s", out)
	}
	if w.Header().Get("Content-Type") != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
}

func TestHandleOllamaGenerate_NonStreaming(t *testing.T) {
	p := newTestPipeline(&backend.Stub{Chunks: []string{"hi"}})
	rt := httprouter.New(httprouter.CORSConfig{})
	p.RegisterRoutes(rt)

	streamFalse := false
	_ = streamFalse
	body := strings.NewReader(`{"model":"llama3","prompt":"hi","stream":false}`)
	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	var line wire.OllamaGenerateLine
	if err := json.Unmarshal(w.Body.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal: %v, body: %s", err, w.Body.String())
	}
	if line.Response != "hi" || !line.Done {
		t.Errorf("line = %+v", line)
	}
}

func TestHandleModels(t *testing.T) {
	p := newTestPipeline(&backend.Stub{})
	rt := httprouter.New(httprouter.CORSConfig{})
	p.RegisterRoutes(rt)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	var resp wire.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("got %d model entries, want 2 (foundation + llama3): %+v", len(resp.Data), resp.Data)
	}
}
