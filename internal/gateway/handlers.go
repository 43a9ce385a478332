package gateway

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dinoki-ai/osaurus/internal/httprouter"
	"github.com/dinoki-ai/osaurus/internal/wire"
)

// RegisterRoutes wires the OpenAI-compatible and Ollama-compatible HTTP
// surfaces onto rt, per spec.md §6.1. Path normalization and CORS are the
// Router's job (internal/httprouter); this only registers the
// normalized-path handlers.
func (p *Pipeline) RegisterRoutes(rt *httprouter.Router) {
	rt.Handle("/chat/completions", p.handleChatCompletions)
	rt.Handle("/models", p.handleModels)
	rt.Handle("/chat", p.handleOllamaChat)
	rt.Handle("/generate", p.handleOllamaGenerate)
	rt.Handle("/tags", p.handleOllamaTags)
	rt.Handle("/show", p.handleShow)
	// "/{$}" (not the bare subtree pattern "/") matches only the literal
	// root path, so unmatched paths like "/foo" still fall through to the
	// mux's own 404 instead of being swallowed by the banner handler.
	rt.Handle("/{$}", p.handleBanner)
	rt.Handle("/health", p.handleHealth)
	rt.Handle("/version", p.handleVersion)
	rt.Handle("/router/stats", p.handleRouterStats)
	rt.Handle("/router/audit", p.handleRouterAudit)
	rt.Handle("/router/explain/{requestId}", p.handleRouterExplain)
	rt.Handle("/usage/summary", p.handleUsageSummary)
}

func (p *Pipeline) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error")
		return
	}

	var req wire.ChatCompletionRequest
	if err := wire.Decode(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages: must not be empty", "invalid_request_error")
		return
	}

	temperature, maxTokens := req.Defaults()
	requestID := uuid.New().String()
	rr, err := p.resolve(requestID, req.Model, req.Tools, req.ResolvedToolChoice(), req.Messages, req.Stop, temperature, maxTokens, req.TopP)
	if err != nil {
		writeModelError(w, "no model service available for model \""+req.Model+"\"")
		return
	}
	rr.params.SessionID = req.SessionID

	id := wire.NewCompletionID()
	if req.Stream {
		p.runStream(r.Context(), w, NewSSEWriter(), rr, rr.resolution.EffectiveModel, id)
		return
	}

	resp, err := p.runOnce(r.Context(), rr, rr.resolution.EffectiveModel, id)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), "backend_error")
		return
	}
	WriteOneShotJSON(w, http.StatusOK, resp)
}

// CompleteChat resolves and runs a single non-streaming chat completion,
// reusing the same resolve+runOnce orchestration handleChatCompletions uses
// over HTTP. internal/toolproxy calls this to proxy the OpenAI-compatible
// surface over its stdio protocol (spec.md §1); streaming is intentionally
// not offered there, since JSON-RPC request/response framing has no
// natural place for incremental deltas the way SSE/NDJSON do.
func (p *Pipeline) CompleteChat(ctx context.Context, req wire.ChatCompletionRequest) (wire.ChatCompletionResponse, error) {
	if len(req.Messages) == 0 {
		return wire.ChatCompletionResponse{}, errEmptyMessages
	}

	temperature, maxTokens := req.Defaults()
	requestID := uuid.New().String()
	rr, err := p.resolve(requestID, req.Model, req.Tools, req.ResolvedToolChoice(), req.Messages, req.Stop, temperature, maxTokens, req.TopP)
	if err != nil {
		return wire.ChatCompletionResponse{}, err
	}
	rr.params.SessionID = req.SessionID
	id := wire.NewCompletionID()
	return p.runOnce(ctx, rr, rr.resolution.EffectiveModel, id)
}

func (p *Pipeline) handleModels(w http.ResponseWriter, r *http.Request) {
	avail := modelserviceAvailability(p)
	entries := make([]wire.ModelsEntry, 0, len(avail.InstalledModels)+1)
	if avail.SystemDefault {
		entries = append(entries, wire.ModelsEntry{ID: "foundation", Object: "model", OwnedBy: "system"})
	}
	for _, m := range avail.InstalledModels {
		entries = append(entries, wire.ModelsEntry{ID: m, Object: "model", OwnedBy: "local"})
	}
	WriteOneShotJSON(w, http.StatusOK, wire.ModelsResponse{Object: "list", Data: entries})
}

func (p *Pipeline) handleOllamaChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeOllamaError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req wire.OllamaChatRequest
	if err := wire.Decode(r.Body, &req); err != nil {
		writeOllamaError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeOllamaError(w, http.StatusBadRequest, "messages: must not be empty")
		return
	}

	messages := make([]wire.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = wire.Message{Role: wire.Role(m.Role), Content: m.Content}
	}
	temperature, maxTokens, topP := ollamaOptionsOrDefaults(req.Options)

	requestID := uuid.New().String()
	rr, err := p.resolve(requestID, req.Model, nil, wire.ToolChoice{}, messages, nil, temperature, maxTokens, topP)
	if err != nil {
		writeOllamaError(w, http.StatusNotFound, "no model service available for model \""+req.Model+"\"")
		return
	}

	id := wire.NewCompletionID()
	if req.StreamRequested() {
		p.runStream(r.Context(), w, NewNDJSONWriter(), rr, rr.resolution.EffectiveModel, id)
		return
	}
	resp, err := p.runOnce(r.Context(), rr, rr.resolution.EffectiveModel, id)
	if err != nil {
		writeOllamaError(w, http.StatusBadGateway, err.Error())
		return
	}
	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	WriteOneShotJSON(w, http.StatusOK, wire.OllamaChatLine{Message: wire.OllamaMessage{Role: "assistant", Content: content}, Done: true})
}

func (p *Pipeline) handleOllamaGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeOllamaError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req wire.OllamaGenerateRequest
	if err := wire.Decode(r.Body, &req); err != nil {
		writeOllamaError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Prompt == "" {
		writeOllamaError(w, http.StatusBadRequest, "prompt: must not be empty")
		return
	}

	messages := []wire.Message{{Role: wire.RoleUser, Content: req.Prompt}}
	temperature, maxTokens, topP := ollamaOptionsOrDefaults(req.Options)

	requestID := uuid.New().String()
	rr, err := p.resolve(requestID, req.Model, nil, wire.ToolChoice{}, messages, nil, temperature, maxTokens, topP)
	if err != nil {
		writeOllamaError(w, http.StatusNotFound, "no model service available for model \""+req.Model+"\"")
		return
	}

	id := wire.NewCompletionID()
	if req.StreamRequested() {
		p.runStream(r.Context(), w, &generateNDJSONAdapter{NewNDJSONWriter()}, rr, rr.resolution.EffectiveModel, id)
		return
	}
	resp, err := p.runOnce(r.Context(), rr, rr.resolution.EffectiveModel, id)
	if err != nil {
		writeOllamaError(w, http.StatusBadGateway, err.Error())
		return
	}
	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	WriteOneShotJSON(w, http.StatusOK, wire.OllamaGenerateLine{Response: text, Done: true})
}

func (p *Pipeline) handleOllamaTags(w http.ResponseWriter, r *http.Request) {
	avail := modelserviceAvailability(p)
	tags := make([]wire.OllamaModelTag, 0, len(avail.InstalledModels))
	for _, m := range avail.InstalledModels {
		tags = append(tags, wire.OllamaModelTag{Name: m, Model: m})
	}
	WriteOneShotJSON(w, http.StatusOK, wire.OllamaTagsResponse{Models: tags})
}

func writeOllamaError(w http.ResponseWriter, status int, message string) {
	WriteOneShotJSON(w, status, wire.OllamaErrorResponse{Error: message})
}

func ollamaOptionsOrDefaults(opts *wire.OllamaOptions) (temperature float64, maxTokens int, topP *float64) {
	temperature, maxTokens = 0.7, 2048
	if opts == nil {
		return temperature, maxTokens, nil
	}
	if opts.Temperature != 0 {
		temperature = opts.Temperature
	}
	if opts.NumPredict != 0 {
		maxTokens = opts.NumPredict
	}
	if opts.TopP != 0 {
		tp := opts.TopP
		topP = &tp
	}
	return temperature, maxTokens, topP
}
