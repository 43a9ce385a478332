// Package gateway implements the chat pipeline of spec.md §4.5-§4.7: it
// resolves a request's model through internal/modelservice, drives
// internal/backend's generation events through the micro-batcher, stop
// sequence detector, and tool-call translator, and renders the result
// through a Writer. It is grounded on the teacher's internal/api/server.go
// handleChatCompletions/handleStreamingCompletion pair, generalized from a
// single fixed backend to the pluggable Backend contract.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dinoki-ai/osaurus/internal/backend"
	"github.com/dinoki-ai/osaurus/internal/config"
	"github.com/dinoki-ai/osaurus/internal/events"
	"github.com/dinoki-ai/osaurus/internal/modelservice"
	"github.com/dinoki-ai/osaurus/internal/usage"
	"github.com/dinoki-ai/osaurus/internal/wire"
)

// AvailabilityFunc reports the Model Services currently usable, evaluated
// fresh for each request (installed models can change between requests).
type AvailabilityFunc func() modelservice.Availability

// Pipeline wires together model resolution, the inference backend, and
// response rendering for both the OpenAI-compatible and Ollama-compatible
// surfaces.
type Pipeline struct {
	Backend      backend.Backend
	Config       *config.Config
	Availability AvailabilityFunc
	Audit        *modelservice.AuditLog
	Bus          *events.Bus
	Logger       *slog.Logger

	// Usage, if non-nil, receives a Record for every non-streaming
	// completion (SPEC_FULL.md §D's usage/cost ledger). Streaming
	// responses are not recorded: the backend's streaming event shape
	// doesn't guarantee a final token count the way GenerateOnce's Result
	// does. Left nil, usage recording is skipped entirely.
	Usage *usage.Store
}

// NewPipeline constructs a Pipeline. audit and bus may be nil.
func NewPipeline(b backend.Backend, cfg *config.Config, avail AvailabilityFunc, audit *modelservice.AuditLog, bus *events.Bus, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Backend: b, Config: cfg, Availability: avail, Audit: audit, Bus: bus, Logger: logger}
}

// resolvedRequest is the pipeline's internal representation of a chat
// request after model resolution, independent of which wire surface it
// arrived on.
type resolvedRequest struct {
	requestID  string
	resolution modelservice.Resolution
	messages   []wire.Message
	tools      []wire.ToolDefinition
	toolChoice wire.ToolChoice
	params     backend.Params
	stop       []string
}

// ErrNoService is returned when no Model Service can serve the requested
// model, per spec.md §4.3's rule 4 and §7's error handling.
var ErrNoService = errors.New("no model service available for requested model")

// errEmptyMessages is returned when a request's messages sequence is empty,
// per spec.md §3's transcript invariant and §8's "Empty messages → 400"
// boundary behavior.
var errEmptyMessages = errors.New("messages: must not be empty")

// resolve performs model resolution and records the routing decision,
// mirroring the teacher's router.Route + recordDecision pair.
func (p *Pipeline) resolve(requestID, requestedModel string, tools []wire.ToolDefinition, toolChoice wire.ToolChoice, messages []wire.Message, stop []string, temperature float64, maxTokens int, topP *float64) (*resolvedRequest, error) {
	avail := modelservice.Availability{}
	if p.Availability != nil {
		avail = p.Availability()
	}
	resolution := modelservice.Resolve(requestedModel, avail)

	if p.Audit != nil {
		p.Audit.Record(modelservice.Decision{
			RequestID:       requestID,
			Timestamp:       time.Now(),
			RequestedModel:  requestedModel,
			ResolvedService: resolution.Service,
			EffectiveModel:  resolution.EffectiveModel,
			Reasoning:       resolutionReasoning(requestedModel, resolution),
		})
	}

	if !resolution.Resolved() {
		return nil, ErrNoService
	}

	return &resolvedRequest{
		requestID:  requestID,
		resolution: resolution,
		messages:   messages,
		tools:      tools,
		toolChoice: toolChoice,
		stop:       stop,
		params: backend.Params{
			Temperature: temperature,
			MaxTokens:   maxTokens,
			TopP:        topP,
		},
	}, nil
}

func resolutionReasoning(requested string, r modelservice.Resolution) string {
	switch r.Service {
	case modelservice.ServiceSystemDefault:
		if requested == modelservice.FoundationSentinel {
			return "requested foundation sentinel, routed to system default"
		}
		return "no local models installed, fell back to system default"
	case modelservice.ServiceLocalMLX:
		return "matched installed local model " + r.EffectiveModel
	default:
		return "no service available"
	}
}

// contextWithModel attaches the resolved effective model to ctx for the
// backend adapters that need it (see backend.WithModel).
func contextWithModel(ctx context.Context, rr *resolvedRequest) context.Context {
	return backend.WithModel(ctx, rr.resolution.EffectiveModel)
}

// writeError renders an OpenAI-shaped error envelope. Ollama handlers use
// their own flat {"error": "..."} JSON shape via writeOllamaError.
func writeError(w http.ResponseWriter, status int, message, errType string) {
	WriteOneShotJSON(w, status, wire.NewError(status, message, errType))
}

func writeModelError(w http.ResponseWriter, message string) {
	WriteOneShotJSON(w, http.StatusNotFound, wire.NewModelError(http.StatusNotFound, message))
}

// modelserviceAvailability evaluates p.Availability, tolerating a nil func
// for pipelines built without a live availability source (e.g. in tests).
func modelserviceAvailability(p *Pipeline) modelservice.Availability {
	if p.Availability == nil {
		return modelservice.Availability{}
	}
	return p.Availability()
}
