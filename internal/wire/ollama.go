package wire

// OllamaMessage is an Ollama-shaped chat message.
type OllamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OllamaOptions carries the subset of Ollama's "options" bag this gateway
// understands; unrecognized keys are accepted but ignored.
type OllamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

// OllamaChatRequest is the request body for POST /chat, per spec.md §6.1.
// Stream defaults to true, unlike the OpenAI surface, so it is a pointer to
// distinguish "absent" from "false".
type OllamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []OllamaMessage `json:"messages"`
	Stream   *bool           `json:"stream,omitempty"`
	Options  *OllamaOptions  `json:"options,omitempty"`
}

// StreamRequested reports whether the request wants streaming output,
// honoring Ollama's default-true semantics.
func (r *OllamaChatRequest) StreamRequested() bool {
	return r.Stream == nil || *r.Stream
}

// OllamaChatLine is a single NDJSON line of the /chat response stream.
type OllamaChatLine struct {
	Message OllamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// OllamaGenerateRequest is the request body for POST /generate.
type OllamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  *bool          `json:"stream,omitempty"`
	Options *OllamaOptions `json:"options,omitempty"`
}

// StreamRequested reports whether the request wants streaming output.
func (r *OllamaGenerateRequest) StreamRequested() bool {
	return r.Stream == nil || *r.Stream
}

// OllamaGenerateLine is a single NDJSON line of the /generate response
// stream.
type OllamaGenerateLine struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaTagsResponse is the body of GET /tags.
type OllamaTagsResponse struct {
	Models []OllamaModelTag `json:"models"`
}

// OllamaModelTag describes one installed model in the /tags listing.
type OllamaModelTag struct {
	Name       string             `json:"name"`
	Model      string             `json:"model"`
	ModifiedAt string             `json:"modified_at"`
	Size       int64              `json:"size"`
	Digest     string             `json:"digest"`
	Details    OllamaModelDetails `json:"details"`
}

// OllamaModelDetails is the nested detail object of an OllamaModelTag.
type OllamaModelDetails struct {
	ParentModel       string   `json:"parent_model"`
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// OllamaShowRequest is the body of POST /show.
type OllamaShowRequest struct {
	Model string `json:"model"`
}

// OllamaShowResponse is the body of a successful POST /show.
type OllamaShowResponse struct {
	Modelfile    string             `json:"modelfile"`
	Parameters   string             `json:"parameters"`
	Template     string             `json:"template"`
	Details      OllamaModelDetails `json:"details"`
	Capabilities []string           `json:"capabilities"`
}

// OllamaErrorResponse is Ollama's flat `{"error":"..."}` error shape, used
// instead of the OpenAI-style nested ErrorEnvelope on the Ollama surface.
type OllamaErrorResponse struct {
	Error string `json:"error"`
}
