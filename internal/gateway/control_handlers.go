package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dinoki-ai/osaurus/internal/buildinfo"
	"github.com/dinoki-ai/osaurus/internal/modelservice"
	"github.com/dinoki-ai/osaurus/internal/wire"
)

// handleBanner renders the GET / banner page, per spec.md §4.1.
func (p *Pipeline) handleBanner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(wire.RenderBanner(buildinfo.RuntimeInfo())))
}

// handleHealth implements the liveness probe of spec.md §4.9/§6.1: a
// constant-time JSON body with no dependency on the backend or model
// resolution, so it stays under the 600ms budget even under load.
func (p *Pipeline) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteOneShotJSON(w, http.StatusOK, struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}{Status: "healthy", Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

// handleVersion implements the SPEC_FULL.md §D version endpoint, grounded
// on the teacher's buildinfo.RuntimeInfo()+humanize.Time pairing used by
// "thane version".
func (p *Pipeline) handleVersion(w http.ResponseWriter, r *http.Request) {
	info := buildinfo.RuntimeInfo()
	WriteOneShotJSON(w, http.StatusOK, struct {
		Version   string `json:"version"`
		GitCommit string `json:"git_commit"`
		GitBranch string `json:"git_branch"`
		BuildTime string `json:"build_time"`
		GoVersion string `json:"go_version"`
		Uptime    string `json:"uptime"`
		StartedAt string `json:"started_at_human"`
	}{
		Version:   info["version"],
		GitCommit: info["git_commit"],
		GitBranch: info["git_branch"],
		BuildTime: info["build_time"],
		GoVersion: info["go_version"],
		Uptime:    info["uptime"],
		StartedAt: humanize.Time(time.Now().Add(-buildinfo.Uptime())),
	})
}

// handleShow implements POST /show, per spec.md §6.1: a minimal Ollama
// "show" response when the name is exactly "foundation" (with the system
// default available) or exactly an installed model name, and a 404 for
// anything else. The name is compared as given; unlike the Service Router,
// no case folding, tag stripping or fallback is applied.
func (p *Pipeline) handleShow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeOllamaError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req wire.OllamaShowRequest
	if err := wire.Decode(r.Body, &req); err != nil {
		writeOllamaError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	avail := modelserviceAvailability(p)
	known := avail.SystemDefault && req.Model == "foundation"
	for _, m := range avail.InstalledModels {
		if m == req.Model {
			known = true
			break
		}
	}
	if !known {
		writeOllamaError(w, http.StatusNotFound, "model \""+req.Model+"\" not found")
		return
	}

	WriteOneShotJSON(w, http.StatusOK, wire.OllamaShowResponse{
		Modelfile:    "# generated by osaurus\nFROM " + req.Model,
		Parameters:   "",
		Template:     "{{ .Prompt }}",
		Details:      wire.OllamaModelDetails{Family: "osaurus", Format: "gguf"},
		Capabilities: []string{"completion"},
	})
}

// handleRouterStats implements the SPEC_FULL.md §D introspection surface,
// grounded on the teacher's internal/router stats endpoint.
func (p *Pipeline) handleRouterStats(w http.ResponseWriter, r *http.Request) {
	if p.Audit == nil {
		writeError(w, http.StatusNotFound, "router audit log not configured", "invalid_request_error")
		return
	}
	stats, err := p.Audit.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "internal_error")
		return
	}
	WriteOneShotJSON(w, http.StatusOK, stats)
}

// handleRouterAudit returns the most recent routing decisions, newest
// first. A "limit" query parameter bounds the result (default 100).
func (p *Pipeline) handleRouterAudit(w http.ResponseWriter, r *http.Request) {
	if p.Audit == nil {
		writeError(w, http.StatusNotFound, "router audit log not configured", "invalid_request_error")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	decisions, err := p.Audit.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "internal_error")
		return
	}
	WriteOneShotJSON(w, http.StatusOK, struct {
		Decisions []modelservice.Decision `json:"decisions"`
	}{decisions})
}

// handleRouterExplain returns the single recorded decision for a given
// request ID, or 404 if no decision was recorded under it.
func (p *Pipeline) handleRouterExplain(w http.ResponseWriter, r *http.Request) {
	if p.Audit == nil {
		writeError(w, http.StatusNotFound, "router audit log not configured", "invalid_request_error")
		return
	}
	requestID := r.PathValue("requestId")
	decision, err := p.Audit.Explain(requestID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "internal_error")
		return
	}
	if decision == nil {
		writeError(w, http.StatusNotFound, "no routing decision recorded for request \""+requestID+"\"", "invalid_request_error")
		return
	}
	WriteOneShotJSON(w, http.StatusOK, decision)
}

// handleUsageSummary implements the SPEC_FULL.md §D usage/cost endpoint.
// A "hours" query parameter sets the look-back window (default 24).
func (p *Pipeline) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	if p.Usage == nil {
		writeError(w, http.StatusNotFound, "usage store not configured", "invalid_request_error")
		return
	}
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			hours = n
		}
	}
	end := time.Now()
	start := end.Add(-time.Duration(hours) * time.Hour)

	summary, err := p.Usage.Summary(start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "internal_error")
		return
	}
	byModel, err := p.Usage.SummaryByModel(start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "internal_error")
		return
	}
	WriteOneShotJSON(w, http.StatusOK, struct {
		WindowHours int `json:"window_hours"`
		Total       any `json:"total"`
		ByModel     any `json:"by_model"`
	}{WindowHours: hours, Total: summary, ByModel: byModel})
}
