// Package modelservice implements the Service Router of spec.md §4.3: it
// resolves a requested model name to one of the configured Model Services,
// and records each resolution in an audit ledger (grounded on the teacher's
// internal/router package) for the /v1/router/* introspection endpoints
// supplemented by SPEC_FULL.md.
package modelservice

import (
	"strings"
)

// Service names one of the two model services spec.md §4.3 recognizes.
type Service string

const (
	// ServiceSystemDefault is the always-available "foundation" service.
	ServiceSystemDefault Service = "SystemDefault"
	// ServiceLocalMLX serves locally-installed models by name.
	ServiceLocalMLX Service = "LocalMLX"
	// ServiceNone indicates no service can handle the request.
	ServiceNone Service = ""
)

// FoundationSentinel is the special requested-model value that routes to
// SystemDefault when available.
const FoundationSentinel = "foundation"

// Resolution is the outcome of resolving a requested model.
type Resolution struct {
	Service       Service
	EffectiveModel string
}

// Resolved reports whether a service was found.
func (r Resolution) Resolved() bool {
	return r.Service != ServiceNone
}

// Availability reports which services are currently usable. Callers
// construct this per request (or once at startup, if static) from whatever
// backend health checks are relevant.
type Availability struct {
	SystemDefault   bool
	InstalledModels []string
}

// canonicalModelName strips a trailing ":tag" and lowercases, matching
// Ollama-style "name:tag" model identifiers.
func canonicalModelName(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// Resolve implements spec.md §4.3's four resolution rules in order.
func Resolve(requestedModel string, avail Availability) Resolution {
	// Rule 1: the "foundation" sentinel routes to SystemDefault when available.
	if requestedModel == FoundationSentinel && avail.SystemDefault {
		return Resolution{Service: ServiceSystemDefault, EffectiveModel: FoundationSentinel}
	}

	// Rule 2: match against installed local models (case-insensitive,
	// accepting "name:tag" by stripping the tag).
	want := canonicalModelName(requestedModel)
	for _, installed := range avail.InstalledModels {
		if canonicalModelName(installed) == want {
			return Resolution{Service: ServiceLocalMLX, EffectiveModel: installed}
		}
	}

	// Rule 3: no local models installed at all, fall back to SystemDefault.
	if len(avail.InstalledModels) == 0 && avail.SystemDefault {
		return Resolution{Service: ServiceSystemDefault, EffectiveModel: FoundationSentinel}
	}

	// Rule 4: nothing can serve this request.
	return Resolution{Service: ServiceNone}
}
