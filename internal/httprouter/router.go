// Package httprouter implements path-prefix normalization and the gateway's
// route table (spec.md §4.1), plus CORS handling (§6.1). It wraps a plain
// net/http.ServeMux rather than reimplementing method/path matching: the
// normalization step rewrites the incoming path before handing the request
// to the mux, so route registration stays ordinary net/http pattern syntax.
package httprouter

import (
	"net/http"
	"strings"
)

// recognizedPrefixes are stripped in most-specific-first order so that
// "/v1/api/chat" and "/api/chat" and "/v1/chat" and "/chat" all normalize
// to "/chat". Order matters: "/v1/api" must be tried before "/v1" or "/api"
// alone, since it also matches as a prefix of itself.
var recognizedPrefixes = []string{"/v1/api", "/api", "/v1"}

// Normalize strips the longest recognized prefix from p. "/" alone is
// preserved untouched.
func Normalize(p string) string {
	if p == "/" {
		return p
	}
	for _, prefix := range recognizedPrefixes {
		if p == prefix {
			return "/"
		}
		if rest, ok := strings.CutPrefix(p, prefix+"/"); ok {
			return "/" + rest
		}
	}
	return p
}

// CORSConfig controls the CORS headers applied per spec.md §6.1.
type CORSConfig struct {
	// AllowedOrigins is the configured allow-list. An empty list disables
	// CORS handling entirely. A list containing exactly "*" allows any
	// origin unconditionally.
	AllowedOrigins []string
}

func (c CORSConfig) allows(origin string) (string, bool) {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return "", false
	}
	if len(c.AllowedOrigins) == 1 && c.AllowedOrigins[0] == "*" {
		return "*", true
	}
	for _, o := range c.AllowedOrigins {
		if o == origin {
			return origin, true
		}
	}
	return "", false
}

// Router dispatches normalized requests to a registered net/http.ServeMux,
// applying HEAD-to-204 and CORS handling first.
type Router struct {
	mux  *http.ServeMux
	cors CORSConfig
}

// New creates a Router backed by a fresh ServeMux. Register routes with
// Handle before serving traffic.
func New(cors CORSConfig) *Router {
	return &Router{mux: http.NewServeMux(), cors: cors}
}

// Handle registers a handler for "METHOD /path" (net/http 1.22+ pattern
// syntax), applied to the normalized path space.
func (rt *Router) Handle(pattern string, handler http.HandlerFunc) {
	rt.mux.HandleFunc(pattern, handler)
}

// ServeHTTP implements http.Handler: it applies CORS headers, answers HEAD
// requests with 204 on any path, normalizes the request path, and
// dispatches to the registered mux. Unmatched paths fall through to the
// mux's own 404 handling.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" {
		if allow, ok := rt.cors.allows(origin); ok {
			w.Header().Set("Access-Control-Allow-Origin", allow)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	normalized := Normalize(r.URL.Path)
	if normalized != r.URL.Path {
		r2 := r.Clone(r.Context())
		r2.URL.Path = normalized
		r = r2
	}
	rt.mux.ServeHTTP(w, r)
}
