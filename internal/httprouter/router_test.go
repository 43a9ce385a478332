package httprouter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/", "/"},
		{"/chat/completions", "/chat/completions"},
		{"/v1/chat/completions", "/chat/completions"},
		{"/api/chat/completions", "/chat/completions"},
		{"/v1/api/chat/completions", "/chat/completions"},
		{"/v1", "/"},
		{"/api", "/"},
		{"/v1/api", "/"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRouter_PathNormalizationEquivalence(t *testing.T) {
	rt := New(CORSConfig{})
	rt.Handle("POST /chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/chat/completions", "/v1/chat/completions", "/api/chat/completions", "/v1/api/chat/completions"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("path %q: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouter_HEAD(t *testing.T) {
	rt := New(CORSConfig{})
	rt.Handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodHead, "/anything/at/all", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("HEAD status = %d, want 204", rec.Code)
	}
}

func TestRouter_CORS_Wildcard(t *testing.T) {
	rt := New(CORSConfig{AllowedOrigins: []string{"*"}})
	rt.Handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestRouter_CORS_AllowListMiss(t *testing.T) {
	rt := New(CORSConfig{AllowedOrigins: []string{"https://allowed.example"}})
	rt.Handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://not-allowed.example")
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestRouter_OPTIONS_Preflight(t *testing.T) {
	rt := New(CORSConfig{AllowedOrigins: []string{"*"}})
	req := httptest.NewRequest(http.MethodOptions, "/chat/completions", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", rec.Code)
	}
}

func TestRouter_Unmatched404(t *testing.T) {
	rt := New(CORSConfig{})
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unmatched status = %d, want 404", rec.Code)
	}
}
