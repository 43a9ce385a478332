package gateway

import (
	"net/http"

	"github.com/dinoki-ai/osaurus/internal/wire"
)

// generateNDJSONAdapter renders the same Writer contract as NDJSONWriter
// but in the /api/generate line shape ({"response":...}) instead of the
// /api/chat line shape ({"message":{...}}), since Ollama uses different
// record shapes for the two endpoints despite both being NDJSON streams.
type generateNDJSONAdapter struct {
	*NDJSONWriter
}

func (g *generateNDJSONAdapter) WriteContent(w http.ResponseWriter, text, model, id string, created int64) {
	if text == "" {
		return
	}
	g.tryWrite(func() {
		data, err := g.enc.Encode(wire.OllamaGenerateLine{Response: text})
		if err != nil {
			return
		}
		w.Write(data)
		flush(w)
	})
}

func (g *generateNDJSONAdapter) WriteEnd(w http.ResponseWriter) {
	g.end(func() {
		data, err := g.enc.Encode(wire.OllamaGenerateLine{Done: true})
		if err != nil {
			return
		}
		w.Write(data)
		flush(w)
	})
}
