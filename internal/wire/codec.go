package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

func jsonMarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode reads a single JSON value from r directly into dst using a
// json.Decoder over the body, avoiding the intermediate []byte a
// Decode(io.ReadAll(...)) call would allocate. Each call site constructs its
// own decoder, so there is no shared mutable state across requests.
func Decode(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// Encoder buffers JSON-encoded records for a single request's response
// writes, reusing its internal buffer across every Encode call so a
// streaming response does not allocate a new buffer per chunk.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an Encoder ready for use by one request.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode marshals v and returns the encoded bytes. The returned slice
// aliases the Encoder's internal buffer and is only valid until the next
// call to Encode — callers that need to retain it must copy.
func (e *Encoder) Encode(v any) ([]byte, error) {
	e.buf.Reset()
	if err := json.NewEncoder(&e.buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode response body: %w", err)
	}
	return e.buf.Bytes(), nil
}
