package wire

import (
	"crypto/rand"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomSuffix returns an n-character string drawn from idAlphabet using a
// cryptographically random source, matching spec.md's `[A-Za-z0-9]{n}`
// identifier format.
func randomSuffix(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read on a real OS does not fail; if it somehow did,
		// fall back to a fixed but still well-formed suffix rather than
		// panicking mid-request.
		for i := range b {
			b[i] = idAlphabet[0]
		}
	}
	out := make([]byte, n)
	for i, c := range b {
		out[i] = idAlphabet[int(c)%len(idAlphabet)]
	}
	return string(out)
}

// NewCompletionID returns a chat-completion identifier of the form
// "chatcmpl-<8chars>".
func NewCompletionID() string {
	return "chatcmpl-" + randomSuffix(8)
}

// NewToolCallID returns a tool-call identifier of the form "call_<8chars>".
func NewToolCallID() string {
	return "call_" + randomSuffix(8)
}
