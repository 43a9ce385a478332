// Package toolproxy exposes the gateway's chat pipeline over a stdio
// JSON-RPC 2.0 transport (spec.md §1's "embeddable via stdio" integration
// path), grounded on the teacher's internal/mcp package: the same message
// shapes as internal/mcp/jsonrpc.go, and a transport loop shaped like
// internal/mcp/stdio.go's newline-delimited read/write — but running as the
// server end of the pipe instead of the client end that dials out to an MCP
// subprocess.
package toolproxy

import (
	"encoding/json"
	"fmt"
)

const jsonrpcVersion = "2.0"

// Request is a JSON-RPC 2.0 request message.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response message. Exactly one of Result or
// Error is non-nil in a well-formed response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC 2.0 error codes used by the dispatcher.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

func newResultResponse(id int64, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return newErrorResponse(id, codeInternalError, "marshal result: "+err.Error())
	}
	return Response{JSONRPC: jsonrpcVersion, ID: id, Result: data}
}

func newErrorResponse(id int64, code int, message string) Response {
	return Response{JSONRPC: jsonrpcVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
}
