package a2a

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSON-RPC 2.0 error codes, plus the A2A-specific range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeTaskNotFound      = -32001
	CodeTaskNotCancelable = -32002
)

// JSONRPCRequest is an inbound JSON-RPC 2.0 request. ID is kept raw so
// string, number and null ids round-trip unchanged.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IDString renders the request id as a plain string for correlation (stream
// ids, logs). Returns "" for absent or null ids.
func (r *JSONRPCRequest) IDString() string {
	if len(r.ID) == 0 {
		return ""
	}
	s := strings.TrimSpace(string(r.ID))
	if s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

// JSONRPCResponse is an outbound JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewResponse builds a success response correlated to the request id.
func NewResponse(id json.RawMessage, result any) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

// NewErrorResponse builds an error response correlated to the request id.
func NewErrorResponse(id json.RawMessage, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}
