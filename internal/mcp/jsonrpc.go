package mcp

import (
	"encoding/json"
	"fmt"
)

// jsonrpcVersion is the JSON-RPC protocol version used by MCP.
const jsonrpcVersion = "2.0"

// Method names for the protocol slice taskdeck speaks. The client
// sends exactly these; the tool host answers exactly these.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodListTools   = "tools/list"
	MethodCallTool    = "tools/call"
	MethodPing        = "ping"
)

// Request is a JSON-RPC 2.0 message from client to tool host. A nil ID
// makes it a notification: the host sends no reply, and transports must
// not wait for one.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest builds a request carrying the given correlation id.
func NewRequest(id int64, method string, params any) *Request {
	return &Request{JSONRPC: jsonrpcVersion, ID: &id, Method: method, Params: params}
}

// NewNotification builds an id-less request that expects no reply.
func NewNotification(method string, params any) *Request {
	return &Request{JSONRPC: jsonrpcVersion, Method: method, Params: params}
}

// IsNotification reports whether the request expects no reply.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response is a JSON-RPC 2.0 response. Result and Error are mutually
// exclusive in a well-formed message.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a failed response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("tool host error %d: %s", e.Code, e.Message)
}
