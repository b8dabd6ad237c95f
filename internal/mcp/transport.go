package mcp

import "context"

// Transport moves JSON-RPC messages between the client and one tool
// host. Send returns the response matched to the request; for
// notifications it returns (nil, nil) once the message is on the wire.
// Close releases the underlying resources; for stdio transports that
// means the subprocess.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
	Close() error
}
