package toolhost

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskdeck/taskdeck/internal/mcp"
)

// LocalTransport dispatches MCP requests to a Server in the same
// process, skipping the wire entirely. The daemon uses it when it
// hosts its own tools: the session can then connect before the HTTP
// listener is up, and tool availability never depends on it.
type LocalTransport struct {
	host *Server
}

// Transport returns an in-process mcp.Transport backed by this server.
func (s *Server) Transport() *LocalTransport {
	return &LocalTransport{host: s}
}

// Send dispatches one request to the host. Notifications are dropped
// after logging, matching the wire transports' no-reply contract.
func (l *LocalTransport) Send(ctx context.Context, req *mcp.Request) (*mcp.Response, error) {
	if req.IsNotification() {
		l.host.logger.Debug("notification received", "method", req.Method)
		return nil, nil
	}

	msg := rpcMessage{JSONRPC: req.JSONRPC, ID: req.ID, Method: req.Method}
	if req.Params != nil {
		data, err := json.Marshal(req.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		msg.Params = data
	}

	return l.host.dispatch(ctx, &msg), nil
}

// Close is a no-op; the host's lifetime belongs to its owner.
func (l *LocalTransport) Close() error {
	return nil
}
