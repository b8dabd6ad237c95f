// Package toolhost serves the task tools over MCP (JSON-RPC 2.0). It
// implements the server half of the protocol the internal/mcp client
// speaks: initialize, tools/list, tools/call, and ping, over HTTP POST
// or newline-delimited stdio.
package toolhost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/buildinfo"
	"github.com/taskdeck/taskdeck/internal/mcp"
	"github.com/taskdeck/taskdeck/internal/tools"
)

// protocolVersion is the MCP protocol version this host speaks.
const protocolVersion = "2024-11-05"

// serverName identifies this host in the initialize handshake.
const serverName = "taskdeck-tasks"

// JSON-RPC error codes (per the 2.0 spec).
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Server hosts the task tools. One Server serves any number of
// sessions; all state lives in the task store.
type Server struct {
	registry *tools.Registry
	exec     *executor
	logger   *slog.Logger
}

// NewServer creates a tool host over the given store.
func NewServer(store Store, registry *tools.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: registry,
		exec:     &executor{store: store, logger: logger},
		logger:   logger,
	}
}

// rpcMessage is an incoming JSON-RPC request or notification; a
// notification carries no id.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// callParams is the tools/call parameter payload.
type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Handler returns the HTTP handler for mounting at /mcp. Each JSON-RPC
// request arrives as one POST; notifications are acknowledged with 202.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var msg rpcMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			s.logger.Debug("unparseable JSON-RPC message", "error", err)
			writeRPC(w, s.logger, errorResponse(0, codeParseError, "parse error"))
			return
		}

		// Notifications get no response body.
		if msg.ID == nil {
			s.logger.Debug("notification received", "method", msg.Method)
			w.WriteHeader(http.StatusAccepted)
			return
		}

		resp := s.dispatch(r.Context(), &msg)
		writeRPC(w, s.logger, resp)
	})
}

// dispatch routes one request to its method handler.
func (s *Server) dispatch(ctx context.Context, msg *rpcMessage) *mcp.Response {
	id := *msg.ID
	reqID := uuid.NewString()
	s.logger.Debug("tool host request", "request_id", reqID, "method", msg.Method, "id", id)

	switch msg.Method {
	case mcp.MethodInitialize:
		return resultResponse(id, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": buildinfo.Version,
			},
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
		})

	case mcp.MethodPing:
		return resultResponse(id, map[string]any{})

	case mcp.MethodListTools:
		descriptors := s.registry.List()
		defs := make([]mcp.ToolDefinition, len(descriptors))
		for i, d := range descriptors {
			defs[i] = mcp.ToolDefinition{
				Name:        d.Name,
				Description: d.Description,
				InputSchema: d.InputSchema,
			}
		}
		return resultResponse(id, map[string]any{"tools": defs})

	case mcp.MethodCallTool:
		var params callParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return errorResponse(id, codeInvalidParams, "invalid tools/call params")
		}
		if _, err := s.registry.Resolve(params.Name); err != nil {
			return errorResponse(id, codeInvalidParams, fmt.Sprintf("unknown tool %q", params.Name))
		}

		result := s.exec.call(ctx, params.Name, params.Arguments)
		s.logger.Info("tool executed",
			"request_id", reqID,
			"tool", params.Name,
			"is_error", result.IsError,
		)
		return resultResponse(id, result)

	default:
		return errorResponse(id, codeMethodNotFound, fmt.Sprintf("method %q not found", msg.Method))
	}
}

func resultResponse(id int64, result any) *mcp.Response {
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, codeInvalidRequest, "marshal result: "+err.Error())
	}
	return &mcp.Response{JSONRPC: "2.0", ID: id, Result: data}
}

func errorResponse(id int64, code int, message string) *mcp.Response {
	return &mcp.Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &mcp.RPCError{Code: code, Message: message},
	}
}

func writeRPC(w http.ResponseWriter, logger *slog.Logger, resp *mcp.Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Debug("failed to write JSON-RPC response", "error", err)
	}
}
