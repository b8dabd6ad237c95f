// Package api implements the HTTP surface of taskdeck: the REST task
// endpoints, the stateless and streaming chat adapters, and the
// mounted tool host.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/taskdeck/taskdeck/internal/buildinfo"
	"github.com/taskdeck/taskdeck/internal/engine"
	"github.com/taskdeck/taskdeck/internal/mcp"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/tools"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// errorBody is the error payload shape shared by all endpoints.
type errorBody struct {
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`
}

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	engine   *engine.Engine
	store    *task.Store
	session  *mcp.Session
	registry *tools.Registry
	toolHost http.Handler
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates the API server. toolHost may be nil when the
// daemon is configured against an external tool host.
func NewServer(address string, port int, eng *engine.Engine, store *task.Store, session *mcp.Session, registry *tools.Registry, toolHost http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:  address,
		port:     port,
		engine:   eng,
		store:    store,
		session:  session,
		registry: registry,
		toolHost: toolHost,
		logger:   logger,
	}
}

// routes builds the full route table.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Chat adapters
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /ws/chat", s.handleChatSocket)

	// Task CRUD
	mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	mux.HandleFunc("PUT /api/tasks/{id}", s.handleTaskUpdate)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)

	// Tool catalogue
	mux.HandleFunc("GET /tools", s.handleToolDocs)
	mux.HandleFunc("GET /api/tools", s.handleToolsJSON)

	// Health endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	// Embedded tool host
	if s.toolHost != nil {
		mux.Handle("POST /mcp", s.toolHost)
	}

	return mux
}

// Start begins serving HTTP requests and blocks until the listener fails.
func (s *Server) Start(ctx context.Context) error {
	mux := s.routes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // exchanges can span several tool round-trips
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"name":    "taskdeck",
		"version": buildinfo.Version,
		"status":  "ok",
		"endpoints": map[string]string{
			"health": "/health",
			"tasks":  "/api/tasks",
			"chat":   "/chat",
			"ws":     "/ws/chat",
			"tools":  "/tools",
		},
	}, s.logger)
}

// handleHealth reports liveness plus the tool session state, so a
// degraded session is visible without grepping logs.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"service": "taskdeck",
		"session": s.session.State().String(),
	}, s.logger)
}

func (s *Server) handleToolsJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"tools": s.registry.List()}, s.logger)
}

// errorResponse writes the shared error shape with the given status.
func (s *Server) errorResponse(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, errorBody{Detail: detail, StatusCode: status}, s.logger)
}
