package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrSessionUnavailable is returned when a caller needs the tool host
// but the session is not in the ready state. Callers must fail fast on
// it rather than retrying; recovery requires an external reconnect.
var ErrSessionUnavailable = errors.New("session unavailable")

// SessionState is the lifecycle state of the tool host session.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateReady
	StateDegraded
	StateClosed
)

// String returns the state name for logging and health reporting.
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Session owns the single connection to the tool host. Connect and
// Disconnect are the only mutators and are mutually exclusive; every
// other component holds the session read-only and checks IsReady (a
// lock-free atomic load) before use.
//
// A failed connect leaves the session degraded rather than failing the
// process: the daemon keeps serving, and session-dependent calls fail
// fast with ErrSessionUnavailable until an operator restart.
type Session struct {
	client *Client
	logger *slog.Logger

	mu    sync.Mutex // serializes Connect/Disconnect
	state atomic.Int32
}

// NewSession wraps a client in a session starting out disconnected.
func NewSession(client *Client, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		client: client,
		logger: logger,
	}
	s.state.Store(int32(StateDisconnected))
	return s
}

// State returns the current session state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// IsReady reports whether tool calls may currently be forwarded.
// Non-blocking; safe for concurrent use from any goroutine.
func (s *Session) IsReady() bool {
	return s.State() == StateReady
}

// Connect performs the MCP handshake against the tool host. On success
// the session becomes ready; on failure it becomes degraded and the
// error is returned so the caller can report it. Calling Connect on a
// closed session is an error.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return errors.New("session is closed")
	}

	s.setState(StateConnecting)

	if err := s.client.Initialize(ctx); err != nil {
		s.setState(StateDegraded)
		return fmt.Errorf("connect tool host: %w", err)
	}

	s.setState(StateReady)
	return nil
}

// Disconnect closes the session and its transport. Idempotent: calling
// it on an already-closed session is a no-op.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return nil
	}

	s.setState(StateClosed)
	return s.client.Close()
}

// Degrade marks the session degraded after an in-flight failure. The
// handle itself is kept; only the advertised health changes. No-op once
// the session is closed.
func (s *Session) Degrade() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return
	}
	s.setState(StateDegraded)
}

// Client returns the underlying client when the session is ready, and
// ErrSessionUnavailable otherwise. Callers must treat this as the
// precondition check before any tool host operation.
func (s *Session) Client() (*Client, error) {
	if !s.IsReady() {
		return nil, ErrSessionUnavailable
	}
	return s.client, nil
}

// setState stores the new state and logs the transition. Caller must
// hold s.mu so transitions are totally ordered.
func (s *Session) setState(next SessionState) {
	prev := SessionState(s.state.Swap(int32(next)))
	if prev != next {
		s.logger.Info("session state changed", "from", prev.String(), "to", next.String())
	}
}
