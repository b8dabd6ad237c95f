package api

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/taskdeck/taskdeck/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The chat page is served from the same origin, but tools like
	// websocat are useful against a local instance.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsInbound is a client chat message. Role is accepted for shape
// compatibility but only user messages arrive on this socket.
type wsInbound struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// wsFrame is an outbound event. Type is one of tool_use, tool_result,
// response, or error; the other fields are populated per type.
type wsFrame struct {
	Type      string         `json:"type"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`
	Result    string         `json:"result,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// handleChatSocket upgrades the connection and serves exchanges one at
// a time. Each inbound message runs a full exchange; intermediate tool
// activity streams back as it happens, then exactly one terminal
// response or error frame closes out the exchange. A single reader
// goroutine owns all reads so a peer disconnect mid-exchange cancels
// the running exchange.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.logger.Debug("websocket client connected", "remote", conn.RemoteAddr())

	inbound := make(chan wsInbound, 4)
	go func() {
		defer close(inbound)
		for {
			var in wsInbound
			if err := conn.ReadJSON(&in); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("websocket read failed", "error", err)
				}
				return
			}
			inbound <- in
		}
	}()

	var history engine.History
	var pending []wsInbound
	for {
		var in wsInbound
		if len(pending) > 0 {
			in, pending = pending[0], pending[1:]
		} else {
			var open bool
			in, open = <-inbound
			if !open {
				return
			}
		}

		if in.Message == "" {
			if err := writeFrame(conn, wsFrame{Type: "error", Message: "message is required"}); err != nil {
				return
			}
			continue
		}

		updated, queued, ok := s.runExchange(r.Context(), conn, inbound, in.Message, history)
		pending = append(pending, queued...)
		if !ok {
			return
		}
		history = updated
	}
}

// runExchange executes one exchange, streaming events to the socket.
// Messages arriving while the exchange runs are collected and handed
// back for the caller to replay, in order, once this exchange's
// terminal frame is out; the inbound channel closing means the peer is
// gone, which cancels the engine so tool execution stops. Returns the
// updated history, the collected messages, and whether the connection
// is still usable.
func (s *Server) runExchange(parent context.Context, conn *websocket.Conn, inbound <-chan wsInbound, message string, prior engine.History) (engine.History, []wsInbound, bool) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan struct{})
	collected := make(chan []wsInbound, 1)
	go func() {
		var queued []wsInbound
		defer func() { collected <- queued }()
		for {
			select {
			case in, open := <-inbound:
				if !open {
					cancel()
					return
				}
				queued = append(queued, in)
			case <-done:
				return
			}
		}
	}()

	sawWriteError := false
	sink := func(ev engine.Event) {
		if sawWriteError {
			return
		}
		if err := writeFrame(conn, frameFor(ev)); err != nil {
			sawWriteError = true
			cancel()
		}
	}

	_, history, err := s.engine.Exchange(ctx, message, prior, sink)
	close(done)
	queued := <-collected

	if err != nil {
		if ctx.Err() != nil || sawWriteError {
			return nil, nil, false
		}
		s.logger.Error("websocket exchange failed", "error", err)
		if werr := writeFrame(conn, wsFrame{Type: "error", Message: "conversation failed"}); werr != nil {
			return nil, nil, false
		}
		// The exchange produced no consistent history; keep the prior
		// one so the client can retry.
		return prior, queued, true
	}
	if sawWriteError {
		return nil, nil, false
	}
	return history, queued, true
}

func frameFor(ev engine.Event) wsFrame {
	switch ev.Kind {
	case engine.EventToolUse:
		return wsFrame{Type: "tool_use", ToolName: ev.ToolName, ToolInput: ev.ToolInput}
	case engine.EventToolResult:
		return wsFrame{Type: "tool_result", Result: ev.Result}
	case engine.EventError:
		return wsFrame{Type: "error", Message: ev.Message}
	default:
		return wsFrame{Type: "response", Message: ev.Message}
	}
}

func writeFrame(conn *websocket.Conn, f wsFrame) error {
	return conn.WriteJSON(f)
}
