// Package engine implements the tool-orchestration conversation engine:
// the bounded model/tool loop, the tool invoker, and the append-only
// conversation history threaded through both.
package engine

import (
	"fmt"

	"github.com/taskdeck/taskdeck/internal/llm"
)

// TurnKind tags one entry in the conversation history.
type TurnKind string

const (
	// TurnUser is a message from the human.
	TurnUser TurnKind = "user"

	// TurnAssistantText is a plain textual answer from the model.
	TurnAssistantText TurnKind = "assistant_text"

	// TurnToolRequests is a model turn requesting tool invocations.
	TurnToolRequests TurnKind = "tool_requests"

	// TurnToolResults carries the outcomes for the immediately
	// preceding TurnToolRequests, one per request, in request order.
	TurnToolResults TurnKind = "tool_results"
)

// ToolRequest is one tool invocation requested by the model.
type ToolRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of one tool invocation, tied to its request
// by ID. Content is the payload (or error text) exactly as it is fed
// back to the model; IsError distinguishes the two for clients.
type ToolResult struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Turn is one entry in a conversation history. Exactly the fields for
// its Kind are set.
type Turn struct {
	Kind     TurnKind      `json:"kind"`
	Text     string        `json:"text,omitempty"`
	Requests []ToolRequest `json:"requests,omitempty"`
	Results  []ToolResult  `json:"results,omitempty"`
}

// History is an append-only ordered sequence of turns. It is the unit
// of state handed back to the caller after each exchange, so a
// stateless transport can resume a conversation by replaying a history
// it already holds.
type History []Turn

// Validate checks the structural invariant: every tool_requests turn is
// immediately followed by a tool_results turn whose ids match the
// requesting turn's ids in the same order.
func (h History) Validate() error {
	for i, turn := range h {
		switch turn.Kind {
		case TurnUser, TurnAssistantText:
			// no pairing requirement

		case TurnToolRequests:
			if i+1 >= len(h) || h[i+1].Kind != TurnToolResults {
				return fmt.Errorf("turn %d: tool_requests not followed by tool_results", i)
			}
			results := h[i+1].Results
			if len(results) != len(turn.Requests) {
				return fmt.Errorf("turn %d: %d results for %d requests", i+1, len(results), len(turn.Requests))
			}
			for j, req := range turn.Requests {
				if results[j].ID != req.ID {
					return fmt.Errorf("turn %d result %d: correlation id %q, want %q", i+1, j, results[j].ID, req.ID)
				}
			}

		case TurnToolResults:
			if i == 0 || h[i-1].Kind != TurnToolRequests {
				return fmt.Errorf("turn %d: tool_results without preceding tool_requests", i)
			}

		default:
			return fmt.Errorf("turn %d: unknown kind %q", i, turn.Kind)
		}
	}
	return nil
}

// messages converts a history into the transcript shape the model API
// expects. Each tool result becomes its own tool-role message tagged
// with the originating call id, whether the invocation succeeded or
// failed; surfacing errors as tool output lets the model decide to
// retry with corrected arguments or give up gracefully.
func (h History) messages() []llm.Message {
	var out []llm.Message
	for _, turn := range h {
		switch turn.Kind {
		case TurnUser:
			out = append(out, llm.Message{Role: "user", Content: turn.Text})

		case TurnAssistantText:
			out = append(out, llm.Message{Role: "assistant", Content: turn.Text})

		case TurnToolRequests:
			calls := make([]llm.ToolCall, len(turn.Requests))
			for i, req := range turn.Requests {
				calls[i] = llm.ToolCall{
					ID:        req.ID,
					Name:      req.Name,
					Arguments: req.Arguments,
				}
			}
			out = append(out, llm.Message{Role: "assistant", ToolCalls: calls})

		case TurnToolResults:
			for _, res := range turn.Results {
				out = append(out, llm.Message{
					Role:       "tool",
					Content:    res.Content,
					ToolCallID: res.ID,
				})
			}
		}
	}
	return out
}
