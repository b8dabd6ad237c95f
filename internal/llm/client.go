// Package llm provides the model-completion client.
package llm

import "context"

// Message is one turn in the transcript sent to the model.
// Role is "system", "user", "assistant", or "tool"; tool messages carry
// the originating call id in ToolCallID.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model. ID is the
// provider-assigned correlation id linking the eventual result back to
// this request.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolSpec advertises one invocable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// StopReason is the model's declared reason for ending its turn.
type StopReason string

const (
	// StopFinal means the model produced its final answer.
	StopFinal StopReason = "final"

	// StopToolRequest means the model wants tools invoked before it
	// can answer.
	StopToolRequest StopReason = "tool_request"
)

// CompletionRequest is one call to the model.
type CompletionRequest struct {
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int
}

// Completion is the model's response. Texts holds the textual content
// fragments in wire order; ToolCalls the requested invocations, if any.
type Completion struct {
	Model        string
	StopReason   StopReason
	Texts        []string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}

// Client is the completion API, treated as a black box by the engine:
// messages and a tool catalogue in, either a final text or a
// tool-invocation request out.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}
