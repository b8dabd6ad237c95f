package engine

// EventKind identifies a progress event emitted during an exchange.
// The values double as the websocket frame "type" field.
type EventKind string

const (
	// EventToolUse fires when the model requests a tool invocation,
	// before the tool runs.
	EventToolUse EventKind = "tool_use"

	// EventToolResult fires when a tool invocation completes.
	EventToolResult EventKind = "tool_result"

	// EventResponse is the terminal event carrying the final answer.
	EventResponse EventKind = "response"

	// EventError is the terminal event for an engine-level failure.
	EventError EventKind = "error"
)

// Event is one progress notification. For a given exchange, events
// arrive strictly as {tool_use, tool_result}* followed by exactly one
// response or error.
type Event struct {
	Kind      EventKind
	ToolName  string
	ToolInput map[string]any
	Result    string
	Message   string
}

// EventSink receives progress events. Called synchronously from the
// exchange goroutine; implementations must not block for long.
type EventSink func(Event)
