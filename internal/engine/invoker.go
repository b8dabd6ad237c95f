package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/taskdeck/taskdeck/internal/mcp"
	"github.com/taskdeck/taskdeck/internal/tools"
)

// Error texts for the non-recoverable invoker outcomes. These are what
// the model (and transcripts) see, so they stay short and stable.
const (
	errSessionUnavailable = "session unavailable"
	errUnknownTool        = "unknown tool"
	errMalformedResponse  = "malformed tool response"
)

// Outcome is the normalized result of one tool invocation. Exactly one
// of the success fields or the error fields is meaningful: when OK,
// Payload holds the flat payload text and Value its parsed form for
// JSON-shaped tools; otherwise ErrText describes the failure and
// Recoverable tells the caller whether a retry with different input
// could succeed.
type Outcome struct {
	OK          bool
	Payload     string
	Value       any
	ErrText     string
	Recoverable bool
}

// ResultText returns what gets folded into history as tool output:
// the payload on success, the error text on failure.
func (o Outcome) ResultText() string {
	if o.OK {
		return o.Payload
	}
	return o.ErrText
}

func errorOutcome(text string, recoverable bool) Outcome {
	return Outcome{ErrText: text, Recoverable: recoverable}
}

// Invoker dispatches tool calls over the shared session. It holds the
// session read-only and performs no retries of its own; transient
// failures are reported recoverable and left to the caller.
type Invoker struct {
	session  *mcp.Session
	registry *tools.Registry
	logger   *slog.Logger
}

// NewInvoker creates an invoker bound to a session and registry.
func NewInvoker(session *mcp.Session, registry *tools.Registry, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		session:  session,
		registry: registry,
		logger:   logger,
	}
}

// Invoke runs one tool call end to end: session gate, registry lookup,
// forwarding, and result normalization.
func (inv *Invoker) Invoke(ctx context.Context, name string, args map[string]any) Outcome {
	// An unready session fails fast; no network call is attempted.
	client, err := inv.session.Client()
	if err != nil {
		inv.logger.Warn("tool call rejected, session not ready", "tool", name, "state", inv.session.State().String())
		return errorOutcome(errSessionUnavailable, false)
	}

	// Unknown names are a catalogue mismatch and must never reach the
	// tool host.
	desc, err := inv.registry.Resolve(name)
	if err != nil {
		inv.logger.Warn("tool call rejected, not in registry", "tool", name)
		return errorOutcome(errUnknownTool, false)
	}

	res, err := client.CallTool(ctx, name, args)
	if err != nil {
		// Transport-level failure (timeout, connection drop, protocol
		// error). The caller may retry once the session recovers.
		inv.logger.Warn("tool call transport failure", "tool", name, "error", err)
		return errorOutcome(err.Error(), true)
	}

	if res.IsError {
		text := joinText(res.Content)
		recoverable := isValidationFailure(text)
		inv.logger.Debug("tool reported error", "tool", name, "recoverable", recoverable, "error", text)
		return errorOutcome(text, recoverable)
	}

	// Exactly one content payload is expected; anything else is a
	// malformed reply we refuse to guess at.
	if len(res.Content) != 1 {
		inv.logger.Warn("tool returned unexpected payload count", "tool", name, "fragments", len(res.Content))
		return errorOutcome(errMalformedResponse, false)
	}

	payload := res.Content[0].Text

	outcome := Outcome{OK: true, Payload: payload}
	if desc.Output == tools.OutputJSON {
		var value any
		if err := json.Unmarshal([]byte(payload), &value); err != nil {
			inv.logger.Warn("tool payload is not valid JSON", "tool", name, "error", err)
			return errorOutcome(errMalformedResponse, false)
		}
		outcome.Value = value
	}

	return outcome
}

// isValidationFailure classifies an application-level tool error as an
// input validation failure, which the model may correct and retry.
//
// The tool host reports failures as bare text, so this matches on the
// error prefix emitted by the task validation layer. A structured error
// kind on the wire would be better; the MCP isError field carries no
// such detail today.
func isValidationFailure(text string) bool {
	return strings.Contains(strings.ToLower(text), "validation error")
}

// joinText flattens content blocks into one string for error reporting.
func joinText(blocks []mcp.ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
