package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/llm"
	"github.com/taskdeck/taskdeck/internal/tools"
)

// FallbackAnswer substitutes for a terminal model response that carries
// no textual content at all.
const FallbackAnswer = "request completed, no further detail"

// degradedAnswer terminates an exchange that hit the iteration cap
// without the model ever producing a final answer.
const degradedAnswer = "I couldn't finish this request within the allowed number of tool steps. The tool results gathered so far are in the conversation; please narrow the request and try again."

const systemPrompt = "You are a task management assistant. You help the user create, list, " +
	"update, and delete tasks through the provided tools. Use tools whenever the request " +
	"concerns tasks; answer directly otherwise. Be concise. When you create or change a " +
	"task, mention its title and id in your answer."

// DefaultMaxIterations bounds model/tool round-trips per exchange when
// the configuration does not say otherwise.
const DefaultMaxIterations = 8

// Engine drives one conversation exchange: it repeatedly asks the model
// for its next action, executes requested tools through the invoker,
// and folds the results back into history until the model produces a
// final answer or the iteration cap is hit.
//
// The engine holds no cross-exchange state; history is owned by the
// caller and threaded through each call.
type Engine struct {
	client        llm.Client
	invoker       *Invoker
	registry      *tools.Registry
	logger        *slog.Logger
	maxIterations int
	maxTokens     int
}

// New creates an engine. maxIterations <= 0 selects DefaultMaxIterations.
func New(client llm.Client, invoker *Invoker, registry *tools.Registry, maxIterations, maxTokens int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Engine{
		client:        client,
		invoker:       invoker,
		registry:      registry,
		logger:        logger,
		maxIterations: maxIterations,
		maxTokens:     maxTokens,
	}
}

// Exchange runs one user message through to one final answer. The
// returned history is the full ordered sequence including the new
// turns; feeding it back as prior continues the conversation with no
// hidden server-side state.
//
// Tool failures are folded into history as tool output and never abort
// the exchange. An error return means the exchange itself failed (model
// API failure, malformed prior history, cancellation) and nothing
// should be shown or persisted; sink, when non-nil, has then received
// no terminal response event for this exchange.
func (e *Engine) Exchange(ctx context.Context, message string, prior History, sink EventSink) (string, History, error) {
	if err := prior.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid conversation history: %w", err)
	}

	history := make(History, len(prior), len(prior)+4)
	copy(history, prior)
	history = append(history, Turn{Kind: TurnUser, Text: message})

	catalogue := e.toolSpecs()

	for iteration := 0; iteration < e.maxIterations; iteration++ {
		e.logger.Debug("requesting completion", "iteration", iteration, "turns", len(history))

		comp, err := e.client.Complete(ctx, llm.CompletionRequest{
			Messages:  append([]llm.Message{{Role: "system", Content: systemPrompt}}, history.messages()...),
			Tools:     catalogue,
			MaxTokens: e.maxTokens,
		})
		if err != nil {
			return "", nil, fmt.Errorf("model completion: %w", err)
		}

		if comp.StopReason != llm.StopToolRequest || len(comp.ToolCalls) == 0 {
			answer := finalAnswer(comp.Texts)
			history = append(history, Turn{Kind: TurnAssistantText, Text: answer})
			emit(sink, Event{Kind: EventResponse, Message: answer})
			return answer, history, nil
		}

		requests := make([]ToolRequest, len(comp.ToolCalls))
		for i, call := range comp.ToolCalls {
			id := call.ID
			if id == "" {
				// Providers normally assign correlation ids; generate
				// one so the pairing invariant holds regardless.
				id = "call_" + uuid.NewString()
			}
			requests[i] = ToolRequest{ID: id, Name: call.Name, Arguments: call.Arguments}
		}
		history = append(history, Turn{Kind: TurnToolRequests, Requests: requests})

		// Sequential execution; results keep request order so
		// transcripts are reproducible.
		results := make([]ToolResult, len(requests))
		for i, req := range requests {
			emit(sink, Event{Kind: EventToolUse, ToolName: req.Name, ToolInput: req.Arguments})

			outcome := e.invoker.Invoke(ctx, req.Name, req.Arguments)

			// A cancelled exchange lets the in-flight call finish but
			// discards its result instead of emitting it.
			if ctx.Err() != nil {
				return "", nil, ctx.Err()
			}

			results[i] = ToolResult{
				ID:      req.ID,
				Content: outcome.ResultText(),
				IsError: !outcome.OK,
			}
			e.logger.Info("tool invoked",
				"tool", req.Name,
				"ok", outcome.OK,
				"recoverable", outcome.Recoverable,
			)
			emit(sink, Event{Kind: EventToolResult, ToolName: req.Name, Result: results[i].Content})
		}
		history = append(history, Turn{Kind: TurnToolResults, Results: results})
	}

	// The model never emitted a final answer. Degrade gracefully with a
	// best-effort answer rather than looping forever or failing the user.
	e.logger.Warn("exchange hit iteration cap", "max_iterations", e.maxIterations)
	history = append(history, Turn{Kind: TurnAssistantText, Text: degradedAnswer})
	emit(sink, Event{Kind: EventResponse, Message: degradedAnswer})
	return degradedAnswer, history, nil
}

// toolSpecs projects the registry onto the model API's catalogue shape.
func (e *Engine) toolSpecs() []llm.ToolSpec {
	descriptors := e.registry.List()
	specs := make([]llm.ToolSpec, len(descriptors))
	for i, d := range descriptors {
		specs[i] = llm.ToolSpec{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		}
	}
	return specs
}

// finalAnswer picks the first non-empty text fragment, or the fixed
// fallback when the terminal response carried none.
func finalAnswer(texts []string) string {
	for _, t := range texts {
		if t != "" {
			return t
		}
	}
	return FallbackAnswer
}

func emit(sink EventSink, ev Event) {
	if sink != nil {
		sink(ev)
	}
}
