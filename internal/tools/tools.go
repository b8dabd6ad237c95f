// Package tools defines the catalogue of task tools the model may invoke.
//
// The same descriptors serve three consumers: the conversation engine
// advertises them to the model, the invoker validates dispatch against
// them, and the tool host publishes them through tools/list. Keeping one
// definition guarantees the advertised schema and the served schema
// never drift apart.
package tools

import "fmt"

// OutputKind declares the shape of a tool's single content payload.
type OutputKind int

const (
	// OutputText is a bare human-readable string.
	OutputText OutputKind = iota

	// OutputJSON is JSON text that downstream consumers parse before use.
	OutputJSON
)

// String names the kind for logs and documentation.
func (k OutputKind) String() string {
	if k == OutputJSON {
		return "json"
	}
	return "text"
}

// Descriptor is an immutable record describing one invocable tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Output      OutputKind     `json:"-"`
}

// ErrUnknownTool is returned when a name does not resolve against the
// registry. This is a catalogue mismatch, never a transient failure;
// callers must not forward the call to the tool host.
type ErrUnknownTool struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrUnknownTool) Error() string {
	return fmt.Sprintf("unknown tool %q", e.ToolName)
}

// Registry is the static tool catalogue. It is populated once at
// construction and read-only afterwards.
type Registry struct {
	ordered []*Descriptor
	byName  map[string]*Descriptor
}

// NewRegistry builds the registry of task tools.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*Descriptor)}
	for _, d := range taskDescriptors() {
		r.ordered = append(r.ordered, d)
		r.byName[d.Name] = d
	}
	return r
}

// List returns all descriptors in stable registration order.
func (r *Registry) List() []*Descriptor {
	out := make([]*Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Resolve looks a tool up by name.
func (r *Registry) Resolve(name string) (*Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, &ErrUnknownTool{ToolName: name}
	}
	return d, nil
}

// statusSchema is the shared enum fragment for task status arguments.
func statusSchema() map[string]any {
	return map[string]any{
		"type":        "string",
		"enum":        []string{"To Do", "In Progress", "Done"},
		"description": "Task status",
	}
}

func taskDescriptors() []*Descriptor {
	return []*Descriptor{
		{
			Name:        "create_task_tool",
			Description: "Create a new task. Returns the created task as JSON, including its generated id.",
			Output:      OutputJSON,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Task title (1-200 characters)",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Optional longer task description",
					},
					"status": statusSchema(),
					"due_date": map[string]any{
						"type":        "string",
						"description": "Optional due date in RFC 3339 format. Must not be in the past.",
					},
				},
				"required": []string{"title"},
			},
		},
		{
			Name:        "get_tasks_tool",
			Description: "List tasks, newest first. Returns JSON with a `tasks` array and a `total` count.",
			Output:      OutputJSON,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"skip": map[string]any{
						"type":        "integer",
						"description": "Number of tasks to skip (pagination offset)",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of tasks to return (default 100)",
					},
					"status": statusSchema(),
				},
			},
		},
		{
			Name:        "get_task_tool",
			Description: "Fetch a single task by id. Returns the task as JSON.",
			Output:      OutputJSON,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "integer",
						"description": "Task id",
					},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "update_task_tool",
			Description: "Update fields of an existing task. Omitted fields are left unchanged. Returns the updated task as JSON.",
			Output:      OutputJSON,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "integer",
						"description": "Task id",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "New task title (1-200 characters)",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "New task description",
					},
					"status": statusSchema(),
					"due_date": map[string]any{
						"type":        "string",
						"description": "New due date in RFC 3339 format. Must not be in the past.",
					},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "delete_task_tool",
			Description: "Delete a task by id. Returns a confirmation message.",
			Output:      OutputText,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "integer",
						"description": "Task id",
					},
				},
				"required": []string{"id"},
			},
		},
	}
}
