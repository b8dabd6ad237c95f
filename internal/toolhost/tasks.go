package toolhost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskdeck/taskdeck/internal/mcp"
	"github.com/taskdeck/taskdeck/internal/task"
)

// Store is the task CRUD surface the tool handlers dispatch to.
type Store interface {
	Create(draft task.Draft) (*task.Task, error)
	List(skip, limit int, status task.Status) ([]*task.Task, int, error)
	Get(id int64) (*task.Task, error)
	Update(id int64, patch task.Patch) (*task.Task, error)
	Delete(id int64) (bool, error)
}

// executor runs individual tool calls against the store and shapes
// their outcomes as MCP call results. Application failures (validation,
// missing tasks) become isError content, never JSON-RPC errors, so the
// calling model sees them as tool output.
type executor struct {
	store  Store
	logger *slog.Logger
}

// listReply is the get_tasks_tool payload shape.
type listReply struct {
	Tasks []*task.Task `json:"tasks"`
	Total int          `json:"total"`
}

func (e *executor) call(_ context.Context, name string, args map[string]any) *mcp.CallResult {
	switch name {
	case "create_task_tool":
		return e.createTask(args)
	case "get_tasks_tool":
		return e.listTasks(args)
	case "get_task_tool":
		return e.getTask(args)
	case "update_task_tool":
		return e.updateTask(args)
	case "delete_task_tool":
		return e.deleteTask(args)
	default:
		// The dispatcher resolves names against the registry first, so
		// this only fires when the registry and executor drift apart.
		return errResult(fmt.Sprintf("tool %q has no handler", name))
	}
}

func (e *executor) createTask(args map[string]any) *mcp.CallResult {
	draft := task.Draft{}

	title, err := argString(args, "title", true)
	if err != nil {
		return errResult(err.Error())
	}
	draft.Title = title

	if desc, err := argString(args, "description", false); err != nil {
		return errResult(err.Error())
	} else if desc != "" {
		draft.Description = &desc
	}

	status, err := argStatus(args)
	if err != nil {
		return errResult(err.Error())
	}
	draft.Status = status

	due, err := argTime(args, "due_date")
	if err != nil {
		return errResult(err.Error())
	}
	draft.DueDate = due

	created, err := e.store.Create(draft)
	if err != nil {
		return errResult(err.Error())
	}
	return jsonResult(created)
}

func (e *executor) listTasks(args map[string]any) *mcp.CallResult {
	skip, err := argInt(args, "skip", 0)
	if err != nil {
		return errResult(err.Error())
	}
	limit, err := argInt(args, "limit", 100)
	if err != nil {
		return errResult(err.Error())
	}
	status, err := argStatus(args)
	if err != nil {
		return errResult(err.Error())
	}

	tasks, total, err := e.store.List(skip, limit, status)
	if err != nil {
		return errResult(err.Error())
	}
	return jsonResult(listReply{Tasks: tasks, Total: total})
}

func (e *executor) getTask(args map[string]any) *mcp.CallResult {
	id, err := argID(args)
	if err != nil {
		return errResult(err.Error())
	}

	t, err := e.store.Get(id)
	if err != nil {
		return errResult(err.Error())
	}
	if t == nil {
		return errResult(fmt.Sprintf("task %d not found", id))
	}
	return jsonResult(t)
}

func (e *executor) updateTask(args map[string]any) *mcp.CallResult {
	id, err := argID(args)
	if err != nil {
		return errResult(err.Error())
	}

	patch := task.Patch{}
	if _, ok := args["title"]; ok {
		title, err := argString(args, "title", true)
		if err != nil {
			return errResult(err.Error())
		}
		patch.Title = &title
	}
	if _, ok := args["description"]; ok {
		desc, err := argString(args, "description", false)
		if err != nil {
			return errResult(err.Error())
		}
		patch.Description = &desc
	}
	if _, ok := args["status"]; ok {
		status, err := argStatus(args)
		if err != nil {
			return errResult(err.Error())
		}
		patch.Status = &status
	}
	if _, ok := args["due_date"]; ok {
		due, err := argTime(args, "due_date")
		if err != nil {
			return errResult(err.Error())
		}
		patch.DueDate = due
	}

	t, err := e.store.Update(id, patch)
	if err != nil {
		return errResult(err.Error())
	}
	if t == nil {
		return errResult(fmt.Sprintf("task %d not found", id))
	}
	return jsonResult(t)
}

func (e *executor) deleteTask(args map[string]any) *mcp.CallResult {
	id, err := argID(args)
	if err != nil {
		return errResult(err.Error())
	}

	deleted, err := e.store.Delete(id)
	if err != nil {
		return errResult(err.Error())
	}
	if !deleted {
		return errResult(fmt.Sprintf("task %d not found", id))
	}
	return textResult(fmt.Sprintf("Task %d deleted", id))
}

// Argument extraction. Model-produced arguments arrive as loosely typed
// JSON, so numbers may be float64 and everything needs checking. Bad
// values are reported with the validation-error prefix so the engine
// classifies them as recoverable.

func argString(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", &task.ValidationError{Field: key, Reason: "is required"}
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &task.ValidationError{Field: key, Reason: "must be a string"}
	}
	return s, nil
}

func argInt(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, &task.ValidationError{Field: key, Reason: "must be an integer"}
	}
}

func argID(args map[string]any) (int64, error) {
	n, err := argInt(args, "id", -1)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &task.ValidationError{Field: "id", Reason: "is required"}
	}
	return int64(n), nil
}

func argStatus(args map[string]any) (task.Status, error) {
	s, err := argString(args, "status", false)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", nil
	}
	status := task.Status(s)
	if !status.Valid() {
		return "", &task.ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not a valid status", s)}
	}
	return status, nil
}

func argTime(args map[string]any, key string) (*time.Time, error) {
	s, err := argString(args, key, false)
	if err != nil {
		return nil, err
	}
	return task.ParseDueDate(s)
}

func textResult(text string) *mcp.CallResult {
	return &mcp.CallResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: text}},
	}
}

func jsonResult(v any) *mcp.CallResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errResult("encode result: " + err.Error())
	}
	return &mcp.CallResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: string(data)}},
	}
}

func errResult(text string) *mcp.CallResult {
	return &mcp.CallResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}
