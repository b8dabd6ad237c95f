package toolhost

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taskdeck/taskdeck/internal/mcp"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/tools"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := task.OpenStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewServer(store, tools.NewRegistry(), nil)
}

// rpc posts one JSON-RPC request to the handler and decodes the response.
func rpc(t *testing.T, h http.Handler, body string) *mcp.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var resp mcp.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
	return &resp
}

// call runs tools/call for the given tool and decodes the call result.
func call(t *testing.T, h http.Handler, tool string, args string) *mcp.CallResult {
	t.Helper()
	body := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"` + tool + `","arguments":` + args + `}}`
	resp := rpc(t, h, body)
	if resp.Error != nil {
		t.Fatalf("tools/call %s: %v", tool, resp.Error)
	}
	var result mcp.CallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode call result: %v", err)
	}
	return &result
}

func TestHandlerInitialize(t *testing.T) {
	h := newTestServer(t).Handler()

	resp := rpc(t, h, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if resp.Error != nil {
		t.Fatalf("initialize: %v", resp.Error)
	}

	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.ProtocolVersion != protocolVersion {
		t.Errorf("protocolVersion = %q", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != serverName {
		t.Errorf("server name = %q", result.ServerInfo.Name)
	}
}

func TestHandlerPing(t *testing.T) {
	h := newTestServer(t).Handler()
	resp := rpc(t, h, `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	if resp.Error != nil {
		t.Errorf("ping: %v", resp.Error)
	}
}

func TestHandlerToolsList(t *testing.T) {
	h := newTestServer(t).Handler()

	resp := rpc(t, h, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("tools/list: %v", resp.Error)
	}

	var result struct {
		Tools []mcp.ToolDefinition `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Tools) != 5 {
		t.Fatalf("got %d tools, want 5", len(result.Tools))
	}
	if result.Tools[0].Name != "create_task_tool" {
		t.Errorf("first tool = %q", result.Tools[0].Name)
	}
	if result.Tools[0].InputSchema["type"] != "object" {
		t.Errorf("schema lost in transit: %v", result.Tools[0].InputSchema)
	}
}

func TestHandlerNotificationNoBody(t *testing.T) {
	h := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodPost, "/mcp",
		strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("notification got a body: %s", rec.Body.String())
	}
}

func TestHandlerMethodNotFound(t *testing.T) {
	h := newTestServer(t).Handler()
	resp := rpc(t, h, `{"jsonrpc":"2.0","id":4,"method":"resources/list"}`)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Errorf("error = %v, want method not found", resp.Error)
	}
}

func TestHandlerUnknownToolIsRPCError(t *testing.T) {
	h := newTestServer(t).Handler()
	resp := rpc(t, h, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"bogus_tool","arguments":{}}}`)
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Errorf("error = %v, want invalid params", resp.Error)
	}
}

func TestHandlerRejectsGet(t *testing.T) {
	h := newTestServer(t).Handler()
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestToolLifecycle(t *testing.T) {
	h := newTestServer(t).Handler()

	// Create
	res := call(t, h, "create_task_tool", `{"title":"write tests","status":"In Progress"}`)
	if res.IsError {
		t.Fatalf("create failed: %s", res.Content[0].Text)
	}
	var created task.Task
	if err := json.Unmarshal([]byte(res.Content[0].Text), &created); err != nil {
		t.Fatalf("create payload not a task: %v", err)
	}
	if created.ID == 0 || created.Status != task.StatusInProgress {
		t.Errorf("created = %+v", created)
	}

	// Get
	res = call(t, h, "get_task_tool", `{"id":1}`)
	if res.IsError {
		t.Fatalf("get failed: %s", res.Content[0].Text)
	}

	// List
	res = call(t, h, "get_tasks_tool", `{}`)
	var listed listReply
	if err := json.Unmarshal([]byte(res.Content[0].Text), &listed); err != nil {
		t.Fatalf("list payload: %v", err)
	}
	if listed.Total != 1 || len(listed.Tasks) != 1 {
		t.Errorf("list = %+v", listed)
	}

	// Update
	res = call(t, h, "update_task_tool", `{"id":1,"status":"Done"}`)
	if res.IsError {
		t.Fatalf("update failed: %s", res.Content[0].Text)
	}
	var updated task.Task
	if err := json.Unmarshal([]byte(res.Content[0].Text), &updated); err != nil {
		t.Fatalf("update payload: %v", err)
	}
	if updated.Status != task.StatusDone {
		t.Errorf("status = %q after update", updated.Status)
	}
	if updated.Title != "write tests" {
		t.Errorf("partial update clobbered title: %q", updated.Title)
	}

	// Delete returns plain text, not JSON.
	res = call(t, h, "delete_task_tool", `{"id":1}`)
	if res.IsError {
		t.Fatalf("delete failed: %s", res.Content[0].Text)
	}
	if res.Content[0].Text != "Task 1 deleted" {
		t.Errorf("delete payload = %q", res.Content[0].Text)
	}

	// Gone now.
	res = call(t, h, "get_task_tool", `{"id":1}`)
	if !res.IsError {
		t.Error("get after delete did not report an error")
	}
}

func TestToolValidationErrorsAreIsError(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name string
		tool string
		args string
	}{
		{name: "missing title", tool: "create_task_tool", args: `{}`},
		{name: "bad status", tool: "create_task_tool", args: `{"title":"x","status":"Someday"}`},
		{name: "past due date", tool: "create_task_tool", args: `{"title":"x","due_date":"2020-01-01"}`},
		{name: "missing id", tool: "get_task_tool", args: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, h, tt.tool, tt.args)
			if !res.IsError {
				t.Fatal("invalid input accepted")
			}
			if len(res.Content) != 1 {
				t.Fatalf("got %d content blocks, want 1", len(res.Content))
			}
			if !strings.Contains(res.Content[0].Text, "validation error") {
				t.Errorf("error text %q lacks the validation prefix", res.Content[0].Text)
			}
		})
	}
}

func TestToolSingleContentBlock(t *testing.T) {
	h := newTestServer(t).Handler()

	call(t, h, "create_task_tool", `{"title":"one"}`)
	for _, probe := range []struct{ tool, args string }{
		{"get_tasks_tool", `{}`},
		{"get_task_tool", `{"id":1}`},
		{"delete_task_tool", `{"id":1}`},
	} {
		res := call(t, h, probe.tool, probe.args)
		if len(res.Content) != 1 {
			t.Errorf("%s returned %d content blocks, want 1", probe.tool, len(res.Content))
		}
	}
}

func TestServeStdio(t *testing.T) {
	s := newTestServer(t)

	var in bytes.Buffer
	in.WriteString(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n")
	in.WriteString(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")
	in.WriteString(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"create_task_tool","arguments":{"title":"from stdio"}}}` + "\n")

	var out bytes.Buffer
	if err := s.ServeStdio(t.Context(), &in, &out); err != nil {
		t.Fatalf("ServeStdio: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d response lines, want 2 (notification is silent):\n%s", len(lines), out.String())
	}

	var second mcp.Response
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if second.ID != 2 || second.Error != nil {
		t.Errorf("second response = %+v", second)
	}
}

func TestLocalTransportDispatchesInProcess(t *testing.T) {
	s := newTestServer(t)
	tr := s.Transport()
	ctx := context.Background()

	resp, err := tr.Send(ctx, mcp.NewRequest(1, mcp.MethodInitialize, map[string]any{}))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.ID != 1 || resp.Error != nil {
		t.Fatalf("response = %+v", resp)
	}

	// Notifications produce no reply here either.
	resp, err = tr.Send(ctx, mcp.NewNotification(mcp.MethodInitialized, nil))
	if err != nil {
		t.Fatalf("notification: %v", err)
	}
	if resp != nil {
		t.Errorf("notification returned a response: %+v", resp)
	}

	// The full client stack runs over the in-process transport.
	client := mcp.NewClient("local", tr, nil)
	if err := client.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defs, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(defs) != 5 {
		t.Errorf("got %d tools, want 5", len(defs))
	}
}
