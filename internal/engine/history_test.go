package engine

import (
	"encoding/json"
	"reflect"
	"testing"
)

func pairedTurns(ids ...string) []Turn {
	reqs := make([]ToolRequest, len(ids))
	ress := make([]ToolResult, len(ids))
	for i, id := range ids {
		reqs[i] = ToolRequest{ID: id, Name: "get_task_tool", Arguments: map[string]any{"id": float64(i)}}
		ress[i] = ToolResult{ID: id, Content: "{}"}
	}
	return []Turn{
		{Kind: TurnToolRequests, Requests: reqs},
		{Kind: TurnToolResults, Results: ress},
	}
}

func TestHistoryValidate(t *testing.T) {
	tests := []struct {
		name    string
		history History
		wantErr bool
	}{
		{name: "empty", history: nil},
		{
			name: "plain conversation",
			history: History{
				{Kind: TurnUser, Text: "hi"},
				{Kind: TurnAssistantText, Text: "hello"},
			},
		},
		{
			name: "paired tool turns",
			history: append(History{{Kind: TurnUser, Text: "list tasks"}},
				pairedTurns("call_1", "call_2")...),
		},
		{
			name: "requests without results",
			history: History{
				{Kind: TurnUser, Text: "x"},
				{Kind: TurnToolRequests, Requests: []ToolRequest{{ID: "a", Name: "get_tasks_tool"}}},
			},
			wantErr: true,
		},
		{
			name: "results without requests",
			history: History{
				{Kind: TurnToolResults, Results: []ToolResult{{ID: "a", Content: "{}"}}},
			},
			wantErr: true,
		},
		{
			name: "count mismatch",
			history: History{
				{Kind: TurnToolRequests, Requests: []ToolRequest{{ID: "a"}, {ID: "b"}}},
				{Kind: TurnToolResults, Results: []ToolResult{{ID: "a", Content: "{}"}}},
			},
			wantErr: true,
		},
		{
			name: "id order mismatch",
			history: History{
				{Kind: TurnToolRequests, Requests: []ToolRequest{{ID: "a"}, {ID: "b"}}},
				{Kind: TurnToolResults, Results: []ToolResult{{ID: "b"}, {ID: "a"}}},
			},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			history: History{{Kind: "interpretive_dance"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.history.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHistoryJSONRoundTrip(t *testing.T) {
	original := append(History{{Kind: TurnUser, Text: "create a task"}},
		pairedTurns("call_a")...)
	original = append(original, Turn{Kind: TurnAssistantText, Text: "done"})

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored History
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := restored.Validate(); err != nil {
		t.Fatalf("restored history invalid: %v", err)
	}
	if !reflect.DeepEqual(original, restored) {
		t.Errorf("round trip changed history:\n got %+v\nwant %+v", restored, original)
	}
}

func TestHistoryMessages(t *testing.T) {
	h := History{
		{Kind: TurnUser, Text: "delete task 3"},
		{Kind: TurnToolRequests, Requests: []ToolRequest{
			{ID: "call_x", Name: "delete_task_tool", Arguments: map[string]any{"id": float64(3)}},
		}},
		{Kind: TurnToolResults, Results: []ToolResult{
			{ID: "call_x", Content: "Task 3 deleted"},
		}},
		{Kind: TurnAssistantText, Text: "Deleted it."},
	}

	msgs := h.messages()
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}

	if msgs[0].Role != "user" {
		t.Errorf("msgs[0].Role = %q", msgs[0].Role)
	}
	if msgs[1].Role != "assistant" || len(msgs[1].ToolCalls) != 1 {
		t.Errorf("msgs[1] = %+v, want assistant with one tool call", msgs[1])
	}
	if msgs[2].Role != "tool" || msgs[2].ToolCallID != "call_x" {
		t.Errorf("msgs[2] = %+v, want tool message with call id", msgs[2])
	}
	if msgs[2].Content != "Task 3 deleted" {
		t.Errorf("msgs[2].Content = %q", msgs[2].Content)
	}
	if msgs[3].Role != "assistant" || msgs[3].Content != "Deleted it." {
		t.Errorf("msgs[3] = %+v", msgs[3])
	}
}

func TestHistoryMessagesErrorsSurfaceAsToolOutput(t *testing.T) {
	h := History{
		{Kind: TurnToolRequests, Requests: []ToolRequest{{ID: "c1", Name: "create_task_tool"}}},
		{Kind: TurnToolResults, Results: []ToolResult{
			{ID: "c1", Content: "validation error: title must not be empty", IsError: true},
		}},
	}

	msgs := h.messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[1].Role != "tool" {
		t.Errorf("error result role = %q, want tool", msgs[1].Role)
	}
	if msgs[1].Content != "validation error: title must not be empty" {
		t.Errorf("error result content = %q", msgs[1].Content)
	}
}
