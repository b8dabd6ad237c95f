package llm

import (
	"testing"
)

func TestConvertToAnthropicSystemExtraction(t *testing.T) {
	msgs, system := convertToAnthropic([]Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})

	if system != "be helpful" {
		t.Errorf("system = %q", system)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (system extracted)", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("roles = %q, %q", msgs[0].Role, msgs[1].Role)
	}
}

func TestConvertToAnthropicToolCalls(t *testing.T) {
	msgs, _ := convertToAnthropic([]Message{
		{Role: "assistant", ToolCalls: []ToolCall{
			{ID: "call_1", Name: "get_task_tool", Arguments: map[string]any{"id": 3}},
		}},
		{Role: "tool", Content: `{"id":3}`, ToolCallID: "call_1"},
	})

	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}

	blocks, ok := msgs[0].Content.([]anthropicContent)
	if !ok || len(blocks) != 1 {
		t.Fatalf("assistant content = %#v", msgs[0].Content)
	}
	if blocks[0].Type != "tool_use" || blocks[0].ID != "call_1" || blocks[0].Name != "get_task_tool" {
		t.Errorf("tool_use block = %+v", blocks[0])
	}

	// Tool results travel as user-role tool_result blocks.
	if msgs[1].Role != "user" {
		t.Errorf("tool result role = %q, want user", msgs[1].Role)
	}
	results, ok := msgs[1].Content.([]anthropicContent)
	if !ok || len(results) != 1 {
		t.Fatalf("tool result content = %#v", msgs[1].Content)
	}
	if results[0].Type != "tool_result" || results[0].ToolUseID != "call_1" {
		t.Errorf("tool_result block = %+v", results[0])
	}
}

func TestConvertToAnthropicGeneratesToolUseIDs(t *testing.T) {
	msgs, _ := convertToAnthropic([]Message{
		{Role: "assistant", ToolCalls: []ToolCall{{Name: "get_tasks_tool"}}},
	})

	blocks := msgs[0].Content.([]anthropicContent)
	if blocks[0].ID == "" {
		t.Error("tool_use block has no id")
	}
	if blocks[0].Input == nil {
		t.Error("nil arguments not replaced with an empty object")
	}
}

func TestConvertToolsToAnthropic(t *testing.T) {
	if got := convertToolsToAnthropic(nil); got != nil {
		t.Errorf("nil tools = %v, want nil", got)
	}

	out := convertToolsToAnthropic([]ToolSpec{
		{Name: "create_task_tool", Description: "create", InputSchema: map[string]any{"type": "object"}},
		{Name: "schemaless"},
	})
	if len(out) != 2 {
		t.Fatalf("got %d tools", len(out))
	}
	if out[0].Name != "create_task_tool" {
		t.Errorf("name = %q", out[0].Name)
	}
	if out[1].InputSchema == nil {
		t.Error("missing schema not defaulted")
	}
}

func TestConvertFromAnthropic(t *testing.T) {
	tests := []struct {
		name          string
		resp          anthropicResponse
		wantStop      StopReason
		wantTexts     int
		wantToolCalls int
	}{
		{
			name: "final text",
			resp: anthropicResponse{
				StopReason: "end_turn",
				Content:    []anthropicContent{{Type: "text", Text: "done"}},
			},
			wantStop:  StopFinal,
			wantTexts: 1,
		},
		{
			name: "tool use",
			resp: anthropicResponse{
				StopReason: "tool_use",
				Content: []anthropicContent{
					{Type: "text", Text: "Let me check."},
					{Type: "tool_use", ID: "t1", Name: "get_tasks_tool", Input: map[string]any{}},
				},
			},
			wantStop:      StopToolRequest,
			wantTexts:     1,
			wantToolCalls: 1,
		},
		{
			name: "tool blocks without the stop reason still count",
			resp: anthropicResponse{
				StopReason: "end_turn",
				Content: []anthropicContent{
					{Type: "tool_use", ID: "t1", Name: "get_tasks_tool", Input: map[string]any{}},
				},
			},
			wantStop:      StopToolRequest,
			wantToolCalls: 1,
		},
		{
			name:     "empty content",
			resp:     anthropicResponse{StopReason: "end_turn"},
			wantStop: StopFinal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertFromAnthropic(&tt.resp)
			if got.StopReason != tt.wantStop {
				t.Errorf("stop = %q, want %q", got.StopReason, tt.wantStop)
			}
			if len(got.Texts) != tt.wantTexts {
				t.Errorf("texts = %v", got.Texts)
			}
			if len(got.ToolCalls) != tt.wantToolCalls {
				t.Errorf("tool calls = %v", got.ToolCalls)
			}
		})
	}
}

func TestConvertFromAnthropicKeepsTextOrder(t *testing.T) {
	got := convertFromAnthropic(&anthropicResponse{
		StopReason: "end_turn",
		Content: []anthropicContent{
			{Type: "text", Text: "first"},
			{Type: "text", Text: "second"},
		},
	})
	if len(got.Texts) != 2 || got.Texts[0] != "first" || got.Texts[1] != "second" {
		t.Errorf("texts = %v", got.Texts)
	}
}
