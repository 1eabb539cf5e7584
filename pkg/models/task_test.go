package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTask_IndexText(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want string
	}{
		{"title only", Task{Title: "Buy milk"}, "Buy milk"},
		{"empty description", Task{Title: "Buy milk", Description: String("")}, "Buy milk"},
		{"with description", Task{Title: "Study", Description: String("chapter 4")}, "Study. chapter 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.IndexText(); got != tt.want {
				t.Errorf("IndexText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTaskUpdate_Empty(t *testing.T) {
	if !(TaskUpdate{}).Empty() {
		t.Error("zero TaskUpdate should be empty")
	}
	if (TaskUpdate{Title: String("x")}).Empty() {
		t.Error("TaskUpdate with title should not be empty")
	}
}

func TestAction_Valid(t *testing.T) {
	tests := []struct {
		action Action
		want   bool
	}{
		{ActionCreated, true},
		{ActionRead, true},
		{ActionUpdated, true},
		{ActionDeleted, true},
		{ActionSemanticSearch, true},
		{Action(""), false},
		{Action("search"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			if got := tt.action.Valid(); got != tt.want {
				t.Errorf("Action(%q).Valid() = %v, want %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestAction_Mutating(t *testing.T) {
	if ActionRead.Mutating() || ActionSemanticSearch.Mutating() {
		t.Error("read and semantic_search must not be mutating")
	}
	if !ActionCreated.Mutating() || !ActionUpdated.Mutating() || !ActionDeleted.Mutating() {
		t.Error("create, update and delete must be mutating")
	}
}

func TestToolResult_Retrieval(t *testing.T) {
	if !(ToolResult{Success: true, Action: ActionSemanticSearch}).Retrieval() {
		t.Error("successful semantic_search should be retrieval")
	}
	if (ToolResult{Success: false, Action: ActionSemanticSearch}).Retrieval() {
		t.Error("failed semantic_search should not be retrieval")
	}
	if (ToolResult{Success: true, Action: ActionRead}).Retrieval() {
		t.Error("read should not be retrieval")
	}
}

func TestToolResult_JSONCarriesAction(t *testing.T) {
	r := ToolResult{Success: false, Action: ActionDeleted, Error: CodeNotFound, Message: "No todo found with ID 9"}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(r.JSON()), &decoded); err != nil {
		t.Fatalf("JSON() produced invalid JSON: %v", err)
	}
	if decoded["action"] != "deleted" {
		t.Errorf("action = %v, want deleted", decoded["action"])
	}
	if decoded["error"] != CodeNotFound {
		t.Errorf("error = %v, want %s", decoded["error"], CodeNotFound)
	}
}

func TestNewToolMessage(t *testing.T) {
	call := ToolCall{ID: "call_1", Name: "read_todos"}
	msg := NewToolMessage(call, ToolResult{Success: true, Action: ActionRead, Message: "Found 0 todo(s)"})

	if msg.Role != RoleTool {
		t.Errorf("Role = %q, want tool", msg.Role)
	}
	if msg.ToolCallID != "call_1" || msg.ToolName != "read_todos" {
		t.Errorf("tool message not correlated with call: %+v", msg)
	}
	if msg.Result == nil || msg.Result.Action != ActionRead {
		t.Errorf("Result not attached: %+v", msg.Result)
	}
	if !strings.Contains(msg.Content, `"action":"read"`) {
		t.Errorf("Content = %q, want serialized result", msg.Content)
	}
}

func TestMessage_HasToolCalls(t *testing.T) {
	if NewAssistantMessage("hi").HasToolCalls() {
		t.Error("plain assistant message should not have tool calls")
	}
	m := Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "1", Name: "read_todos"}}}
	if !m.HasToolCalls() {
		t.Error("assistant message with calls should report tool calls")
	}
	u := Message{Role: RoleUser, ToolCalls: []ToolCall{{ID: "1"}}}
	if u.HasToolCalls() {
		t.Error("only assistant messages carry tool calls")
	}
}
