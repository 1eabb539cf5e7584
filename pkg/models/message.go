package models

import "encoding/json"

// Role identifies who produced a message.
type Role string

const (
	// RoleUser is a message typed by the person.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"
	// RoleTool carries the result of one tool invocation.
	RoleTool Role = "tool"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// ToolCall is a model's request to invoke a named tool.
type ToolCall struct {
	// ID correlates the call with its result message.
	ID string `json:"id"`
	// Name is the declared tool name.
	Name string `json:"name"`
	// Arguments is the raw JSON object the model produced.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is one entry of a conversation. Order is chronological.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	// ToolCalls is only set on assistant messages requesting tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID and Result are only set on tool messages.
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolName   string      `json:"tool_name,omitempty"`
	Result     *ToolResult `json:"result,omitempty"`
}

// NewUserMessage builds a user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage builds a plain assistant message.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// NewToolMessage builds the tool message answering call.
func NewToolMessage(call ToolCall, result ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    result.JSON(),
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Result:     &result,
	}
}

// HasToolCalls reports whether an assistant message requests tools.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}
