package models

import (
	"encoding/json"
	"time"
)

// Action tags which operation produced a ToolResult.
// The orchestrator routes on it, so every result must carry one.
type Action string

const (
	ActionCreated        Action = "created"
	ActionRead           Action = "read"
	ActionUpdated        Action = "updated"
	ActionDeleted        Action = "deleted"
	ActionSemanticSearch Action = "semantic_search"
)

// Valid returns true if the action is a known value.
func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionRead, ActionUpdated, ActionDeleted, ActionSemanticSearch:
		return true
	default:
		return false
	}
}

// Mutating reports whether the action changes stored tasks.
func (a Action) Mutating() bool {
	return a == ActionCreated || a == ActionUpdated || a == ActionDeleted
}

// Error codes carried by failed tool results.
const (
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
	CodeIndexUnavailable = "index_unavailable"
	CodeStorage          = "storage_error"
)

// SearchHit is one semantic search result.
type SearchHit struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	// RelevanceScore is normalized to [0,1]; higher is more relevant.
	RelevanceScore float64 `json:"relevance_score"`
}

// ToolResult is the structured outcome of one tool invocation.
type ToolResult struct {
	Success bool   `json:"success"`
	Action  Action `json:"action"`
	// Message is a human-readable summary.
	Message string `json:"message"`
	// Error is one of the Code* constants when Success is false.
	Error string `json:"error,omitempty"`

	Task         *Task       `json:"todo,omitempty"`
	Tasks        []Task      `json:"todos,omitempty"`
	Count        int         `json:"count"`
	DeletedID    int64       `json:"deleted_id,omitempty"`
	DeletedTitle string      `json:"deleted_title,omitempty"`
	Query        string      `json:"query,omitempty"`
	Results      []SearchHit `json:"results,omitempty"`
}

// Retrieval reports whether this is a successful semantic search.
func (r ToolResult) Retrieval() bool {
	return r.Success && r.Action == ActionSemanticSearch
}

// JSON serializes the result for the model's consumption.
func (r ToolResult) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"encode","message":"result could not be encoded"}`
	}
	return string(b)
}
