// Package models defines the shared domain types for tasktalk.
package models

import "time"

// MaxTitleLength is the longest title a task may carry.
const MaxTitleLength = 255

// Task represents a single managed to-do item.
type Task struct {
	// ID is assigned by storage and never changes after creation.
	ID int64 `json:"id"`
	// Title is the short, required name of the task.
	Title string `json:"title"`
	// Description is optional free text. Nil means "not set".
	Description *string `json:"description"`
	// CreatedAt is when the task was inserted.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is refreshed on every mutation.
	UpdatedAt time.Time `json:"updated_at"`
}

// DescriptionText returns the description or an empty string when unset.
func (t Task) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// IndexText is the text the retrieval index embeds for this task.
func (t Task) IndexText() string {
	if d := t.DescriptionText(); d != "" {
		return t.Title + ". " + d
	}
	return t.Title
}

// TaskUpdate carries the optional fields of an update. Nil fields are left untouched.
type TaskUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil
}

// String returns a pointer to s. Handy for optional fields.
func String(s string) *string {
	return &s
}
