package agent

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// FallbackAnswer is returned when a turn produced nothing to show.
const FallbackAnswer = "I processed your request but couldn't generate a response. Please try again."

// EmptyListAnswer replaces the summary of a successful read of an empty list.
const EmptyListAnswer = "Your todo list is empty. Would you like to add a task?"

// Project turns the messages produced during one turn into the answer text.
// The last non-empty assistant text wins; otherwise the last tool result is
// rendered. The result is never empty.
func Project(turn []models.Message) string {
	var answer string
	var lastTool *models.Message
	for i := range turn {
		m := &turn[i]
		switch m.Role {
		case models.RoleAssistant:
			if strings.TrimSpace(m.Content) != "" {
				answer = m.Content
			}
		case models.RoleTool:
			lastTool = m
		}
	}
	if answer != "" {
		return answer
	}
	if lastTool != nil {
		if s := renderToolFallback(*lastTool); s != "" {
			return s
		}
	}
	return FallbackAnswer
}

// ToolsUsed reports whether any tool message is present.
func ToolsUsed(turn []models.Message) bool {
	for _, m := range turn {
		if m.Role == models.RoleTool {
			return true
		}
	}
	return false
}

func renderToolFallback(m models.Message) string {
	r := m.Result
	if r == nil {
		return m.Content
	}
	if !r.Success {
		if r.Message != "" {
			return r.Message
		}
		return "Operation failed."
	}

	msg := r.Message
	if msg == "" {
		msg = "Operation completed successfully."
	}

	var b strings.Builder
	b.WriteString(msg)
	switch r.Action {
	case models.ActionRead:
		if len(r.Tasks) == 0 {
			return EmptyListAnswer
		}
		b.WriteString("\n\nHere are your todos:\n")
		for _, t := range r.Tasks {
			writeBullet(&b, t.ID, t.Title, t.DescriptionText())
			b.WriteString("\n")
		}
	case models.ActionSemanticSearch:
		if len(r.Results) > 0 {
			b.WriteString("\n\nRelevant todos:\n")
			for _, h := range r.Results {
				writeBullet(&b, h.ID, h.Title, h.Description)
				fmt.Fprintf(&b, " (relevance: %.2f)\n", h.RelevanceScore)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeBullet(b *strings.Builder, id int64, title, desc string) {
	fmt.Fprintf(b, "• [%d] %s", id, title)
	if desc != "" {
		fmt.Fprintf(b, " - %s", desc)
	}
}
