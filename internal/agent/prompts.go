package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// DefaultSystemPrompt lists the assistant's capabilities and how to pick a tool.
const DefaultSystemPrompt = `You are an intelligent Todo Manager AI assistant. Your job is to help users manage their todo list using natural language.

## Your Capabilities:
1. **CREATE** todos when users want to add new tasks
2. **READ** todos when users want to see their list
3. **UPDATE** todos when users want to modify existing tasks
4. **DELETE** todos when users want to remove tasks
5. **SEMANTIC SEARCH** for analytical or meaning-based queries

## Tool Selection Rules:
- For adding/creating tasks → use ` + "`create_todo`" + `
- For listing/viewing all tasks → use ` + "`read_todos`" + `
- For modifying/updating tasks → use ` + "`update_todo`" + ` (requires todo ID)
- For removing/deleting tasks → use ` + "`delete_todo`" + ` (requires todo ID)
- For semantic queries like "what tasks am I postponing?" → use ` + "`search_todos_semantic`" + `

## Important Guidelines:
1. When the user references a task without an ID, first call ` + "`read_todos`" + ` to find it
2. For vague references like "my last todo" or "the milk task", look it up first to identify the correct ID
3. Always confirm actions with clear, friendly messages
4. If a request is unclear, ask for clarification

## Response Style:
- Be concise but helpful
- Use bullet points for listing multiple items
- Confirm successful operations

You have access to these tools: create_todo, read_todos, update_todo, delete_todo, search_todos_semantic`

// synthesisPrompt builds the single-shot prompt for the retrieval answer.
// others holds the summaries of any non-retrieval results from the same step.
func synthesisPrompt(search models.ToolResult, others []string) string {
	results := search.Results
	if results == nil {
		results = []models.SearchHit{}
	}
	encoded, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		encoded = []byte("[]")
	}

	query := search.Query
	if query == "" {
		query = "Unknown"
	}

	var b strings.Builder
	b.WriteString("Based on the semantic search results, provide a helpful response to the user.\n\n")
	fmt.Fprintf(&b, "Search Query: %s\n\n", query)
	fmt.Fprintf(&b, "Retrieved Todos:\n%s\n\n", encoded)
	if len(others) > 0 {
		b.WriteString("Other actions performed in this request:\n")
		for _, o := range others {
			fmt.Fprintf(&b, "- %s\n", o)
		}
		b.WriteString("\n")
	}
	b.WriteString("Instructions:\n")
	b.WriteString("- Summarize or analyze the retrieved todos based on the user's question\n")
	b.WriteString("- Be concise and helpful\n")
	b.WriteString("- If no relevant todos were found, say so politely\n")
	b.WriteString("- Provide insights or suggestions if appropriate")
	return b.String()
}
