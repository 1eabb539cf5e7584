// Package mcpserver exposes the task tools over the Model Context Protocol,
// so other assistants can manage the same task list.
//
// Every registry tool is published under its own name with the same schema
// the internal model sees. When a session manager is supplied, an extra
// ask_assistant tool runs a full conversational turn.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ShayCichocki/tasktalk/internal/session"
	"github.com/ShayCichocki/tasktalk/internal/tools"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// AskToolName is the conversational tool, registered only with a session manager.
const AskToolName = "ask_assistant"

// MaxConversations bounds the named conversations ask_assistant keeps.
// The least recently used one is destroyed past the bound.
const MaxConversations = 64

// Registry is the subset of the tool registry the server publishes.
type Registry interface {
	Declarations() []tools.Declaration
	Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error)
}

// New creates the MCP server. sessions may be nil.
func New(reg Registry, sessions *session.Manager, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"tasktalk",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	for _, decl := range reg.Declarations() {
		s.AddTool(Definition(decl), handlerFor(reg, decl.Name))
	}
	if sessions != nil {
		ask := newAskTool(sessions, MaxConversations)
		s.AddTool(ask.Definition(), ask.Handle)
	}
	return s
}

// Serve runs the server over stdin and stdout until the client goes away.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = "Task list tools. Use read_todos to see everything, " +
	"search_todos_semantic to find tasks by meaning, and create_todo, update_todo " +
	"or delete_todo to change the list. Todo IDs come from read or search results."

// Definition converts a registry declaration into an MCP tool.
func Definition(decl tools.Declaration) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(decl.Description)}
	for _, p := range decl.Params {
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		switch p.Type {
		case "integer":
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}
	return mcp.NewTool(decl.Name, opts...)
}

func handlerFor(reg Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := reg.Execute(ctx, models.ToolCall{
			ID:        "mcp_" + uuid.NewString()[:8],
			Name:      name,
			Arguments: args,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !result.Success {
			return mcp.NewToolResultError(result.JSON()), nil
		}
		return mcp.NewToolResultText(result.JSON()), nil
	}
}

type askTool struct {
	sessions *session.Manager
	limit    int

	mu sync.Mutex
	// recent holds retained conversation ids, least recently used first.
	recent []string
}

func newAskTool(sessions *session.Manager, limit int) *askTool {
	if limit <= 0 {
		limit = MaxConversations
	}
	return &askTool{sessions: sessions, limit: limit}
}

func (t *askTool) Definition() mcp.Tool {
	return mcp.NewTool(AskToolName,
		mcp.WithDescription(
			"Ask the task assistant in natural language. It can create, update, delete "+
				"and search todos on your behalf and answers in plain text.",
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("What you want the assistant to do"),
		),
		mcp.WithString("conversation_id",
			mcp.Description("Name of a conversation to start or continue. "+
				"Omit for a one-off question that keeps no history."),
		),
	)
}

func (t *askTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message := req.GetString("message", "")
	if message == "" {
		return mcp.NewToolResultError("'message' is required"), nil
	}

	id := req.GetString("conversation_id", "")
	var sess *session.Session
	if id != "" {
		sess = t.sessions.GetOrCreate(id)
		t.touch(id)
	} else {
		sess = t.sessions.Create()
		defer t.sessions.Destroy(sess.ID)
	}

	result, err := sess.HandleTurn(ctx, message)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("assistant failed: %v", err)), nil
	}
	if id == "" {
		return mcp.NewToolResultText(result.Answer), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n(conversation_id: %s)", result.Answer, id)), nil
}

// touch marks id as most recently used and destroys conversations past the bound.
func (t *askTool) touch(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, r := range t.recent {
		if r == id {
			t.recent = append(t.recent[:i], t.recent[i+1:]...)
			break
		}
	}
	t.recent = append(t.recent, id)

	for len(t.recent) > t.limit {
		t.sessions.Destroy(t.recent[0])
		t.recent = t.recent[1:]
	}
}
