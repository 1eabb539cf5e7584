package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/tasktalk/internal/tools"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

var testDecls = []tools.Declaration{
	{
		Name:        "create_todo",
		Description: "Create a todo",
		Params: []tools.Param{
			{Name: "title", Type: "string", Description: "Title", Required: true},
		},
	},
	{Name: "read_todos", Description: "List todos"},
}

// recorder is an httptest handler that captures request bodies and replies
// with a canned JSON document.
type recorder struct {
	mu     sync.Mutex
	bodies []string
	reply  string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.bodies = append(r.bodies, string(body))
	r.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, r.reply)
}

func (r *recorder) last() gjson.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gjson.Parse(r.bodies[len(r.bodies)-1])
}

func TestTokenTracker(t *testing.T) {
	tr := NewTokenTracker()
	tr.Add(10, 5)
	tr.Add(3, 2)

	in, out := tr.Total()
	if in != 13 || out != 7 {
		t.Errorf("Total() = (%d, %d), want (13, 7)", in, out)
	}
	if tr.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", tr.Calls())
	}

	tr.Reset()
	if in, out := tr.Total(); in != 0 || out != 0 || tr.Calls() != 0 {
		t.Error("Reset() did not clear tracker")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "cohere"}); err == nil {
		t.Error("New() with unknown provider should fail")
	}
}

func TestNewAnthropic_RequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewAnthropic(Config{}); err == nil {
		t.Error("NewAnthropic() without key should fail")
	}
}

func TestNewOpenAI_GroqFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	if _, err := NewOpenAI(Config{}); err == nil {
		t.Fatal("NewOpenAI() without key should fail")
	}

	t.Setenv("GROQ_API_KEY", "gsk_test")
	c, err := NewOpenAI(Config{})
	if err != nil {
		t.Fatalf("NewOpenAI() with GROQ_API_KEY error = %v", err)
	}
	if c.model != DefaultOpenAIModel {
		t.Errorf("model = %q, want %q", c.model, DefaultOpenAIModel)
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	got := translateModelForBedrock(anthropic.ModelClaudeSonnet4_20250514)
	if got != "us.anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("translateModelForBedrock() = %q", got)
	}
	if got := translateModelForBedrock("custom-model"); got != "custom-model" {
		t.Errorf("unknown model translated to %q", got)
	}
}

func TestAnthropic_ReasonParsesToolUse(t *testing.T) {
	rec := &recorder{reply: `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
		"content": [
			{"type": "text", "text": "Adding it."},
			{"type": "tool_use", "id": "toolu_1", "name": "create_todo", "input": {"title": "buy milk"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 12, "output_tokens": 7}
	}`}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c, err := NewAnthropic(Config{APIKey: "test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewAnthropic() error = %v", err)
	}

	msg, err := c.Reason(context.Background(), "be helpful",
		[]models.Message{models.NewUserMessage("Add a task to buy milk")}, testDecls)
	if err != nil {
		t.Fatalf("Reason() error = %v", err)
	}

	if msg.Role != models.RoleAssistant || msg.Content != "Adding it." {
		t.Errorf("msg = %+v", msg)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "toolu_1" || tc.Name != "create_todo" || gjson.GetBytes(tc.Arguments, "title").String() != "buy milk" {
		t.Errorf("tool call = %+v", tc)
	}

	req := rec.last()
	if req.Get("system.0.text").String() != "be helpful" {
		t.Errorf("system = %s", req.Get("system").Raw)
	}
	if req.Get("tools.#").Int() != 2 {
		t.Errorf("tools sent = %d, want 2", req.Get("tools.#").Int())
	}
	if req.Get("tools.0.input_schema.required.0").String() != "title" {
		t.Errorf("input_schema = %s", req.Get("tools.0.input_schema").Raw)
	}
	if in, out := c.Tracker().Total(); in != 12 || out != 7 {
		t.Errorf("tracked = (%d, %d), want (12, 7)", in, out)
	}
}

func TestAnthropic_SynthesizeSendsNoTools(t *testing.T) {
	rec := &recorder{reply: `{
		"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
		"content": [{"type": "text", "text": "You keep postponing the dentist."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c, _ := NewAnthropic(Config{APIKey: "test", BaseURL: srv.URL})
	msg, err := c.Synthesize(context.Background(), "sys", "Search Query: postponing")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if msg.Content != "You keep postponing the dentist." || msg.HasToolCalls() {
		t.Errorf("msg = %+v", msg)
	}
	if rec.last().Get("tools").Exists() {
		t.Error("Synthesize() sent tool definitions")
	}
}

func TestAnthropic_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer srv.Close()

	c, _ := NewAnthropic(Config{APIKey: "test", BaseURL: srv.URL})
	if _, err := c.Reason(context.Background(), "", []models.Message{models.NewUserMessage("hi")}, nil); err == nil {
		t.Error("Reason() should fail on 400")
	}
	if c.Tracker().Calls() != 0 {
		t.Error("failed call was tracked")
	}
}

func TestAnthropicMessages_GroupsToolResults(t *testing.T) {
	call1 := models.ToolCall{ID: "t1", Name: "read_todos", Arguments: json.RawMessage(`{}`)}
	call2 := models.ToolCall{ID: "t2", Name: "search_todos_semantic", Arguments: json.RawMessage(`{"query":"x"}`)}
	assistant := models.Message{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{call1, call2}}

	msgs := anthropicMessages([]models.Message{
		models.NewAssistantMessage("stale greeting"),
		models.NewUserMessage("show and search"),
		assistant,
		models.NewToolMessage(call1, models.ToolResult{Success: true, Action: models.ActionRead}),
		models.NewToolMessage(call2, models.ToolResult{Success: false, Action: models.ActionSemanticSearch}),
	})

	if len(msgs) != 3 {
		t.Fatalf("converted %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != anthropic.MessageParamRoleUser || msgs[1].Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if len(msgs[1].Content) != 2 {
		t.Errorf("assistant blocks = %d, want 2 tool_use", len(msgs[1].Content))
	}
	results := msgs[2]
	if results.Role != anthropic.MessageParamRoleUser || len(results.Content) != 2 {
		t.Fatalf("tool results turn = %s with %d blocks", results.Role, len(results.Content))
	}
	if results.Content[1].OfToolResult == nil || results.Content[1].OfToolResult.ToolUseID != "t2" {
		t.Errorf("second tool_result block = %+v", results.Content[1])
	}
}

func TestOpenAI_ReasonParsesToolCalls(t *testing.T) {
	rec := &recorder{reply: `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "llama-3.3-70b-versatile",
		"choices": [{
			"index": 0, "finish_reason": "tool_calls",
			"message": {"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "read_todos", "arguments": "{}"}}
			]}
		}],
		"usage": {"prompt_tokens": 20, "completion_tokens": 4, "total_tokens": 24}
	}`}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c, err := NewOpenAI(Config{APIKey: "test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	call := models.ToolCall{ID: "call_0", Name: "create_todo", Arguments: json.RawMessage(`{"title":"a"}`)}
	history := []models.Message{
		models.NewUserMessage("add a"),
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{call}},
		models.NewToolMessage(call, models.ToolResult{Success: true, Action: models.ActionCreated}),
		models.NewUserMessage("now show all"),
	}
	msg, err := c.Reason(context.Background(), "sys", history, testDecls)
	if err != nil {
		t.Fatalf("Reason() error = %v", err)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Name != "read_todos" || msg.ToolCalls[0].ID != "call_1" {
		t.Errorf("ToolCalls = %+v", msg.ToolCalls)
	}

	req := rec.last()
	roles := []string{}
	for _, m := range req.Get("messages").Array() {
		roles = append(roles, m.Get("role").String())
	}
	if got := strings.Join(roles, ","); got != "system,user,assistant,tool,user" {
		t.Errorf("roles = %s", got)
	}
	if req.Get("messages.2.tool_calls.0.function.name").String() != "create_todo" {
		t.Errorf("assistant tool call = %s", req.Get("messages.2").Raw)
	}
	if req.Get("messages.3.tool_call_id").String() != "call_0" {
		t.Errorf("tool message = %s", req.Get("messages.3").Raw)
	}
	if req.Get("tools.1.function.name").String() != "read_todos" {
		t.Errorf("tools = %s", req.Get("tools").Raw)
	}
	if c.Tracker().Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", c.Tracker().Calls())
	}
}
