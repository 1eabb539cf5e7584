package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ShayCichocki/tasktalk/internal/agent"
	"github.com/ShayCichocki/tasktalk/internal/index"
	"github.com/ShayCichocki/tasktalk/internal/llm/llmtest"
	"github.com/ShayCichocki/tasktalk/internal/session"
	"github.com/ShayCichocki/tasktalk/internal/store"
	"github.com/ShayCichocki/tasktalk/internal/tools"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

const testOrigin = "http://localhost:3000"

func newTestServer(t *testing.T, model agent.Model) (*Server, *store.SQLiteStore) {
	t.Helper()
	s, err := store.Open(store.DriverModernc, filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if model == nil {
		model = llmtest.New(nil)
	}
	reg := tools.NewRegistry(s, index.NewVectorIndex(index.NewLocalEmbedder()), 0)
	graph := agent.NewGraph(model, reg, agent.Options{})
	sessions := session.NewManager(graph, 0)

	return New(s, sessions, Options{AllowedOrigins: []string{testOrigin}, Version: "test"}), s
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestInfoAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rec.Code)
	}
	info := decode[infoResponse](t, rec)
	if info.Status != "running" || info.WebSocket != "/ws/chat" || info.Version != "test" {
		t.Errorf("info = %+v", info)
	}

	rec = do(t, h, http.MethodGet, "/health", "")
	health := decode[healthResponse](t, rec)
	if rec.Code != http.StatusOK || health.Status != "healthy" {
		t.Errorf("health = %d %+v", rec.Code, health)
	}
}

func TestTodosCRUD(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/todos/", `{"title":"  Buy milk  ","description":"2 liters"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d body=%s", rec.Code, rec.Body.String())
	}
	created := decode[models.Task](t, rec)
	if created.ID != 1 || created.Title != "Buy milk" || created.DescriptionText() != "2 liters" {
		t.Fatalf("created = %+v", created)
	}

	rec = do(t, h, http.MethodGet, "/api/todos", "")
	list := decode[[]models.Task](t, rec)
	if len(list) != 1 || list[0].Title != "Buy milk" {
		t.Fatalf("list = %+v", list)
	}

	rec = do(t, h, http.MethodPut, "/api/todos/1", `{"title":"Buy oat milk"}`)
	updated := decode[models.Task](t, rec)
	if rec.Code != http.StatusOK || updated.Title != "Buy oat milk" || updated.DescriptionText() != "2 liters" {
		t.Fatalf("PUT = %d %+v", rec.Code, updated)
	}

	rec = do(t, h, http.MethodGet, "/api/todos/1", "")
	if got := decode[models.Task](t, rec); got.Title != "Buy oat milk" {
		t.Errorf("GET title = %q", got.Title)
	}

	rec = do(t, h, http.MethodDelete, "/api/todos/1", "")
	del := decode[deleteTodoResponse](t, rec)
	if rec.Code != http.StatusOK || del.ID != 1 || del.Message != "Todo deleted successfully" {
		t.Fatalf("DELETE = %d %+v", rec.Code, del)
	}

	rec = do(t, h, http.MethodGet, "/api/todos/1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d", rec.Code)
	}
	if d := decode[detailResponse](t, rec); d.Detail != "Todo not found" {
		t.Errorf("detail = %q", d.Detail)
	}
}

func TestTodosErrors(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"missing title", http.MethodPost, "/api/todos/", `{"description":"x"}`, http.StatusUnprocessableEntity},
		{"blank title", http.MethodPost, "/api/todos/", `{"title":"   "}`, http.StatusUnprocessableEntity},
		{"long title", http.MethodPost, "/api/todos/", `{"title":"` + strings.Repeat("a", 256) + `"}`, http.StatusUnprocessableEntity},
		{"bad json", http.MethodPost, "/api/todos/", `{`, http.StatusUnprocessableEntity},
		{"non-integer id", http.MethodGet, "/api/todos/abc", "", http.StatusUnprocessableEntity},
		{"update absent", http.MethodPut, "/api/todos/99", `{"title":"x"}`, http.StatusNotFound},
		{"delete absent", http.MethodDelete, "/api/todos/99", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/todos/1", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/todos/", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin got Allow-Origin %q", got)
	}
}

func dialChat(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return f
}

// readUntil collects frames up to and including the first of the given type.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) []Frame {
	t.Helper()
	var frames []Frame
	for {
		f := readFrame(t, conn)
		frames = append(frames, f)
		if f.Type == typ {
			return frames
		}
	}
}

func TestChat_MutationTurn(t *testing.T) {
	model := llmtest.New([]llmtest.Reply{
		llmtest.Call(tools.NameCreate, `{"title":"buy milk"}`),
		llmtest.Text("I've added 'buy milk' to your list."),
	})
	srv, _ := newTestServer(t, model)
	conn := dialChat(t, srv)

	hello := readFrame(t, conn)
	if hello.Type != FrameTodosUpdate || hello.Todos == nil || len(*hello.Todos) != 0 {
		t.Fatalf("first frame = %+v", hello)
	}

	if err := conn.WriteJSON(clientMessage{Message: "add buy milk"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	frames := readUntil(t, conn, FrameComplete)

	if frames[0].Type != FrameThinking {
		t.Errorf("frames[0].Type = %q, want thinking", frames[0].Type)
	}
	var steps []string
	var tokens strings.Builder
	for _, f := range frames {
		switch f.Type {
		case FrameStep:
			steps = append(steps, f.State)
		case FrameToken:
			tokens.WriteString(f.Content)
		}
	}
	if got := strings.Join(steps, ","); got != "tool_execution,reasoning,done" {
		t.Errorf("steps = %s", got)
	}

	complete := frames[len(frames)-1]
	if tokens.String() != complete.Content {
		t.Errorf("tokens %q != complete %q", tokens.String(), complete.Content)
	}
	if complete.Todos == nil || len(*complete.Todos) != 1 || (*complete.Todos)[0].Title != "buy milk" {
		t.Errorf("complete.Todos = %+v", complete.Todos)
	}
	if model.TotalCalls() != 2 {
		t.Errorf("model calls = %d, want 2", model.TotalCalls())
	}
}

func TestChat_DirectAnswerHasNoTodos(t *testing.T) {
	model := llmtest.New([]llmtest.Reply{llmtest.Text("Hi there")})
	srv, _ := newTestServer(t, model)
	conn := dialChat(t, srv)
	readFrame(t, conn)

	if err := conn.WriteJSON(clientMessage{Message: "hello"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	frames := readUntil(t, conn, FrameComplete)
	complete := frames[len(frames)-1]
	if complete.Content != "Hi there" || complete.Todos != nil {
		t.Errorf("complete = %+v", complete)
	}
}

func TestChat_Errors(t *testing.T) {
	model := llmtest.New([]llmtest.Reply{llmtest.Fail(context.DeadlineExceeded)})
	srv, _ := newTestServer(t, model)
	conn := dialChat(t, srv)
	readFrame(t, conn)

	if err := conn.WriteJSON(clientMessage{Message: "  "}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if f := readFrame(t, conn); f.Type != FrameError || f.Content != "Please enter a message" {
		t.Errorf("blank message frame = %+v", f)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if f := readFrame(t, conn); f.Type != FrameError {
		t.Errorf("bad frame = %+v", f)
	}

	if err := conn.WriteJSON(clientMessage{Message: "hello"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	frames := readUntil(t, conn, FrameError)
	last := frames[len(frames)-1]
	if !strings.HasPrefix(last.Content, "Agent error: ") {
		t.Errorf("error frame = %+v", last)
	}
}

func TestChat_SessionDestroyedOnDisconnect(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	conn := dialChat(t, srv)
	readFrame(t, conn)

	if n := srv.sessions.Len(); n != 1 {
		t.Fatalf("sessions = %d, want 1", n)
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for srv.sessions.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not destroyed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
