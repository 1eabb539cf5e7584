package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ShayCichocki/tasktalk/internal/agent"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// Frame types sent to chat clients.
const (
	FrameThinking    = "thinking"
	FrameStep        = "step"
	FrameToken       = "token"
	FrameComplete    = "complete"
	FrameError       = "error"
	FrameTodosUpdate = "todos_update"
)

const writeWait = 10 * time.Second

// Frame is one server-to-client chat message.
type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	// Todos is present on complete frames after a tool ran and on todos_update.
	Todos *[]models.Task `json:"todos,omitempty"`
	State string         `json:"state,omitempty"`
	Tools []string       `json:"tools,omitempty"`
}

type clientMessage struct {
	Message string `json:"message"`
}

type chatConn struct {
	conn *websocket.Conn
}

func (c *chatConn) send(f Frame) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(f)
}

// handleChat runs one conversation per connection. Turns on the connection
// are processed in order; closing the socket cancels the running turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[server] websocket upgrade: %v", err)
		return
	}
	defer ws.Close()

	sess := s.sessions.Create()
	defer s.sessions.Destroy(sess.ID)
	log.Printf("[server] chat %s connected", sess.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &chatConn{conn: ws}

	todos, err := s.store.ListAll(ctx)
	if err != nil {
		log.Printf("[server] chat %s: list todos: %v", sess.ID, err)
		todos = []models.Task{}
	}
	if err := c.send(Frame{Type: FrameTodosUpdate, Content: "Connected to Todo Agent", Todos: &todos}); err != nil {
		return
	}

	incoming := make(chan []byte)
	go func() {
		defer close(incoming)
		defer cancel()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("[server] chat %s: read: %v", sess.ID, err)
				}
				return
			}
			select {
			case incoming <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for data := range incoming {
		if err := s.handleChatMessage(ctx, c, sess.ID, data); err != nil {
			break
		}
	}
	log.Printf("[server] chat %s disconnected", sess.ID)
}

// handleChatMessage processes one client frame. A returned error means the
// connection is unusable.
func (s *Server) handleChatMessage(ctx context.Context, c *chatConn, sessionID string, data []byte) error {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return c.send(Frame{Type: FrameError, Content: "Invalid message format"})
	}
	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return c.send(Frame{Type: FrameError, Content: "Please enter a message"})
	}

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return errors.New("session closed")
	}

	if err := c.send(Frame{Type: FrameThinking, Content: "Processing your request..."}); err != nil {
		return err
	}

	var sendErr error
	observe := func(step agent.Step) {
		if sendErr != nil {
			return
		}
		sendErr = c.send(Frame{
			Type:    FrameStep,
			Content: fmt.Sprintf("%s -> %s", step.From, step.To),
			State:   string(step.To),
			Tools:   step.Tools,
		})
	}

	result, err := sess.HandleTurnStream(ctx, text, observe)
	if sendErr != nil {
		return sendErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.send(Frame{Type: FrameError, Content: "Agent error: " + err.Error()})
	}

	if err := s.streamAnswer(ctx, c, result.Answer); err != nil {
		return err
	}

	complete := Frame{Type: FrameComplete, Content: result.Answer}
	if result.ToolsUsed {
		todos, err := s.store.ListAll(ctx)
		if err != nil {
			log.Printf("[server] chat %s: list todos: %v", sessionID, err)
		} else {
			complete.Todos = &todos
		}
	}
	return c.send(complete)
}

// streamAnswer sends the answer word by word.
func (s *Server) streamAnswer(ctx context.Context, c *chatConn, answer string) error {
	words := strings.Fields(answer)
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		if err := c.send(Frame{Type: FrameToken, Content: word}); err != nil {
			return err
		}
		if s.opts.TokenDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.opts.TokenDelay):
			}
		}
	}
	return nil
}
