// Package session holds per-conversation state and feeds user turns through
// the orchestration graph.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/tasktalk/internal/agent"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// DefaultHistoryLimit is the number of messages a conversation retains.
const DefaultHistoryLimit = 20

// ErrEmptyMessage is returned for blank user input.
var ErrEmptyMessage = errors.New("empty message")

// Runner drives one turn through the graph.
type Runner interface {
	Run(ctx context.Context, history []models.Message, observe agent.Observer) (*agent.Outcome, error)
}

// Result is what a completed turn reports to the transport.
type Result struct {
	Answer     string
	ToolsUsed  bool
	ModelCalls int
}

// Session is one conversation. Turns on a session run one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	runner Runner
	limit  int

	mu      sync.Mutex
	history []models.Message
}

func newSession(id string, runner Runner, limit int) *Session {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		runner:    runner,
		limit:     limit,
	}
}

// HandleTurn runs one user turn to completion.
func (s *Session) HandleTurn(ctx context.Context, text string) (Result, error) {
	return s.HandleTurnStream(ctx, text, nil)
}

// HandleTurnStream is HandleTurn with transition events delivered to observe.
// The answer is the same as HandleTurn would produce.
//
// On failure history is left as it was before the turn, so the user can
// retry without duplicating the message.
func (s *Session) HandleTurnStream(ctx context.Context, text string, observe agent.Observer) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := capHistory(append(s.snapshot(), models.NewUserMessage(text)), s.limit)

	outcome, err := s.runner.Run(ctx, working, observe)
	if err != nil {
		log.Printf("[session] %s: turn failed: %v", s.ID, err)
		return Result{}, fmt.Errorf("turn: %w", err)
	}

	s.history = capHistory(append(working, models.NewAssistantMessage(outcome.Answer)), s.limit)

	return Result{
		Answer:     outcome.Answer,
		ToolsUsed:  outcome.ToolsUsed,
		ModelCalls: outcome.ModelCalls,
	}, nil
}

// History returns a copy of the retained messages, oldest first.
func (s *Session) History() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Reset clears the conversation.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

func (s *Session) snapshot() []models.Message {
	return append([]models.Message(nil), s.history...)
}

// capHistory keeps the limit most recent messages in order.
func capHistory(msgs []models.Message, limit int) []models.Message {
	if len(msgs) <= limit {
		return msgs
	}
	return append([]models.Message(nil), msgs[len(msgs)-limit:]...)
}

// Manager owns the sessions of all live conversations.
type Manager struct {
	runner Runner
	limit  int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. historyLimit <= 0 selects DefaultHistoryLimit.
func NewManager(runner Runner, historyLimit int) *Manager {
	return &Manager{
		runner:   runner,
		limit:    historyLimit,
		sessions: make(map[string]*Session),
	}
}

// Create starts a conversation with a fresh id.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.runner, m.limit)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	log.Printf("[session] created %s", s.ID)
	return s
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, creating it if needed.
func (m *Manager) GetOrCreate(id string) *Session {
	if s, ok := m.Get(id); ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := newSession(id, m.runner, m.limit)
	m.sessions[id] = s
	return s
}

// Destroy discards the conversation and its history.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		log.Printf("[session] destroyed %s", id)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// HandleTurn runs a turn on the conversation identified by conversationID.
func (m *Manager) HandleTurn(ctx context.Context, conversationID, text string) (Result, error) {
	return m.GetOrCreate(conversationID).HandleTurn(ctx, text)
}
