// Package llmtest provides a scripted model for exercising the orchestration
// graph without network access.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ShayCichocki/tasktalk/internal/llm"
	"github.com/ShayCichocki/tasktalk/internal/tools"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// ErrExhausted is returned when the script has no reply left.
var ErrExhausted = errors.New("llmtest: script exhausted")

// Reply is one scripted model response.
type Reply struct {
	Text  string
	Calls []models.ToolCall
	Err   error
}

// Text replies with plain text.
func Text(s string) Reply {
	return Reply{Text: s}
}

// Call replies with a single tool call. args is a JSON object.
func Call(name, args string) Reply {
	return Reply{Calls: []models.ToolCall{NewCall(name, args)}}
}

// Calls replies with several tool calls in one step.
func Calls(calls ...models.ToolCall) Reply {
	return Reply{Calls: calls}
}

// Fail replies with an error.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// NewCall builds a tool call with a random id.
func NewCall(name, args string) models.ToolCall {
	return models.ToolCall{
		ID:        "call_" + uuid.NewString()[:8],
		Name:      name,
		Arguments: json.RawMessage(args),
	}
}

// Scripted returns queued replies in order and counts invocations.
// It satisfies llm.Client.
type Scripted struct {
	mu        sync.Mutex
	reasons   []Reply
	syntheses []Reply
	reasonN   int
	synthN    int
	prompts   []string
	systems   []string
	lastSeen  []models.Message
	lastDecls []tools.Declaration
	tracker   *llm.TokenTracker
}

// New creates a Scripted model. Reason consumes reasons in order and
// Synthesize consumes syntheses in order.
func New(reasons []Reply, syntheses ...Reply) *Scripted {
	return &Scripted{
		reasons:   reasons,
		syntheses: syntheses,
		tracker:   llm.NewTokenTracker(),
	}
}

// Reason implements llm.Client.
func (s *Scripted) Reason(ctx context.Context, system string, messages []models.Message, decls []tools.Declaration) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reasonN++
	s.systems = append(s.systems, system)
	s.lastSeen = append([]models.Message(nil), messages...)
	s.lastDecls = decls
	s.tracker.Add(0, 0)

	if len(s.reasons) == 0 {
		return models.Message{}, fmt.Errorf("reason call %d: %w", s.reasonN, ErrExhausted)
	}
	r := s.reasons[0]
	s.reasons = s.reasons[1:]
	return r.message()
}

// Synthesize implements llm.Client.
func (s *Scripted) Synthesize(ctx context.Context, system, prompt string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.synthN++
	s.systems = append(s.systems, system)
	s.prompts = append(s.prompts, prompt)
	s.tracker.Add(0, 0)

	if len(s.syntheses) == 0 {
		return models.Message{}, fmt.Errorf("synthesize call %d: %w", s.synthN, ErrExhausted)
	}
	r := s.syntheses[0]
	s.syntheses = s.syntheses[1:]
	return r.message()
}

// Tracker implements llm.Client.
func (s *Scripted) Tracker() *llm.TokenTracker {
	return s.tracker
}

// ReasonCalls returns how many times Reason was invoked.
func (s *Scripted) ReasonCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reasonN
}

// SynthesizeCalls returns how many times Synthesize was invoked.
func (s *Scripted) SynthesizeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synthN
}

// TotalCalls returns all model invocations.
func (s *Scripted) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reasonN + s.synthN
}

// Prompts returns the synthesis prompts received so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Systems returns the system prompts received so far, in call order.
func (s *Scripted) Systems() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.systems...)
}

// LastMessages returns the conversation passed to the latest Reason call.
func (s *Scripted) LastMessages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.lastSeen...)
}

// LastDeclarations returns the tools passed to the latest Reason call.
func (s *Scripted) LastDeclarations() []tools.Declaration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDecls
}

// Remaining reports unconsumed replies.
func (s *Scripted) Remaining() (reasons, syntheses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reasons), len(s.syntheses)
}

func (r Reply) message() (models.Message, error) {
	if r.Err != nil {
		return models.Message{}, r.Err
	}
	return models.Message{
		Role:      models.RoleAssistant,
		Content:   r.Text,
		ToolCalls: append([]models.ToolCall(nil), r.Calls...),
	}, nil
}
