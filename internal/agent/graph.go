package agent

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/tasktalk/internal/tools"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// DefaultMaxSteps bounds the Reasoning state entries in one turn.
const DefaultMaxSteps = 8

// Model is the model invocation port the graph drives.
type Model interface {
	Reason(ctx context.Context, system string, messages []models.Message, decls []tools.Declaration) (models.Message, error)
	Synthesize(ctx context.Context, system, prompt string) (models.Message, error)
}

// ToolRunner executes the declared tool set.
type ToolRunner interface {
	Declarations() []tools.Declaration
	Has(name string) bool
	Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error)
}

// Step describes one transition, reported to observers as it happens.
type Step struct {
	From  State
	Event Event
	To    State
	// Tools lists the tool names involved, for tool events.
	Tools []string
}

// Observer receives transition events. It runs on the turn's goroutine.
type Observer func(Step)

// GraphState is the transient state of one turn.
type GraphState struct {
	Messages []models.Message
	// PendingSynthesis is set while a retrieval answer is still owed.
	PendingSynthesis bool
}

// Outcome is the terminal result of a turn.
type Outcome struct {
	// Messages is the full sequence: input history plus everything produced.
	Messages []models.Message
	// Turn is the suffix of Messages produced during this turn.
	Turn       []models.Message
	Answer     string
	ToolsUsed  bool
	ModelCalls int
	Steps      []Step
}

// Options configures a Graph.
type Options struct {
	SystemPrompt string
	MaxSteps     int
	Logger       *DebugLogger
}

// Graph is the orchestration state machine. It is safe for concurrent turns;
// each Run owns its own GraphState.
type Graph struct {
	model    Model
	tools    ToolRunner
	maxSteps int
	logger   *DebugLogger

	promptMu sync.RWMutex
	system   string
}

// NewGraph creates a graph over model and tools.
func NewGraph(model Model, runner ToolRunner, opts Options) *Graph {
	g := &Graph{
		model:    model,
		tools:    runner,
		maxSteps: opts.MaxSteps,
		logger:   opts.Logger,
		system:   opts.SystemPrompt,
	}
	if g.maxSteps <= 0 {
		g.maxSteps = DefaultMaxSteps
	}
	if g.system == "" {
		g.system = DefaultSystemPrompt
	}
	return g
}

// SetSystemPrompt replaces the system prompt for subsequent turns.
// An empty prompt restores the default.
func (g *Graph) SetSystemPrompt(prompt string) {
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	g.promptMu.Lock()
	defer g.promptMu.Unlock()
	g.system = prompt
}

// SystemPrompt returns the current system prompt.
func (g *Graph) SystemPrompt() string {
	g.promptMu.RLock()
	defer g.promptMu.RUnlock()
	return g.system
}

// Run drives one turn from Reasoning to Done. history must already end with
// the user's message; it is not modified. ctx is checked before every state
// entry, so cancellation never interrupts a tool call midway.
func (g *Graph) Run(ctx context.Context, history []models.Message, observe Observer) (*Outcome, error) {
	st := &GraphState{Messages: append([]models.Message(nil), history...)}
	start := len(history)
	system := g.SystemPrompt()
	out := &Outcome{}

	state := StateReasoning
	reasoningSteps := 0
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			g.logger.Log("[graph] abort before %s: %v", state, err)
			return nil, abortedError(state, err)
		}

		var (
			res stepResult
			err error
		)
		switch state {
		case StateReasoning:
			if reasoningSteps >= g.maxSteps {
				g.logger.Log("[graph] step limit %d reached", g.maxSteps)
				return nil, fmt.Errorf("%w: %d reasoning steps", ErrStepLimit, g.maxSteps)
			}
			reasoningSteps++
			res, err = g.reason(ctx, system, st)
		case StateToolExecution:
			res, err = g.executeTools(ctx, st)
		case StateRetrievalSynthesis:
			res, err = g.synthesize(ctx, system, st)
		}
		if err != nil {
			g.logger.Log("[graph] %s failed: %v", state, err)
			return nil, err
		}
		out.ModelCalls += res.modelCalls
		ev, names := res.event, res.tools

		next, err := Transition(state, ev)
		if err != nil {
			return nil, err
		}
		step := Step{From: state, Event: ev, To: next, Tools: names}
		out.Steps = append(out.Steps, step)
		g.logger.Log("[graph] %s --%s--> %s %v", state, ev, next, names)
		if observe != nil {
			observe(step)
		}
		state = next
	}

	out.Messages = st.Messages
	out.Turn = st.Messages[start:]
	out.Answer = Project(out.Turn)
	out.ToolsUsed = ToolsUsed(out.Turn)
	return out, nil
}

// stepResult is what one state handler reports back to the loop.
type stepResult struct {
	event      Event
	tools      []string
	modelCalls int
}

func (g *Graph) reason(ctx context.Context, system string, st *GraphState) (stepResult, error) {
	msg, err := g.model.Reason(ctx, system, st.Messages, g.tools.Declarations())
	if err != nil {
		return stepResult{}, upstreamError("reason", err)
	}
	msg.Role = models.RoleAssistant

	if !msg.HasToolCalls() {
		st.Messages = append(st.Messages, msg)
		return stepResult{event: EventAnswered, modelCalls: 1}, nil
	}

	names := make([]string, len(msg.ToolCalls))
	for i, c := range msg.ToolCalls {
		if !g.tools.Has(c.Name) {
			return stepResult{}, &UnknownToolError{Name: c.Name}
		}
		names[i] = c.Name
	}
	st.Messages = append(st.Messages, msg)
	return stepResult{event: EventToolsRequested, tools: names, modelCalls: 1}, nil
}

// executeTools runs every call of the latest assistant message concurrently
// and appends the results in request order.
func (g *Graph) executeTools(ctx context.Context, st *GraphState) (stepResult, error) {
	calls := st.Messages[len(st.Messages)-1].ToolCalls
	results := make([]models.ToolResult, len(calls))

	// Tool calls finish even if the turn is cancelled; the abort lands
	// before the next state.
	eg, egCtx := errgroup.WithContext(context.WithoutCancel(ctx))
	for i, call := range calls {
		i, call := i, call
		eg.Go(func() error {
			res, err := g.tools.Execute(egCtx, call)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return stepResult{}, err
	}

	names := make([]string, len(calls))
	retrieval := false
	for i, call := range calls {
		names[i] = call.Name
		st.Messages = append(st.Messages, models.NewToolMessage(call, results[i]))
		if results[i].Retrieval() {
			retrieval = true
		}
	}

	if retrieval {
		st.PendingSynthesis = true
		return stepResult{event: EventRetrievalReady, tools: names}, nil
	}
	return stepResult{event: EventToolsFinished, tools: names}, nil
}

// synthesize answers from the most recent successful search result of the
// latest tool step. Without one it finishes without a model call.
func (g *Graph) synthesize(ctx context.Context, system string, st *GraphState) (stepResult, error) {
	defer func() { st.PendingSynthesis = false }()

	searchIdx := -1
	for i := len(st.Messages) - 1; i >= 0; i-- {
		m := st.Messages[i]
		if m.Role != models.RoleTool {
			break
		}
		if searchIdx < 0 && m.Result != nil && m.Result.Retrieval() {
			searchIdx = i
		}
	}
	if searchIdx < 0 {
		return stepResult{event: EventSynthesized}, nil
	}

	var others []string
	for i := len(st.Messages) - 1; i >= 0 && st.Messages[i].Role == models.RoleTool; i-- {
		if i != searchIdx && st.Messages[i].Result != nil {
			others = append([]string{st.Messages[i].Result.Message}, others...)
		}
	}

	msg, err := g.model.Synthesize(ctx, system, synthesisPrompt(*st.Messages[searchIdx].Result, others))
	if err != nil {
		return stepResult{}, upstreamError("synthesize", err)
	}
	msg.Role = models.RoleAssistant
	msg.ToolCalls = nil
	st.Messages = append(st.Messages, msg)
	return stepResult{event: EventSynthesized, modelCalls: 1}, nil
}
