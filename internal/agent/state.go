// Package agent runs the per-turn orchestration graph.
//
// A turn moves through three working states. Reasoning asks the model what to
// do, ToolExecution runs the tools it requested, and RetrievalSynthesis
// composes an answer from semantic search results. Routing is a pure function
// of the current state and the event the state produced, so the number of
// model invocations per turn is fixed by the path taken:
//
//	direct answer:  Reasoning -> Done                                  (1 call)
//	mutation:       Reasoning -> ToolExecution -> Reasoning -> Done    (2 calls)
//	retrieval:      Reasoning -> ToolExecution -> RetrievalSynthesis -> Done (2 calls)
package agent

import "fmt"

// State is a node of the orchestration graph.
type State string

const (
	StateReasoning          State = "reasoning"
	StateToolExecution      State = "tool_execution"
	StateRetrievalSynthesis State = "retrieval_synthesis"
	StateDone               State = "done"
)

// Terminal reports whether no further work happens in s.
func (s State) Terminal() bool {
	return s == StateDone
}

// Event is what a state produced when it finished.
type Event string

const (
	// EventAnswered: the model replied without requesting tools.
	EventAnswered Event = "answered"
	// EventToolsRequested: the model requested one or more tools.
	EventToolsRequested Event = "tools_requested"
	// EventToolsFinished: tools ran and none was a successful retrieval.
	EventToolsFinished Event = "tools_finished"
	// EventRetrievalReady: a successful semantic search result is available.
	EventRetrievalReady Event = "retrieval_ready"
	// EventSynthesized: the synthesis pass finished or had nothing to do.
	EventSynthesized Event = "synthesized"
)

// Transition returns the state that follows from after ev.
// Pairs outside the graph are rejected.
func Transition(from State, ev Event) (State, error) {
	switch from {
	case StateReasoning:
		switch ev {
		case EventToolsRequested:
			return StateToolExecution, nil
		case EventAnswered:
			return StateDone, nil
		}
	case StateToolExecution:
		switch ev {
		case EventRetrievalReady:
			return StateRetrievalSynthesis, nil
		case EventToolsFinished:
			return StateReasoning, nil
		}
	case StateRetrievalSynthesis:
		if ev == EventSynthesized {
			return StateDone, nil
		}
	}
	return "", fmt.Errorf("invalid transition: %s on %s", from, ev)
}
