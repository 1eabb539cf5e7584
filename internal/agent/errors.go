package agent

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/tasktalk/internal/tools"
)

// Turn-level failures. Tool failures are not errors; they reach the model as
// tool results.
var (
	// ErrUpstreamModel wraps any failure of a model invocation.
	ErrUpstreamModel = errors.New("upstream model error")
	// ErrUnknownTool means the model requested a tool that was never declared.
	ErrUnknownTool = tools.ErrUnknownTool
	// ErrStepLimit means the reasoning loop exceeded its step budget.
	ErrStepLimit = errors.New("step limit exceeded")
	// ErrAborted means the turn was cancelled between states.
	ErrAborted = errors.New("turn aborted")
)

// UnknownToolError names the undeclared tool the model asked for.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q requested by model", e.Name)
}

// Is lets errors.Is match ErrUnknownTool.
func (e *UnknownToolError) Is(target error) bool {
	return target == ErrUnknownTool
}

func upstreamError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstreamModel, op, err)
}

func abortedError(state State, cause error) error {
	return fmt.Errorf("%w before %s: %v", ErrAborted, state, cause)
}
