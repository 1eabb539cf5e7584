// Package tools defines the fixed set of operations the model may request.
//
// Each tool is a registry entry binding a name to its argument schema, its
// handler and the Action tag its results carry. Handlers are total: failures
// come back as ToolResult values with Success=false, never as Go errors.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// Sentinel errors for tool failures.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrUnknownTool is returned by Execute for names outside the registry.
	ErrUnknownTool = errors.New("unknown tool")
)

// Tool names as declared to the model.
const (
	NameCreate = "create_todo"
	NameRead   = "read_todos"
	NameUpdate = "update_todo"
	NameDelete = "delete_todo"
	NameSearch = "search_todos_semantic"
)

// Handler executes a tool with already-parsed arguments.
type Handler func(ctx context.Context, args gjson.Result) models.ToolResult

// Param describes one argument of a tool.
type Param struct {
	Name        string
	Type        string // "string" or "integer"
	Description string
	Required    bool
}

// Declaration is what the model sees for one tool.
type Declaration struct {
	Name        string
	Description string
	Params      []Param
}

// Properties returns the JSON-schema properties object.
func (d Declaration) Properties() map[string]interface{} {
	props := make(map[string]interface{}, len(d.Params))
	for _, p := range d.Params {
		props[p.Name] = map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
	}
	return props
}

// Required returns the names of required arguments.
func (d Declaration) Required() []string {
	required := make([]string, 0)
	for _, p := range d.Params {
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return required
}

// Schema returns the complete JSON schema for the tool's input object.
func (d Declaration) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": d.Properties(),
		"required":   d.Required(),
	}
}

// Spec is a registry entry.
type Spec struct {
	Declaration
	// Action tags every result the handler produces.
	Action  models.Action
	handler Handler
}

// Registry maps tool names to specs. It is immutable after construction.
type Registry struct {
	specs  []Spec
	byName map[string]int
}

func newRegistry(specs ...Spec) *Registry {
	r := &Registry{
		specs:  specs,
		byName: make(map[string]int, len(specs)),
	}
	for i, s := range specs {
		r.byName[s.Name] = i
	}
	return r
}

// Declarations returns the tool declarations in registration order.
func (r *Registry) Declarations() []Declaration {
	out := make([]Declaration, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.Declaration
	}
	return out
}

// Has reports whether name is a declared tool.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Lookup returns the spec for name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Spec{}, false
	}
	return r.specs[i], true
}

// Execute runs the call. The only error is ErrUnknownTool; every other
// outcome, including bad arguments, is reported in the ToolResult.
func (r *Registry) Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
	spec, ok := r.Lookup(call.Name)
	if !ok {
		return models.ToolResult{}, fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
	}

	raw := call.Arguments
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if !gjson.ValidBytes(raw) {
		return failure(spec.Action, models.CodeValidation, "Invalid arguments: not a JSON object"), nil
	}
	args := gjson.ParseBytes(raw)
	if !args.IsObject() {
		return failure(spec.Action, models.CodeValidation, "Invalid arguments: not a JSON object"), nil
	}

	result := spec.handler(ctx, args)
	// The router depends on the tag, so the registry owns it.
	result.Action = spec.Action
	return result, nil
}

func failure(action models.Action, code, message string) models.ToolResult {
	return models.ToolResult{
		Success: false,
		Action:  action,
		Error:   code,
		Message: message,
	}
}

// ErrorFor maps a failed result's code back to its sentinel error.
func ErrorFor(r models.ToolResult) error {
	if r.Success {
		return nil
	}
	switch r.Error {
	case models.CodeValidation:
		return fmt.Errorf("%w: %s", ErrValidation, r.Message)
	case models.CodeNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, r.Message)
	case models.CodeIndexUnavailable:
		return fmt.Errorf("%w: %s", ErrIndexUnavailable, r.Message)
	default:
		return errors.New(r.Message)
	}
}
