package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/tasktalk/internal/agent"
)

// Footer renders the status line and keyboard hints.
type Footer struct {
	width   int
	state   agent.State
	tools   []string
	message string
	calls   int

	stateStyle   lipgloss.Style
	messageStyle lipgloss.Style
	hintStyle    lipgloss.Style
}

// NewFooter creates a new Footer.
func NewFooter() *Footer {
	return &Footer{
		width: 80,

		stateStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),

		messageStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
}

// SetStep shows the state a running turn has entered.
func (f *Footer) SetStep(step agent.Step) {
	f.state = step.To
	f.tools = step.Tools
	f.message = ""
}

// SetIdle clears the running state and shows message.
func (f *Footer) SetIdle(message string) {
	f.state = ""
	f.tools = nil
	f.message = message
}

// AddCalls accumulates the model calls of completed turns.
func (f *Footer) AddCalls(n int) {
	f.calls += n
}

// Calls returns the accumulated model call count.
func (f *Footer) Calls() int {
	return f.calls
}

// Status returns the plain status text without hints.
func (f *Footer) Status(spinner string) string {
	if f.state == "" || f.state.Terminal() {
		return f.message
	}
	s := spinner + " " + strings.ReplaceAll(string(f.state), "_", " ")
	if len(f.tools) > 0 {
		s += ": " + strings.Join(f.tools, ", ")
	}
	return s
}

// View renders the footer.
func (f *Footer) View(spinner string) string {
	status := f.Status(spinner)
	if f.state != "" && !f.state.Terminal() {
		status = f.stateStyle.Render(status)
	} else {
		status = f.messageStyle.Render(status)
	}

	hints := f.hintStyle.Render(fmt.Sprintf("calls %d | enter send | ctrl+r new chat | ctrl+l clear | ctrl+c quit", f.calls))

	gap := f.width - lipgloss.Width(status) - lipgloss.Width(hints)
	if gap < 1 {
		gap = 1
	}
	return status + strings.Repeat(" ", gap) + hints
}
