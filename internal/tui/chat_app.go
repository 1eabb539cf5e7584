package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/tasktalk/internal/agent"
	"github.com/ShayCichocki/tasktalk/internal/session"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// Conversation is the session the app talks to.
type Conversation interface {
	HandleTurnStream(ctx context.Context, text string, observe agent.Observer) (session.Result, error)
	Reset()
}

// TaskLister loads the task panel contents.
type TaskLister interface {
	ListAll(ctx context.Context) ([]models.Task, error)
}

// StepMsg reports a graph transition of the running turn.
type StepMsg struct {
	Step agent.Step
}

// TurnDoneMsg reports the end of a turn.
type TurnDoneMsg struct {
	Result session.Result
	Err    error
}

// TodosLoadedMsg carries a refreshed task list.
type TodosLoadedMsg struct {
	Tasks []models.Task
	Err   error
}

const (
	inputHeight   = 3
	footerHeight  = 1
	maxPanelWidth = 40
)

// ChatApp is the bubbletea model for the chat screen.
type ChatApp struct {
	conv  Conversation
	tasks TaskLister

	transcript *Transcript
	viewport   viewport.Model
	input      *InputField
	panel      *TasksPanel
	footer     *Footer
	spinner    spinner.Model

	width    int
	height   int
	ready    bool
	quitting bool

	busy   bool
	cancel context.CancelFunc
	events chan tea.Msg
}

// NewChatApp creates the chat model over conv. tasks may be nil to hide
// the task panel.
func NewChatApp(conv Conversation, tasks TaskLister) *ChatApp {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	a := &ChatApp{
		conv:       conv,
		tasks:      tasks,
		transcript: NewTranscript(0),
		viewport:   viewport.New(80, 20),
		input:      NewInputField(),
		panel:      NewTasksPanel(),
		footer:     NewFooter(),
		spinner:    sp,
	}
	a.transcript.Add(EntryInfo, "Ask me to add, update, delete or find your todos.")
	a.refreshViewport()
	return a
}

// NewChatProgram creates a full-screen program for app.
func NewChatProgram(app *ChatApp) *tea.Program {
	return tea.NewProgram(app, tea.WithAltScreen())
}

// Init implements tea.Model.
func (a *ChatApp) Init() tea.Cmd {
	return tea.Batch(a.input.Focus(), a.loadTodos())
}

// Busy reports whether a turn is running.
func (a *ChatApp) Busy() bool {
	return a.busy
}

// Transcript returns the on-screen conversation.
func (a *ChatApp) Transcript() *Transcript {
	return a.transcript
}

// Update implements tea.Model.
func (a *ChatApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.updateSizes()
		return a, nil

	case MessageSubmittedMsg:
		return a, a.startTurn(msg.Text)

	case StepMsg:
		a.footer.SetStep(msg.Step)
		return a, a.waitForEvent()

	case TurnDoneMsg:
		return a, a.finishTurn(msg)

	case TodosLoadedMsg:
		if msg.Err != nil {
			a.panel.SetError(msg.Err)
		} else {
			a.panel.SetTasks(msg.Tasks)
		}
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *ChatApp) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if a.busy {
			a.cancel()
			return a, nil
		}
		a.quitting = true
		return a, tea.Quit

	case "esc":
		if a.busy {
			a.cancel()
		}
		return a, nil

	case "ctrl+l":
		a.transcript.Clear()
		a.refreshViewport()
		return a, nil

	case "ctrl+r":
		if a.busy {
			return a, nil
		}
		a.conv.Reset()
		a.transcript.Clear()
		a.transcript.Add(EntryInfo, "Started a new conversation.")
		a.footer.SetIdle("")
		a.refreshViewport()
		return a, nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// startTurn runs one turn in the background. Transitions and the final
// result come back through a.events.
func (a *ChatApp) startTurn(text string) tea.Cmd {
	if a.busy {
		a.footer.SetIdle("Still working on the previous request")
		return nil
	}

	a.transcript.Add(EntryUser, text)
	a.refreshViewport()

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan tea.Msg, 16)
	a.busy = true
	a.cancel = cancel
	a.events = events
	a.footer.SetStep(agent.Step{To: agent.StateReasoning})

	go func() {
		defer close(events)
		res, err := a.conv.HandleTurnStream(ctx, text, func(step agent.Step) {
			events <- StepMsg{Step: step}
		})
		events <- TurnDoneMsg{Result: res, Err: err}
	}()

	return tea.Batch(a.waitForEvent(), a.spinner.Tick)
}

func (a *ChatApp) waitForEvent() tea.Cmd {
	events := a.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (a *ChatApp) finishTurn(msg TurnDoneMsg) tea.Cmd {
	a.busy = false
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.events = nil

	if msg.Err != nil {
		if errors.Is(msg.Err, context.Canceled) || errors.Is(msg.Err, agent.ErrAborted) {
			a.transcript.Add(EntryInfo, "Request cancelled.")
			a.footer.SetIdle("")
		} else {
			a.transcript.Add(EntryError, "Agent error: "+msg.Err.Error())
			a.footer.SetIdle("Last request failed")
		}
		a.refreshViewport()
		return nil
	}

	a.footer.AddCalls(msg.Result.ModelCalls)
	a.footer.SetIdle(fmt.Sprintf("Done in %d model call(s)", msg.Result.ModelCalls))
	a.transcript.Add(EntryAssistant, msg.Result.Answer)
	a.refreshViewport()

	if msg.Result.ToolsUsed {
		return a.loadTodos()
	}
	return nil
}

func (a *ChatApp) loadTodos() tea.Cmd {
	if a.tasks == nil {
		return nil
	}
	tasks := a.tasks
	return func() tea.Msg {
		list, err := tasks.ListAll(context.Background())
		return TodosLoadedMsg{Tasks: list, Err: err}
	}
}

func (a *ChatApp) panelWidth() int {
	if a.tasks == nil {
		return 0
	}
	w := a.width / 3
	if w > maxPanelWidth {
		w = maxPanelWidth
	}
	return w
}

func (a *ChatApp) updateSizes() {
	bodyHeight := a.height - inputHeight - footerHeight
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	pw := a.panelWidth()

	a.viewport.Width = a.width - pw
	a.viewport.Height = bodyHeight
	a.panel.SetSize(pw, bodyHeight)
	a.input.SetWidth(a.width)
	a.footer.SetWidth(a.width)
	a.refreshViewport()
}

func (a *ChatApp) refreshViewport() {
	a.viewport.SetContent(a.transcript.Render(a.viewport.Width - 2))
	a.viewport.GotoBottom()
}

// View implements tea.Model.
func (a *ChatApp) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}
	if !a.ready {
		return "Loading..."
	}

	body := a.viewport.View()
	if a.tasks != nil {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, a.panel.View())
	}

	spin := ""
	if a.busy {
		spin = a.spinner.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, a.input.View(), a.footer.View(spin))
}
