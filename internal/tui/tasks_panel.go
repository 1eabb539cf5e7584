package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// TasksPanel shows the current task list, newest first.
type TasksPanel struct {
	tasks  []models.Task
	width  int
	height int
	err    string

	titleStyle  lipgloss.Style
	borderStyle lipgloss.Style
	idStyle     lipgloss.Style
	normalStyle lipgloss.Style
	descStyle   lipgloss.Style
	emptyStyle  lipgloss.Style
	errorStyle  lipgloss.Style
}

// NewTasksPanel creates a new TasksPanel.
func NewTasksPanel() *TasksPanel {
	return &TasksPanel{
		width:  30,
		height: 10,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),

		idStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")),

		normalStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		descStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true),

		emptyStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
	}
}

// SetTasks replaces the displayed list.
func (p *TasksPanel) SetTasks(tasks []models.Task) {
	p.tasks = tasks
	p.err = ""
}

// SetError shows a load failure instead of the list.
func (p *TasksPanel) SetError(err error) {
	p.err = err.Error()
}

// Len returns the number of displayed tasks.
func (p *TasksPanel) Len() int {
	return len(p.tasks)
}

// SetSize updates the panel dimensions.
func (p *TasksPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// View renders the panel.
func (p *TasksPanel) View() string {
	inner := p.width - 4
	if inner < 10 {
		inner = 10
	}
	// Rows available inside the border after the title.
	rows := p.height - 3
	if rows < 1 {
		rows = 1
	}

	var b strings.Builder
	b.WriteString(p.titleStyle.Render(fmt.Sprintf("Todos (%d)", len(p.tasks))))
	b.WriteString("\n")

	switch {
	case p.err != "":
		b.WriteString(p.errorStyle.Render(truncate(p.err, inner)))
	case len(p.tasks) == 0:
		b.WriteString(p.emptyStyle.Render("No todos yet"))
	default:
		used := 0
		for i, task := range p.tasks {
			if used >= rows {
				b.WriteString(p.emptyStyle.Render(fmt.Sprintf("... %d more", len(p.tasks)-i)))
				break
			}
			id := fmt.Sprintf("[%d] ", task.ID)
			b.WriteString(p.idStyle.Render(id))
			b.WriteString(p.normalStyle.Render(truncate(task.Title, inner-len(id))))
			b.WriteString("\n")
			used++

			if d := task.DescriptionText(); d != "" && used < rows {
				b.WriteString(p.descStyle.Render("    " + truncate(d, inner-4)))
				b.WriteString("\n")
				used++
			}
		}
	}

	return p.borderStyle.
		Width(p.width - 2).
		Height(p.height - 2).
		Render(strings.TrimRight(b.String(), "\n"))
}

// truncate shortens s to at most max runes, marking the cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 {
		return ""
	}
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
