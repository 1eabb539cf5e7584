package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// EntryKind distinguishes transcript entries.
type EntryKind int

const (
	EntryUser EntryKind = iota
	EntryAssistant
	EntryError
	EntryInfo
)

// Entry is one transcript line group.
type Entry struct {
	Kind EntryKind
	Text string
	At   time.Time
}

// DefaultTranscriptSize bounds the number of kept entries.
const DefaultTranscriptSize = 500

// Transcript stores the conversation as shown on screen. When full, the
// oldest entries are dropped.
type Transcript struct {
	entries []Entry
	limit   int

	userStyle      lipgloss.Style
	assistantStyle lipgloss.Style
	errorStyle     lipgloss.Style
	infoStyle      lipgloss.Style
	timeStyle      lipgloss.Style
}

// NewTranscript creates a transcript holding at most limit entries.
func NewTranscript(limit int) *Transcript {
	if limit <= 0 {
		limit = DefaultTranscriptSize
	}
	return &Transcript{
		limit: limit,

		userStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true),

		assistantStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		infoStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true),

		timeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Add appends an entry stamped with the current time.
func (t *Transcript) Add(kind EntryKind, text string) {
	t.entries = append(t.entries, Entry{Kind: kind, Text: text, At: time.Now()})
	if over := len(t.entries) - t.limit; over > 0 {
		t.entries = append(t.entries[:0:0], t.entries[over:]...)
	}
}

// Entries returns the stored entries, oldest first.
func (t *Transcript) Entries() []Entry {
	return t.entries
}

// Len returns the number of stored entries.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Clear removes all entries.
func (t *Transcript) Clear() {
	t.entries = nil
}

// Render formats the transcript wrapped to width.
func (t *Transcript) Render(width int) string {
	if width < 20 {
		width = 20
	}
	body := lipgloss.NewStyle().Width(width).PaddingLeft(2)

	var b strings.Builder
	for i, e := range t.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		if e.Kind == EntryInfo {
			b.WriteString(t.infoStyle.Width(width).Render(e.Text))
			b.WriteString("\n")
			continue
		}
		b.WriteString(t.label(e.Kind))
		b.WriteString(" ")
		b.WriteString(t.timeStyle.Render(e.At.Format("15:04")))
		b.WriteString("\n")
		b.WriteString(body.Render(e.Text))
		b.WriteString("\n")
	}
	return b.String()
}

func (t *Transcript) label(kind EntryKind) string {
	switch kind {
	case EntryUser:
		return t.userStyle.Render("You")
	case EntryAssistant:
		return t.assistantStyle.Render("Assistant")
	default:
		return t.errorStyle.Render("Error")
	}
}
