// Package tui provides the terminal chat interface.
//
// The screen has three parts: a scrolling transcript of the conversation,
// a task panel showing the current list, and an input field. Each submitted
// message runs one turn on the session in the background; graph transitions
// are shown in the footer while the turn is running.
//
// Usage:
//
//	app := tui.NewChatApp(sess, store)
//	program := tea.NewProgram(app, tea.WithAltScreen())
//	_, err := program.Run()
//
// Keys: Enter sends, PgUp/PgDn scroll the transcript, Ctrl+L clears it,
// Ctrl+R starts a new conversation, Ctrl+C cancels a running turn or quits.
package tui
