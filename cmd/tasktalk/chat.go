package main

import (
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/tasktalk/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Log lines would tear the full-screen view.
	log.SetOutput(io.Discard)

	sess := a.sessions.Create()
	defer a.sessions.Destroy(sess.ID)

	program := tui.NewChatProgram(tui.NewChatApp(sess, a.store))
	_, err = program.Run()
	return err
}
