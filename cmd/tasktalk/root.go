package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tasktalk",
	Short: "Conversational todo assistant",
	Long: `tasktalk manages a todo list through natural language.

A language model decides which task operations to run: create, read, update,
delete and semantic search. Mutations are answered with one follow-up call,
searches are summarized from the retrieved tasks.

With no arguments, launches the terminal chat.

Interfaces:
- serve: REST API and WebSocket chat for the web client
- chat:  terminal chat
- ask:   one-shot question from the shell
- mcp:   Model Context Protocol server on stdio
- tasks: direct list management without the model`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: XDG config plus .tasktalk.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
