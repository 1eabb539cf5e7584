package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/tasktalk/internal/mcpserver"
	"github.com/ShayCichocki/tasktalk/internal/version"
)

var mcpNoAssistant bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the todo tools over MCP on stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout.

The five todo tools are published as-is. Unless --no-assistant is given, an
ask_assistant tool runs full conversational turns and needs a model key.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpNoAssistant, "no-assistant", false, "Publish only the todo tools")
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol.
	log.SetOutput(os.Stderr)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if mcpNoAssistant {
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		reg, err := newRegistry(cfg, s)
		if err != nil {
			return err
		}
		log.Printf("[mcp] serving todo tools from %s", s.Path())
		return mcpserver.Serve(mcpserver.New(reg, nil, version.Get()))
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Printf("[mcp] serving todo tools and assistant from %s", a.store.Path())
	return mcpserver.Serve(mcpserver.New(a.registry, a.sessions, version.Get()))
}
