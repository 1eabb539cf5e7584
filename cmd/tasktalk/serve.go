package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/tasktalk/internal/config"
	"github.com/ShayCichocki/tasktalk/internal/server"
	"github.com/ShayCichocki/tasktalk/internal/version"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and WebSocket chat server",
	Long: `Serve the todo REST API under /api/todos and the streaming chat
endpoint at /ws/chat.

When agent.system_prompt_file is set, edits to that file replace the system
prompt of the running server without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if path := cfg.Agent.SystemPromptFile; path != "" {
		w, err := config.Watch(path, func(contents []byte) {
			a.graph.SetSystemPrompt(string(contents))
			log.Printf("[serve] system prompt reloaded from %s", path)
		})
		if err != nil {
			return fmt.Errorf("watch system prompt: %w", err)
		}
		defer w.Close()
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := server.New(a.store, a.sessions, server.Options{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		TokenDelay:      cfg.Server.TokenDelay,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Tracker:         a.model.Tracker(),
		Version:         version.Get(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printStatus("✓", fmt.Sprintf("Database %s", a.store.Path()), colorOK)
	printStatus("✓", fmt.Sprintf("Model provider %s", cfg.Model.Provider), colorOK)
	printStatus("✓", fmt.Sprintf("Listening on %s", addr), colorOK)

	return srv.ListenAndServe(ctx, addr)
}
