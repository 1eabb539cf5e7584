package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ShayCichocki/tasktalk/internal/agent"
	"github.com/ShayCichocki/tasktalk/internal/config"
	"github.com/ShayCichocki/tasktalk/internal/index"
	"github.com/ShayCichocki/tasktalk/internal/llm"
	"github.com/ShayCichocki/tasktalk/internal/session"
	"github.com/ShayCichocki/tasktalk/internal/store"
	"github.com/ShayCichocki/tasktalk/internal/tools"
)

// loadConfig reads --config when given, the layered configuration otherwise.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	registry *tools.Registry
	model    llm.Client
	graph    *agent.Graph
	sessions *session.Manager
	logger   *agent.DebugLogger
}

// openStore opens and migrates the configured database.
func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	s, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// newEmbedder selects the index embedder.
func newEmbedder(cfg *config.Config) (index.Embedder, error) {
	switch cfg.Index.Embedder {
	case "openai":
		return index.NewOpenAIEmbedder(cfg.Model.OpenAIAPIKey, "", cfg.Index.EmbeddingModel)
	default:
		return index.NewLocalEmbedder(), nil
	}
}

// modelConfig maps configuration onto the provider settings.
func modelConfig(cfg *config.Config) (llm.Config, error) {
	key, err := cfg.APIKey()
	if err != nil {
		return llm.Config{}, fmt.Errorf("%w for provider %s: set ANTHROPIC_API_KEY, OPENAI_API_KEY or GROQ_API_KEY", err, cfg.Model.Provider)
	}
	return llm.Config{
		Provider:       cfg.Model.Provider,
		Model:          cfg.Model.Name,
		BaseURL:        cfg.Model.BaseURL,
		APIKey:         key,
		Temperature:    cfg.Model.Temperature,
		MaxTokens:      cfg.Model.MaxTokens,
		UseBedrock:     cfg.Model.Bedrock.Enabled,
		BedrockRegion:  cfg.Model.Bedrock.Region,
		BedrockProfile: cfg.Model.Bedrock.Profile,
	}, nil
}

// newApp wires storage, tools, model and graph from cfg.
func newApp(cfg *config.Config) (*app, error) {
	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: s}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newRegistry builds the tool registry over s with the configured index.
func newRegistry(cfg *config.Config, s *store.SQLiteStore) (*tools.Registry, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return tools.NewRegistry(s, index.NewVectorIndex(embedder), cfg.Index.DefaultLimit), nil
}

func (a *app) wire() error {
	var err error
	a.registry, err = newRegistry(a.cfg, a.store)
	if err != nil {
		return err
	}

	mc, err := modelConfig(a.cfg)
	if err != nil {
		return err
	}
	a.model, err = llm.New(mc)
	if err != nil {
		return fmt.Errorf("create model client: %w", err)
	}

	a.logger, err = agent.NewDebugLogger(a.cfg.Agent.DebugLog)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}

	prompt, err := readSystemPrompt(a.cfg.Agent.SystemPromptFile)
	if err != nil {
		return err
	}

	a.graph = agent.NewGraph(a.model, a.registry, agent.Options{
		SystemPrompt: prompt,
		MaxSteps:     a.cfg.Agent.MaxSteps,
		Logger:       a.logger,
	})
	a.sessions = session.NewManager(a.graph, a.cfg.Agent.HistoryLimit)
	return nil
}

// readSystemPrompt returns the prompt file contents, or "" for the built-in prompt.
func readSystemPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	return string(b), nil
}

// Close releases the store and debug log.
func (a *app) Close() {
	if a.logger != nil {
		a.logger.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
