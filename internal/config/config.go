// Package config handles configuration loading for tasktalk.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProjectConfigName is the per-project override file searched for from the
// working directory upwards.
const ProjectConfigName = ".tasktalk.yaml"

// Config holds all configuration for tasktalk.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Model   ModelConfig   `mapstructure:"model" yaml:"model"`
	Index   IndexConfig   `mapstructure:"index" yaml:"index"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
}

// ServerConfig holds HTTP and WebSocket settings.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	// TokenDelay paces the word-by-word answer stream.
	TokenDelay      time.Duration `mapstructure:"token_delay" yaml:"token_delay"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StorageConfig selects the SQLite driver and database file.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// ModelConfig holds language model settings.
type ModelConfig struct {
	Provider        string        `mapstructure:"provider" yaml:"provider"`
	Name            string        `mapstructure:"name" yaml:"name"`
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	Temperature     float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens       int64         `mapstructure:"max_tokens" yaml:"max_tokens"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	Bedrock         BedrockConfig `mapstructure:"bedrock" yaml:"bedrock"`
}

// BedrockConfig routes the anthropic provider through AWS Bedrock.
type BedrockConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Region  string `mapstructure:"region" yaml:"region"`
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// IndexConfig holds semantic index settings.
type IndexConfig struct {
	Embedder       string `mapstructure:"embedder" yaml:"embedder"`
	EmbeddingModel string `mapstructure:"embedding_model" yaml:"embedding_model"`
	DefaultLimit   int    `mapstructure:"default_limit" yaml:"default_limit"`
}

// AgentConfig holds orchestration settings.
type AgentConfig struct {
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`
	MaxSteps     int `mapstructure:"max_steps" yaml:"max_steps"`
	// SystemPromptFile replaces the built-in system prompt and is watched for changes.
	SystemPromptFile string `mapstructure:"system_prompt_file" yaml:"system_prompt_file"`
	DebugLog         string `mapstructure:"debug_log" yaml:"debug_log"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (TASKTALK_*, ANTHROPIC_API_KEY, OPENAI_API_KEY, GROQ_API_KEY, DATABASE_PATH)
// 2. Project config (.tasktalk.yaml in current directory or parent)
// 3. User config (~/.config/tasktalk/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file over the defaults.
// Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Model.AnthropicAPIKey = expandEnv(cfg.Model.AnthropicAPIKey)
	cfg.Model.OpenAIAPIKey = expandEnv(cfg.Model.OpenAIAPIKey)
	cfg.Storage.Path = expandEnv(cfg.Storage.Path)
	cfg.Agent.SystemPromptFile = expandEnv(cfg.Agent.SystemPromptFile)
	cfg.Agent.DebugLog = expandEnv(cfg.Agent.DebugLog)

	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("TASKTALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional variable names, after the prefixed form.
	v.BindEnv("model.anthropic_api_key", "TASKTALK_MODEL_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("model.openai_api_key", "TASKTALK_MODEL_OPENAI_API_KEY", "OPENAI_API_KEY", "GROQ_API_KEY")
	v.BindEnv("storage.path", "TASKTALK_STORAGE_PATH", "DATABASE_PATH")
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.token_delay", d.Server.TokenDelay.String())
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout.String())

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)

	v.SetDefault("model.provider", d.Model.Provider)
	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.base_url", d.Model.BaseURL)
	v.SetDefault("model.temperature", d.Model.Temperature)
	v.SetDefault("model.max_tokens", d.Model.MaxTokens)
	v.SetDefault("model.anthropic_api_key", "")
	v.SetDefault("model.openai_api_key", "")
	v.SetDefault("model.bedrock.enabled", false)
	v.SetDefault("model.bedrock.region", "")
	v.SetDefault("model.bedrock.profile", "")

	v.SetDefault("index.embedder", d.Index.Embedder)
	v.SetDefault("index.embedding_model", d.Index.EmbeddingModel)
	v.SetDefault("index.default_limit", d.Index.DefaultLimit)

	v.SetDefault("agent.history_limit", d.Agent.HistoryLimit)
	v.SetDefault("agent.max_steps", d.Agent.MaxSteps)
	v.SetDefault("agent.system_prompt_file", "")
	v.SetDefault("agent.debug_log", "")
}

// getUserConfigDir returns the XDG config directory for tasktalk.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tasktalk")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "tasktalk")
	}
	return filepath.Join(home, ".config", "tasktalk")
}

// defaultDBPath returns the XDG data path of the task database.
func defaultDBPath() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "tasktalk", "tasks.db")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "tasks.db")
	}
	return filepath.Join(home, ".local", "share", "tasktalk", "tasks.db")
}

// findProjectConfig searches for .tasktalk.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8000",
			AllowedOrigins: []string{
				"http://localhost:5173",
				"http://localhost:3000",
				"http://127.0.0.1:5173",
				"http://127.0.0.1:3000",
			},
			TokenDelay:      20 * time.Millisecond,
			ShutdownTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   defaultDBPath(),
		},
		Model: ModelConfig{
			Provider:    "anthropic",
			Temperature: 0.1,
			MaxTokens:   1024,
		},
		Index: IndexConfig{
			Embedder:       "local",
			EmbeddingModel: "text-embedding-3-small",
			DefaultLimit:   5,
		},
		Agent: AgentConfig{
			HistoryLimit: 20,
			MaxSteps:     8,
		},
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Model.Provider {
	case "anthropic", "openai":
	default:
		problems = append(problems, fmt.Sprintf("model.provider %q must be anthropic or openai", c.Model.Provider))
	}
	switch c.Storage.Driver {
	case "sqlite", "sqlite3":
	default:
		problems = append(problems, fmt.Sprintf("storage.driver %q must be sqlite or sqlite3", c.Storage.Driver))
	}
	switch c.Index.Embedder {
	case "local", "openai":
	default:
		problems = append(problems, fmt.Sprintf("index.embedder %q must be local or openai", c.Index.Embedder))
	}
	if c.Storage.Path == "" {
		problems = append(problems, "storage.path must be set")
	}
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr must be set")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		problems = append(problems, "model.temperature must be within [0, 2]")
	}
	if c.Model.MaxTokens <= 0 {
		problems = append(problems, "model.max_tokens must be positive")
	}
	if c.Index.DefaultLimit <= 0 {
		problems = append(problems, "index.default_limit must be positive")
	}
	if c.Agent.HistoryLimit <= 0 {
		problems = append(problems, "agent.history_limit must be positive")
	}
	if c.Agent.MaxSteps <= 0 {
		problems = append(problems, "agent.max_steps must be positive")
	}
	if c.Server.TokenDelay < 0 {
		problems = append(problems, "server.token_delay must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
