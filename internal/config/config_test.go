package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load consults so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GROQ_API_KEY", "DATABASE_PATH",
		"TASKTALK_SERVER_ADDR", "TASKTALK_STORAGE_PATH", "TASKTALK_MODEL_PROVIDER",
		"TASKTALK_MODEL_ANTHROPIC_API_KEY", "TASKTALK_MODEL_OPENAI_API_KEY",
		"TASKTALK_AGENT_MAX_STEPS",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", p, err)
	}
	return p
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected addr :8000, got %q", cfg.Server.Addr)
	}
	if len(cfg.Server.AllowedOrigins) != 4 {
		t.Errorf("expected 4 allowed origins, got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.TokenDelay != 20*time.Millisecond {
		t.Errorf("expected token delay 20ms, got %v", cfg.Server.TokenDelay)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("expected driver sqlite, got %q", cfg.Storage.Driver)
	}
	if cfg.Model.Provider != "anthropic" || cfg.Model.Temperature != 0.1 {
		t.Errorf("unexpected model defaults: %+v", cfg.Model)
	}
	if cfg.Index.Embedder != "local" || cfg.Index.DefaultLimit != 5 {
		t.Errorf("unexpected index defaults: %+v", cfg.Index)
	}
	if cfg.Agent.HistoryLimit != 20 || cfg.Agent.MaxSteps != 8 {
		t.Errorf("unexpected agent defaults: %+v", cfg.Agent)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestDefaultDBPath_XDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := defaultDBPath(); got != filepath.Join("/data", "tasktalk", "tasks.db") {
		t.Errorf("defaultDBPath() = %q", got)
	}
}

func TestLoadFromPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env-reference")

	configPath := writeConfig(t, t.TempDir(), "config.yaml", `
server:
  addr: ":9090"
  token_delay: 5ms
storage:
  driver: sqlite3
  path: /tmp/tt.db
model:
  provider: openai
  name: gpt-4o-mini
  openai_api_key: ${TEST_OPENAI_KEY}
  temperature: 0.3
index:
  embedder: openai
agent:
  max_steps: 4
`)

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %q", cfg.Server.Addr)
	}
	if cfg.Server.TokenDelay != 5*time.Millisecond {
		t.Errorf("expected token delay 5ms, got %v", cfg.Server.TokenDelay)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected default shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.Driver != "sqlite3" || cfg.Storage.Path != "/tmp/tt.db" {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Model.Provider != "openai" || cfg.Model.Name != "gpt-4o-mini" || cfg.Model.Temperature != 0.3 {
		t.Errorf("unexpected model: %+v", cfg.Model)
	}
	if cfg.Model.OpenAIAPIKey != "sk-from-env-reference" {
		t.Errorf("expected expanded key, got %q", cfg.Model.OpenAIAPIKey)
	}
	if cfg.Agent.MaxSteps != 4 || cfg.Agent.HistoryLimit != 20 {
		t.Errorf("unexpected agent: %+v", cfg.Agent)
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TASKTALK_SERVER_ADDR", ":7000")
	t.Setenv("DATABASE_PATH", "/var/lib/tasks.db")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	configPath := writeConfig(t, t.TempDir(), "config.yaml", `
server:
  addr: ":9090"
`)

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("env did not override addr: %q", cfg.Server.Addr)
	}
	if cfg.Storage.Path != "/var/lib/tasks.db" {
		t.Errorf("DATABASE_PATH not applied: %q", cfg.Storage.Path)
	}
	if cfg.Model.AnthropicAPIKey != "sk-ant-env" {
		t.Errorf("ANTHROPIC_API_KEY not applied: %q", cfg.Model.AnthropicAPIKey)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	clearEnv(t)

	userDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", userDir)
	if err := os.MkdirAll(filepath.Join(userDir, "tasktalk"), 0755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, filepath.Join(userDir, "tasktalk"), "config.yaml", `
server:
  addr: ":1111"
agent:
  history_limit: 10
`)

	project := t.TempDir()
	nested := filepath.Join(project, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, project, ProjectConfigName, `
server:
  addr: ":2222"
`)

	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	if err := os.Chdir(nested); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":2222" {
		t.Errorf("project config not applied: %q", cfg.Server.Addr)
	}
	if cfg.Agent.HistoryLimit != 10 {
		t.Errorf("user config not applied: %d", cfg.Agent.HistoryLimit)
	}
	if !strings.HasSuffix(GetProjectConfigPath(), ProjectConfigName) {
		t.Errorf("GetProjectConfigPath() = %q", GetProjectConfigPath())
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	if result := expandEnv("${TEST_VAR}"); result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}
	if result := expandEnv("prefix-${TEST_VAR}-suffix"); result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if dir := getUserConfigDir(); dir != filepath.Join("/custom/config", "tasktalk") {
		t.Errorf("unexpected dir %q", dir)
	}
	if p := GetUserConfigPath(); p != filepath.Join("/custom/config", "tasktalk", "config.yaml") {
		t.Errorf("unexpected path %q", p)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"provider", func(c *Config) { c.Model.Provider = "cohere" }, "model.provider"},
		{"driver", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.driver"},
		{"embedder", func(c *Config) { c.Index.Embedder = "bert" }, "index.embedder"},
		{"history", func(c *Config) { c.Agent.HistoryLimit = 0 }, "agent.history_limit"},
		{"steps", func(c *Config) { c.Agent.MaxSteps = -1 }, "agent.max_steps"},
		{"limit", func(c *Config) { c.Index.DefaultLimit = 0 }, "index.default_limit"},
		{"temperature", func(c *Config) { c.Model.Temperature = 3 }, "model.temperature"},
		{"path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
