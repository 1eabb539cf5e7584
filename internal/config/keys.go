package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when the selected provider has no key.
var ErrNoAPIKey = errors.New("no model API key configured")

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config_file"
	KeySourceBedrock KeySource = "aws_bedrock"
	KeySourceNone    KeySource = "none"
)

// envKeys lists the conventional variables per provider, in lookup order.
var envKeys = map[string][]string{
	"anthropic": {"ANTHROPIC_API_KEY"},
	"openai":    {"OPENAI_API_KEY", "GROQ_API_KEY"},
}

// APIKey returns the key for the configured provider. Bedrock needs none.
func (c *Config) APIKey() (string, error) {
	if c.Model.Provider == "anthropic" && c.Model.Bedrock.Enabled {
		return "", nil
	}

	key := c.Model.AnthropicAPIKey
	if c.Model.Provider == "openai" {
		key = c.Model.OpenAIAPIKey
	}
	key = os.ExpandEnv(key)
	if key != "" && !strings.HasPrefix(key, "${") {
		return key, nil
	}
	return "", ErrNoAPIKey
}

// APIKeySource reports where the provider's key comes from.
func (c *Config) APIKeySource() KeySource {
	if c.Model.Provider == "anthropic" && c.Model.Bedrock.Enabled {
		return KeySourceBedrock
	}
	for _, env := range envKeys[c.Model.Provider] {
		if os.Getenv(env) != "" {
			return KeySourceEnv
		}
	}
	if _, err := c.APIKey(); err == nil {
		return KeySourceConfig
	}
	return KeySourceNone
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// Redacted returns a copy of c with API keys masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	out.Model.AnthropicAPIKey = MaskAPIKey(c.Model.AnthropicAPIKey)
	out.Model.OpenAIAPIKey = MaskAPIKey(c.Model.OpenAIAPIKey)
	return &out
}
