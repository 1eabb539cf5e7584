// Package llm implements the model invocation port on hosted chat models.
//
// Two providers are supported: Anthropic (direct API or AWS Bedrock) and any
// OpenAI-compatible chat completions endpoint (OpenAI, Groq). Both expose the
// same two entry points, Reason and Synthesize, and record usage in a
// TokenTracker.
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ShayCichocki/tasktalk/internal/tools"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Default sampling settings. Low temperature keeps tool selection stable.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 1024
)

// Client is a model invocation port backed by a hosted model.
type Client interface {
	// Reason returns an assistant message, optionally carrying tool calls.
	Reason(ctx context.Context, system string, messages []models.Message, decls []tools.Declaration) (models.Message, error)
	// Synthesize makes a single call with no tools bound.
	Synthesize(ctx context.Context, system, prompt string) (models.Message, error)
	// Tracker returns the usage tracker for this client.
	Tracker() *TokenTracker
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int64

	// Bedrock settings apply to the anthropic provider only.
	UseBedrock     bool
	BedrockRegion  string
	BedrockProfile string
}

// New creates a client for cfg.Provider.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderAnthropic, "":
		return NewAnthropic(cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func (c Config) temperature() float64 {
	if c.Temperature < 0 {
		return DefaultTemperature
	}
	return c.Temperature
}

func (c Config) maxTokens() int64 {
	if c.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return c.MaxTokens
}

// TokenTracker tracks token usage across model calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from one call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of model calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset clears all tracked usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
}
