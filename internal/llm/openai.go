package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ShayCichocki/tasktalk/internal/tools"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// GroqBaseURL is the OpenAI-compatible endpoint of Groq.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// DefaultOpenAIModel is used with the openai provider when no model is set.
const DefaultOpenAIModel = "llama-3.3-70b-versatile"

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	inner       openai.Client
	model       string
	temperature float64
	maxTokens   int64
	tracker     *TokenTracker
}

// NewOpenAI creates a chat completions client. Without an explicit key the
// OPENAI_API_KEY and then GROQ_API_KEY environment variables are used; a Groq
// key with no base URL selects the Groq endpoint.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	apiKey := cfg.APIKey
	baseURL := cfg.BaseURL
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
		if apiKey != "" && baseURL == "" {
			baseURL = GroqBaseURL
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY or GROQ_API_KEY environment variable is not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAI{
		inner:       openai.NewClient(opts...),
		model:       model,
		temperature: cfg.temperature(),
		maxTokens:   cfg.maxTokens(),
		tracker:     NewTokenTracker(),
	}, nil
}

// Tracker implements Client.
func (o *OpenAI) Tracker() *TokenTracker {
	return o.tracker
}

// Reason implements Client.
func (o *OpenAI) Reason(ctx context.Context, system string, messages []models.Message, decls []tools.Declaration) (models.Message, error) {
	return o.call(ctx, openaiMessages(system, messages), openaiTools(decls))
}

// Synthesize implements Client.
func (o *OpenAI) Synthesize(ctx context.Context, system, prompt string) (models.Message, error) {
	return o.call(ctx, openaiMessages(system, []models.Message{models.NewUserMessage(prompt)}), nil)
}

func (o *OpenAI) call(ctx context.Context, msgs []openai.ChatCompletionMessageParamUnion, toolDefs []openai.ChatCompletionToolUnionParam) (models.Message, error) {
	resp, err := o.inner.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            msgs,
		Tools:               toolDefs,
		Temperature:         openai.Float(o.temperature),
		MaxCompletionTokens: openai.Int(o.maxTokens),
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("openai chat completions: %w", err)
	}
	o.tracker.Add(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return models.Message{}, fmt.Errorf("openai chat completions: empty choices")
	}
	msg := resp.Choices[0].Message

	out := models.Message{Role: models.RoleAssistant, Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: []byte(tc.Function.Arguments),
		})
	}
	return out, nil
}

func openaiTools(decls []tools.Declaration) []openai.ChatCompletionToolUnionParam {
	if len(decls) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(decls))
	for _, d := range decls {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        d.Name,
			Description: openai.String(d.Description),
			Parameters:  openai.FunctionParameters(d.Schema()),
		}))
	}
	return out
}

func openaiMessages(system string, messages []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}

	for _, m := range messages {
		switch m.Role {
		case models.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case models.RoleAssistant:
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				args := string(tc.Arguments)
				if args == "" {
					args = "{}"
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: args,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case models.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}
