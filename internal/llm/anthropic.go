package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/ShayCichocki/tasktalk/internal/tools"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// Anthropic calls the Messages API directly or through Bedrock.
type Anthropic struct {
	inner       anthropic.Client
	model       anthropic.Model
	temperature float64
	maxTokens   int64
	tracker     *TokenTracker
}

// NewAnthropic creates an Anthropic client. Without an explicit key the
// ANTHROPIC_API_KEY environment variable is used.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	var opts []option.RequestOption

	if cfg.UseBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.BedrockRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.BedrockRegion))
		}
		if cfg.BedrockProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.BedrockProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseBedrock {
		model = translateModelForBedrock(model)
	}

	return &Anthropic{
		inner:       anthropic.NewClient(opts...),
		model:       model,
		temperature: cfg.temperature(),
		maxTokens:   cfg.maxTokens(),
		tracker:     NewTokenTracker(),
	}, nil
}

// translateModelForBedrock maps model names to Bedrock cross-region inference profiles.
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// Tracker implements Client.
func (a *Anthropic) Tracker() *TokenTracker {
	return a.tracker
}

// Reason implements Client.
func (a *Anthropic) Reason(ctx context.Context, system string, messages []models.Message, decls []tools.Declaration) (models.Message, error) {
	return a.call(ctx, system, anthropicMessages(messages), anthropicTools(decls))
}

// Synthesize implements Client.
func (a *Anthropic) Synthesize(ctx context.Context, system, prompt string) (models.Message, error) {
	msgs := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}
	return a.call(ctx, system, msgs, nil)
}

func (a *Anthropic) call(ctx context.Context, system string, msgs []anthropic.MessageParam, toolDefs []anthropic.ToolUnionParam) (models.Message, error) {
	params := anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
		Messages:    msgs,
		Tools:       toolDefs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.inner.Messages.New(ctx, params)
	if err != nil {
		return models.Message{}, fmt.Errorf("anthropic messages: %w", err)
	}
	a.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	out := models.Message{Role: models.RoleAssistant}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += variant.Text
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: append(json.RawMessage(nil), variant.Input...),
			})
		}
	}
	return out, nil
}

// anthropicTools converts declarations into Messages API tool definitions.
func anthropicTools(decls []tools.Declaration) []anthropic.ToolUnionParam {
	if len(decls) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(decls))
	for _, d := range decls {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: d.Properties(),
					Required:   d.Required(),
				},
			},
		})
	}
	return out
}

// anthropicMessages converts the conversation into alternating user and
// assistant turns. Tool results travel as tool_result blocks in a user turn,
// so consecutive tool messages share one turn. Leading non-user turns are
// dropped because the API requires the conversation to open with the user.
func anthropicMessages(messages []models.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var role anthropic.MessageParamRole
	var blocks []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(blocks) == 0 {
			return
		}
		if role == anthropic.MessageParamRoleUser {
			out = append(out, anthropic.NewUserMessage(blocks...))
		} else if len(out) > 0 {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
		blocks = nil
	}

	for _, m := range messages {
		next := anthropic.MessageParamRoleUser
		if m.Role == models.RoleAssistant {
			next = anthropic.MessageParamRoleAssistant
		}
		if next != role {
			flush()
			role = next
		}

		switch m.Role {
		case models.RoleUser:
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
		case models.RoleAssistant:
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
		case models.RoleTool:
			isError := m.Result != nil && !m.Result.Success
			blocks = append(blocks, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, isError))
		}
	}
	flush()
	return out
}
