package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/youthlab/policyrag/message"
	"github.com/youthlab/policyrag/provider"
)

// Config holds Claude provider configuration. A nil Temperature leaves the
// API default in place; a set value is always sent, including zero.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature *float64
}

// DefaultConfig returns default Claude configuration
func DefaultConfig(apiKey, baseURL string) *Config {
	return &Config{
		APIKey:    apiKey,
		BaseURL:   baseURL,
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 4096,
	}
}

// WithTemperature sets the sampling temperature to send.
func (cfg *Config) WithTemperature(temp float64) *Config {
	cfg.Temperature = &temp
	return cfg
}

// Provider implements the provider.LLMClient interface for Claude
type Provider struct {
	config *Config
	client anthropic.Client
}

// New creates a new Claude provider using official SDK
func New(config *Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-sonnet-4-5-20250929"
	}

	options := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(options...)

	return &Provider{
		config: config,
		client: client,
	}
}

// Generate implements provider.LLMClient interface. Structured outputs are
// requested by forcing a single tool whose input schema is the contract; the
// tool input then becomes the response content.
func (p *Provider) Generate(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	apiMessage, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	var responseText string
	for _, content := range apiMessage.Content {
		switch content.Type {
		case "text":
			responseText = content.Text
		case "tool_use":
			// The forced tool input is the structured payload
			responseText = string(content.Input)
		}
	}

	responseMsg := message.NewMessage(message.RoleAssistant, responseText)
	return &provider.GenerateResponse{Message: responseMsg}, nil
}

// buildParams maps a generate request onto the message parameters. System
// messages are folded into the system prompt.
func (p *Provider) buildParams(req *provider.GenerateRequest) anthropic.MessageNewParams {
	var systemPrompts []string
	conversationMessages := make([]anthropic.MessageParam, 0, len(req.Messages))

	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleSystem:
			systemPrompts = append(systemPrompts, msg.Content)
		case message.RoleUser:
			conversationMessages = append(conversationMessages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case message.RoleAssistant:
			conversationMessages = append(conversationMessages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		Messages:  conversationMessages,
		MaxTokens: p.config.MaxTokens,
	}

	if len(systemPrompts) > 0 {
		params.System = []anthropic.TextBlockParam{
			{Text: strings.Join(systemPrompts, "\n")},
		}
	}

	if p.config.Temperature != nil {
		params.Temperature = param.NewOpt(*p.config.Temperature)
	}

	if rf := req.ResponseFormat; rf != nil {
		toolParam := anthropic.ToolParam{
			Name:        rf.Name,
			Description: anthropic.String("Emit the structured result"),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: rf.Schema["properties"],
			},
		}
		if required, ok := rf.Schema["required"].([]string); ok {
			toolParam.InputSchema.Required = required
		}
		params.Tools = []anthropic.ToolUnionParam{{OfTool: &toolParam}}
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: rf.Name},
		}
	}
	return params
}

// SetTemperature updates the temperature setting
func (p *Provider) SetTemperature(temp float64) {
	p.config.Temperature = &temp
}

// SetMaxTokens updates the max tokens setting
func (p *Provider) SetMaxTokens(max int64) {
	p.config.MaxTokens = max
}

// SetModel updates the model
func (p *Provider) SetModel(model string) {
	p.config.Model = model
}
