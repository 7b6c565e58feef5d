package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/youthlab/policyrag/message"
	"github.com/youthlab/policyrag/provider"
	"google.golang.org/api/option"
)

// Config holds Gemini provider configuration. A nil Temperature leaves the
// model default in place; a set value is always sent, including zero.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int32
	Temperature *float32
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:    apiKey,
		Model:     "gemini-1.5-pro",
		MaxTokens: 2048,
	}
}

// WithTemperature sets the sampling temperature to send.
func (cfg *Config) WithTemperature(temp float32) *Config {
	cfg.Temperature = &temp
	return cfg
}

// Provider implements the provider.LLMClient interface for Google Gemini
type Provider struct {
	config *Config
	client *genai.Client
}

// New creates a new Gemini provider using the official genai SDK.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not configured")
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-pro"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Provider{
		config: config,
		client: client,
	}, nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Generate implements provider.LLMClient interface. Structured outputs are
// requested via the JSON response MIME type plus the response schema mapped
// into the genai schema type.
func (p *Provider) Generate(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	model := p.client.GenerativeModel(p.config.Model)
	if p.config.Temperature != nil {
		model.SetTemperature(*p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		model.SetMaxOutputTokens(p.config.MaxTokens)
	}
	if rf := req.ResponseFormat; rf != nil {
		model.ResponseMIMEType = "application/json"
		if rf.Schema != nil {
			model.ResponseSchema = toGenaiSchema(rf.Schema)
		}
	}

	// Fold system messages into the system instruction; the rest becomes
	// chat history with the final user message sent as the prompt.
	var systemParts []string
	var history []*genai.Content
	var lastUser string

	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case message.RoleUser:
			lastUser = msg.Content
			history = append(history, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		case message.RoleAssistant:
			history = append(history, &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}
	}

	if lastUser == "" {
		return nil, fmt.Errorf("no user message to send")
	}
	if len(systemParts) > 0 {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(systemParts, "\n"))},
		}
	}

	// Drop the trailing user turn from history; it is sent as the message.
	if len(history) > 0 && history[len(history)-1].Role == "user" {
		history = history[:len(history)-1]
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(lastUser))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected part type in Gemini response")
	}

	return &provider.GenerateResponse{
		Message: message.NewMessage(message.RoleAssistant, string(text)),
	}, nil
}

// SetTemperature updates the temperature setting
func (p *Provider) SetTemperature(temp float64) {
	t := float32(temp)
	p.config.Temperature = &t
}

// toGenaiSchema converts a JSON-schema map into the genai schema type. Null
// members of type unions and enums become Nullable; keywords the genai type
// cannot express (bounds, additionalProperties) are dropped, the pipeline
// validates decoded values anyway.
func toGenaiSchema(spec map[string]any) *genai.Schema {
	s := &genai.Schema{}

	switch t := spec["type"].(type) {
	case string:
		s.Type = genaiType(t)
	case []string:
		for _, v := range t {
			if v == "null" {
				s.Nullable = true
			} else {
				s.Type = genaiType(v)
			}
		}
	case []any:
		for _, v := range t {
			name, ok := v.(string)
			if !ok {
				continue
			}
			if name == "null" {
				s.Nullable = true
			} else {
				s.Type = genaiType(name)
			}
		}
	}

	if d, ok := spec["description"].(string); ok {
		s.Description = d
	}

	switch e := spec["enum"].(type) {
	case []string:
		s.Enum = e
	case []any:
		for _, v := range e {
			if v == nil {
				s.Nullable = true
				continue
			}
			if name, ok := v.(string); ok {
				s.Enum = append(s.Enum, name)
			}
		}
	}

	if props, ok := spec["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, sub := range props {
			if subMap, ok := sub.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(subMap)
			}
		}
	}

	switch r := spec["required"].(type) {
	case []string:
		s.Required = r
	case []any:
		for _, v := range r {
			if name, ok := v.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}

	if items, ok := spec["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	return s
}

func genaiType(name string) genai.Type {
	switch name {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	return genai.TypeUnspecified
}

// SetMaxTokens updates the max tokens setting
func (p *Provider) SetMaxTokens(max int64) {
	p.config.MaxTokens = int32(max)
}

// SetModel updates the model
func (p *Provider) SetModel(model string) {
	p.config.Model = model
}
