// Package provider defines the LLM invocation boundary used by every pipeline
// stage. Implementations live in the sub-packages (openai, claude, gemini).
package provider

import (
	"context"

	"github.com/youthlab/policyrag/message"
)

// ResponseFormat is the structured-output contract for a model invocation:
// the provider constrains the model so the reply parses into the given JSON
// schema. A nil ResponseFormat means free-form text completion.
type ResponseFormat struct {
	// Name identifies the contract (provider-visible, e.g. the schema name).
	Name string
	// Schema is a JSON-schema object describing the expected field set,
	// types, enumerations and numeric ranges.
	Schema map[string]any
	// Strict requests exact schema adherence where the provider supports it.
	Strict bool
}

// GenerateRequest bundles inputs for a non-streaming LLM invocation.
type GenerateRequest struct {
	Messages       []*message.Message
	ResponseFormat *ResponseFormat
}

// GenerateResponse captures the LLM reply.
type GenerateResponse struct {
	Message *message.Message
}

// LLMClient defines the interface for LLM providers
type LLMClient interface {
	// Generate generates a response from the LLM
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// SetTemperature updates the temperature setting for generation
	SetTemperature(temp float64)

	// SetMaxTokens updates the maximum tokens limit for generation
	SetMaxTokens(max int64)

	// SetModel updates the model to use for generation
	SetModel(model string)
}
