package claude

import (
	"testing"

	"github.com/youthlab/policyrag/message"
	"github.com/youthlab/policyrag/provider"
)

func testRequest() *provider.GenerateRequest {
	return &provider.GenerateRequest{
		Messages: []*message.Message{
			message.NewMessage(message.RoleSystem, "지시문"),
			message.NewMessage(message.RoleUser, "질문"),
		},
	}
}

func TestBuildParamsOmitsTemperatureByDefault(t *testing.T) {
	p := New(DefaultConfig("key", ""))
	params := p.buildParams(testRequest())
	if params.Temperature.Valid() {
		t.Errorf("temperature must stay unset unless configured, got %v", params.Temperature)
	}
}

func TestBuildParamsSendsConfiguredZeroTemperature(t *testing.T) {
	p := New(DefaultConfig("key", "").WithTemperature(0))
	params := p.buildParams(testRequest())
	if !params.Temperature.Valid() || params.Temperature.Value != 0 {
		t.Errorf("configured zero temperature must be sent, got %v", params.Temperature)
	}
}

func TestBuildParamsFoldsSystemMessages(t *testing.T) {
	p := New(DefaultConfig("key", ""))
	req := testRequest()
	req.Messages = append([]*message.Message{
		message.NewMessage(message.RoleSystem, "첫번째"),
	}, req.Messages...)

	params := p.buildParams(req)
	if len(params.System) != 1 {
		t.Fatalf("expected one folded system block, got %d", len(params.System))
	}
	if params.System[0].Text != "첫번째\n지시문" {
		t.Errorf("system fold order lost: %q", params.System[0].Text)
	}
	if len(params.Messages) != 1 {
		t.Errorf("system messages must not appear in the conversation, got %d", len(params.Messages))
	}
}

func TestBuildParamsForcesStructuredTool(t *testing.T) {
	p := New(DefaultConfig("key", ""))
	req := testRequest()
	req.ResponseFormat = &provider.ResponseFormat{
		Name: "policy_selection",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"selection_reasoning": map[string]any{"type": "string"}},
			"required":   []string{"selection_reasoning"},
		},
		Strict: true,
	}

	params := p.buildParams(req)
	if len(params.Tools) != 1 || params.Tools[0].OfTool == nil {
		t.Fatal("expected a single forced tool")
	}
	if params.Tools[0].OfTool.Name != "policy_selection" {
		t.Errorf("tool name lost: %q", params.Tools[0].OfTool.Name)
	}
	if got := params.Tools[0].OfTool.InputSchema.Required; len(got) != 1 || got[0] != "selection_reasoning" {
		t.Errorf("required fields lost: %v", got)
	}
	if params.ToolChoice.OfTool == nil || params.ToolChoice.OfTool.Name != "policy_selection" {
		t.Errorf("tool choice must force the structured tool")
	}
}
