package openai

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
	p := New(DefaultConfig().WithAPIKey("key"))
	params := p.buildParams(testRequest())
	if params.Temperature.Valid() {
		t.Errorf("temperature must stay unset unless configured, got %v", params.Temperature)
	}
}

func TestBuildParamsSendsConfiguredZeroTemperature(t *testing.T) {
	p := New(DefaultConfig().WithAPIKey("key").WithTemperature(0))
	params := p.buildParams(testRequest())
	if !params.Temperature.Valid() || params.Temperature.Value != 0 {
		t.Errorf("configured zero temperature must be sent, got %v", params.Temperature)
	}
}

func TestBuildParamsMapsResponseFormat(t *testing.T) {
	p := New(DefaultConfig().WithAPIKey("key"))
	req := testRequest()
	req.ResponseFormat = &provider.ResponseFormat{
		Name:   "query_analysis",
		Schema: map[string]any{"type": "object"},
		Strict: true,
	}

	params := p.buildParams(req)
	js := params.ResponseFormat.OfJSONSchema
	if js == nil {
		t.Fatal("expected a json_schema response format")
	}
	if js.JSONSchema.Name != "query_analysis" {
		t.Errorf("schema name lost: %q", js.JSONSchema.Name)
	}
	if !js.JSONSchema.Strict.Valid() || !js.JSONSchema.Strict.Value {
		t.Errorf("strict flag lost: %v", js.JSONSchema.Strict)
	}
}
