package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	pipelineerrors "github.com/youthlab/policyrag/errors"
	"github.com/youthlab/policyrag/message"
	"github.com/youthlab/policyrag/policy"
	"github.com/youthlab/policyrag/prompt"
	"github.com/youthlab/policyrag/provider"
	"github.com/youthlab/policyrag/tokens"
)

// PolicySelection is the structured output of the selection call.
type PolicySelection struct {
	SelectedPolicies   []policy.SelectedPolicy `json:"selected_policies"`
	SelectionReasoning string                  `json:"selection_reasoning"`
}

var selectionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"selected_policies": map[string]any{
			"type":        "array",
			"description": "선정한 정책 목록",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"plcy_no":       map[string]any{"type": "string", "description": "정책 번호"},
					"plcy_nm":       map[string]any{"type": "string", "description": "정책명"},
					"plcy_expln_nm": map[string]any{"type": "string", "description": "정책 설명명"},
					"lclsf_nm":      map[string]any{"type": "string", "description": "대분류명"},
					"mclsf_nm":      map[string]any{"type": "string", "description": "중분류명"},
					"zip_cd":        map[string]any{"type": "string", "description": "지역코드"},
					"inq_cnt":       map[string]any{"type": "integer", "description": "문의 횟수"},
				},
				"required":             []string{"plcy_no", "plcy_nm", "plcy_expln_nm", "lclsf_nm", "mclsf_nm", "zip_cd", "inq_cnt"},
				"additionalProperties": false,
			},
		},
		"selection_reasoning": map[string]any{
			"type":        "string",
			"description": "정책 선정 근거",
		},
	},
	"required":             []string{"selected_policies", "selection_reasoning"},
	"additionalProperties": false,
}

// Selector narrows an executed result set to the policies most relevant to
// the question and conditions.
type Selector struct {
	llm         provider.LLMClient
	prompts     *prompt.Manager
	budgeter    *tokens.Budgeter
	logger      *slog.Logger
	maxSelected int
}

// NewSelector creates a Selector on the given model.
func NewSelector(llm provider.LLMClient, prompts *prompt.Manager, budgeter *tokens.Budgeter,
	logger *slog.Logger, maxSelected int) *Selector {
	return &Selector{
		llm:         llm,
		prompts:     prompts,
		budgeter:    budgeter,
		logger:      logger,
		maxSelected: maxSelected,
	}
}

// Select runs the selection call and strips anything the model invented: a
// selected policy whose number does not appear in the executed rows is
// dropped, never surfaced.
func (s *Selector) Select(ctx context.Context, query string, analysis *QueryAnalysis,
	rows []map[string]any) (*PolicySelection, error) {
	searchData, truncated, err := s.budgeter.FitRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSelection, err)
	}
	if truncated {
		s.logger.Warn("result set truncated to token budget", "rows", len(rows))
	}

	conditions, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSelection, err)
	}

	systemText, err := s.prompts.Render(tmplSelectionSystem, map[string]any{
		"UserQuery":      query,
		"UserConditions": string(conditions),
		"SearchData":     searchData,
		"MaxSelected":    s.maxSelected,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSelection, err)
	}
	userText, err := s.prompts.Render(tmplSelectionUser, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSelection, err)
	}

	resp, err := s.llm.Generate(ctx, &provider.GenerateRequest{
		Messages: []*message.Message{
			message.NewMessage(message.RoleSystem, systemText),
			message.NewMessage(message.RoleUser, userText),
		},
		ResponseFormat: &provider.ResponseFormat{
			Name:   "policy_selection",
			Schema: selectionSchema,
			Strict: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSelection, err)
	}

	selection, err := decodeJSON[PolicySelection](resp.Message.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSelection, err)
	}

	selection.SelectedPolicies = s.groundSelection(selection.SelectedPolicies, rows)
	if len(selection.SelectedPolicies) > s.maxSelected {
		selection.SelectedPolicies = selection.SelectedPolicies[:s.maxSelected]
	}

	s.logger.Info("policy selection complete",
		"selected", len(selection.SelectedPolicies),
		"reasoning", selection.SelectionReasoning)
	return selection, nil
}

// groundSelection keeps only policies whose number exists in the executed
// rows, preserving the model's relevance order.
func (s *Selector) groundSelection(selected []policy.SelectedPolicy, rows []map[string]any) []policy.SelectedPolicy {
	existing := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if no, ok := row["plcy_no"].(string); ok {
			existing[no] = struct{}{}
		}
	}

	grounded := make([]policy.SelectedPolicy, 0, len(selected))
	for _, p := range selected {
		if _, ok := existing[p.PolicyNo]; !ok {
			s.logger.Warn("dropping policy absent from search results", "plcy_no", p.PolicyNo)
			continue
		}
		grounded = append(grounded, p)
	}
	return grounded
}
