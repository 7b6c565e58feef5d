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

// Composer produces the final user-facing answer. The in-scope path is a
// free-form model call; refusals and failure reports are deterministic
// templates and never touch a model.
type Composer struct {
	llm      provider.LLMClient
	prompts  *prompt.Manager
	budgeter *tokens.Budgeter
	logger   *slog.Logger
}

// NewComposer creates a Composer on the given chat model.
func NewComposer(llm provider.LLMClient, prompts *prompt.Manager, budgeter *tokens.Budgeter,
	logger *slog.Logger) *Composer {
	return &Composer{llm: llm, prompts: prompts, budgeter: budgeter, logger: logger}
}

// Compose renders the answer from the search results and selected policies.
func (c *Composer) Compose(ctx context.Context, query string, analysis *QueryAnalysis,
	rows []map[string]any, selected []policy.SelectedPolicy) (string, error) {
	searchData, _, err := c.budgeter.FitRows(rows)
	if err != nil {
		return "", fmt.Errorf("%w: %v", pipelineerrors.ErrComposition, err)
	}

	selectedJSON, err := json.Marshal(selected)
	if err != nil {
		return "", fmt.Errorf("%w: %v", pipelineerrors.ErrComposition, err)
	}

	systemText, err := c.prompts.Render(tmplResponseSystem, map[string]any{
		"Category":         string(analysis.Category),
		"UserQuery":        query,
		"SearchData":       searchData,
		"SelectedPolicies": string(selectedJSON),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", pipelineerrors.ErrComposition, err)
	}
	userText, err := c.prompts.Render(tmplResponseUser, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", pipelineerrors.ErrComposition, err)
	}

	resp, err := c.llm.Generate(ctx, &provider.GenerateRequest{
		Messages: []*message.Message{
			message.NewMessage(message.RoleSystem, systemText),
			message.NewMessage(message.RoleUser, userText),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", pipelineerrors.ErrComposition, err)
	}

	answer := resp.Message.Text()
	if answer == "" {
		return "", fmt.Errorf("%w: empty model response", pipelineerrors.ErrComposition)
	}

	c.logger.Info("response composed", "length", len(answer))
	return answer, nil
}

// Rejection returns the fixed out-of-scope refusal.
func (c *Composer) Rejection() string {
	return rejectionMessage
}

// Failure renders the user-facing report for a stage failure.
func (c *Composer) Failure(detail string) string {
	return errorMessage(detail)
}
