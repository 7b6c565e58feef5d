package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	pipelineerrors "github.com/youthlab/policyrag/errors"
	"github.com/youthlab/policyrag/message"
	"github.com/youthlab/policyrag/prompt"
	"github.com/youthlab/policyrag/provider"
)

// GeneratedSQL is the structured output of the synthesis call.
type GeneratedSQL struct {
	Query       string  `json:"sql_query"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
}

var sqlSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"sql_query": map[string]any{
			"type":        "string",
			"description": "생성된 PostgreSQL 쿼리",
		},
		"explanation": map[string]any{
			"type":        "string",
			"description": "쿼리 생성 근거 및 설명",
		},
		"confidence": map[string]any{
			"type":        "number",
			"minimum":     0.0,
			"maximum":     1.0,
			"description": "쿼리 생성 신뢰도 (0.0-1.0)",
		},
	},
	"required":             []string{"sql_query", "explanation", "confidence"},
	"additionalProperties": false,
}

// SchemaSource yields the rendered schema description for the synthesis
// prompt. Implemented by store.Store directly and by schemacache.Cache.
type SchemaSource interface {
	DescribeSchema(ctx context.Context) (string, error)
}

// Synthesizer turns an analyzed question into a guarded PostgreSQL statement.
type Synthesizer struct {
	llm            provider.LLMClient
	schema         SchemaSource
	prompts        *prompt.Manager
	logger         *slog.Logger
	topK           int
	perCategoryCap int
}

// NewSynthesizer creates a Synthesizer on the given model and schema source.
func NewSynthesizer(llm provider.LLMClient, schema SchemaSource, prompts *prompt.Manager,
	logger *slog.Logger, topK, perCategoryCap int) *Synthesizer {
	return &Synthesizer{
		llm:            llm,
		schema:         schema,
		prompts:        prompts,
		logger:         logger,
		topK:           topK,
		perCategoryCap: perCategoryCap,
	}
}

// Synthesize generates the statement and runs it through the guard. The
// returned statement is safe to hand to the executor.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, analysis *QueryAnalysis) (*GeneratedSQL, error) {
	schemaText, err := s.schema.DescribeSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSynthesis, err)
	}

	conditions, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSynthesis, err)
	}

	systemText, err := s.prompts.Render(tmplSQLSystem, map[string]any{
		"Schema":         schemaText,
		"Category":       string(analysis.Category),
		"Conditions":     string(conditions),
		"Age":            analysis.Age,
		"TopK":           s.topK,
		"PerCategoryCap": s.perCategoryCap,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSynthesis, err)
	}
	userText, err := s.prompts.Render(tmplSQLUser, map[string]any{"Query": query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSynthesis, err)
	}

	resp, err := s.llm.Generate(ctx, &provider.GenerateRequest{
		Messages: []*message.Message{
			message.NewMessage(message.RoleSystem, systemText),
			message.NewMessage(message.RoleUser, userText),
		},
		ResponseFormat: &provider.ResponseFormat{
			Name:   "sql_query_generation",
			Schema: sqlSchema,
			Strict: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSynthesis, err)
	}

	generated, err := decodeJSON[GeneratedSQL](resp.Message.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipelineerrors.ErrSynthesis, err)
	}

	if err := validateQuery(generated.Query); err != nil {
		s.logger.Warn("synthesized query rejected by guard",
			"error", err, "query", generated.Query)
		return nil, err
	}

	s.logger.Info("sql query synthesized",
		"confidence", generated.Confidence, "query", generated.Query)
	return generated, nil
}
