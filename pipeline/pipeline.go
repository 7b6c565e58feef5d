package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/youthlab/policyrag/config"
	"github.com/youthlab/policyrag/graph"
	"github.com/youthlab/policyrag/history"
	"github.com/youthlab/policyrag/message"
	"github.com/youthlab/policyrag/pkg/logging"
	"github.com/youthlab/policyrag/pkg/telemetry"
	"github.com/youthlab/policyrag/policy"
	"github.com/youthlab/policyrag/provider"
	"github.com/youthlab/policyrag/store"
	"github.com/youthlab/policyrag/tokens"
)

// Node names in the execution graph.
const (
	nodeAnalyze = "analyze_query"
	nodeRoute   = "route_after_analysis"
	nodeSQL     = "generate_sql_query"
	nodeRespond = "generate_response"
	nodeReject  = "reject_query"
)

// Executor runs a guarded statement against the policy store. Implemented by
// store.Store.
type Executor interface {
	Execute(ctx context.Context, query string) (*store.ResultSet, error)
}

// Result is what one pipeline run yields. Response is always populated, also
// on the refusal and failure paths.
type Result struct {
	Response           string
	Messages           []*message.Message
	Query              string
	Analysis           *QueryAnalysis
	GeneratedSQL       string
	SQLExplanation     string
	Rows               []map[string]any
	RowCount           int
	Selected           []policy.SelectedPolicy
	SelectionReasoning string
	Rejected           bool
	Err                string
	Timestamp          time.Time
}

// Pipeline orchestrates the full question answering flow.
type Pipeline struct {
	cfg *config.Config

	analyzer    *Analyzer
	synthesizer *Synthesizer
	selector    *Selector
	composer    *Composer
	executor    Executor

	history history.Store
	graph   *graph.Graph
	logger  *slog.Logger
}

// New assembles the pipeline. The thinking model handles the structured calls
// (analysis, synthesis, selection); the chat model composes the final answer.
func New(cfg *config.Config, thinking, chat provider.LLMClient, schema SchemaSource,
	executor Executor, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts, err := newPromptManager()
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt corpus: %w", err)
	}

	logger := logging.WithComponent("pipeline")
	budgeter := tokens.NewBudgeter(tokens.NewCounter(cfg.ThinkingLLM.Model), cfg.RowTokenBudget)

	p := &Pipeline{
		cfg:         cfg,
		analyzer:    NewAnalyzer(thinking, prompts, logger),
		synthesizer: NewSynthesizer(thinking, schema, prompts, logger, cfg.TopK, cfg.PerCategoryCap),
		selector:    NewSelector(thinking, prompts, budgeter, logger, cfg.MaxSelected),
		composer:    NewComposer(chat, prompts, budgeter, logger),
		executor:    executor,
		history:     history.Noop{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.graph = p.buildGraph()
	return p, nil
}

// buildGraph wires the topology: analysis, then one conditional branch into
// either the search-and-answer path or the refusal path.
func (p *Pipeline) buildGraph() *graph.Graph {
	return graph.NewBuilder().
		AddNode(nodeAnalyze, graph.NodeTypeLLM, p.analyzeNode).
		AddConditionNode(nodeRoute, p.routeNode, map[string]string{
			branchContinue: nodeSQL,
			branchReject:   nodeReject,
		}).
		AddNode(nodeSQL, graph.NodeTypeLLM, p.sqlNode).
		AddNode(nodeRespond, graph.NodeTypeEnd, p.respondNode).
		AddNode(nodeReject, graph.NodeTypeEnd, p.rejectNode).
		AddEdge(nodeAnalyze, nodeRoute).
		AddEdge(nodeSQL, nodeRespond).
		SetStart(nodeAnalyze).
		Build()
}

// Run processes one conversation turn. The returned Result always carries a
// user-facing Response; stage failures are folded into it rather than
// propagated. The error return is reserved for infrastructure-level failures
// such as context cancellation, and even then the Result is usable.
func (p *Pipeline) Run(ctx context.Context, sessionID string, messages []*message.Message) (*Result, error) {
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.run")

	state := &State{
		Messages:  message.CloneMessages(messages),
		Timestamp: time.Now().UTC(),
	}

	out, err := p.graph.Execute(ctx, state.into(nil))
	var final *State
	if err != nil {
		p.logger.Error("pipeline execution failed", "error", err)
		final = state
		final.Err = err.Error()
		final.FinalResponse = p.composer.Failure(err.Error())
	} else {
		final = stateFrom(out)
	}
	telemetry.End(span, err)

	result := p.resultFrom(final)
	p.record(ctx, sessionID, result)
	return result, err
}

func (p *Pipeline) resultFrom(s *State) *Result {
	messages := s.Messages
	if s.FinalResponse != "" {
		messages = append(messages, message.NewMessage(message.RoleAssistant, s.FinalResponse))
	}
	return &Result{
		Response:           s.FinalResponse,
		Messages:           messages,
		Query:              s.Query,
		Analysis:           s.Analysis,
		GeneratedSQL:       s.GeneratedSQL,
		SQLExplanation:     s.SQLExplanation,
		Rows:               s.Rows,
		RowCount:           s.RowCount,
		Selected:           s.Selected,
		SelectionReasoning: s.SelectionReasoning,
		Rejected:           s.Rejected,
		Err:                s.Err,
		Timestamp:          s.Timestamp,
	}
}

// record persists the completed turn. History failures are logged, never
// surfaced; the user already has an answer.
func (p *Pipeline) record(ctx context.Context, sessionID string, result *Result) {
	rec := &history.Record{
		SessionID: sessionID,
		Query:     result.Query,
		Response:  result.Response,
		SQL:       result.GeneratedSQL,
		RowCount:  result.RowCount,
		Rejected:  result.Rejected,
		Error:     result.Err,
		Metadata:  map[string]any{"prompt_version": promptVersion},
		CreatedAt: result.Timestamp,
	}
	if result.Analysis != nil {
		rec.Category = string(result.Analysis.Category)
	}
	for _, sp := range result.Selected {
		rec.Policies = append(rec.Policies, sp.PolicyNo)
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.history.Save(saveCtx, rec); err != nil {
		p.logger.Warn("failed to record history", "error", err)
	}
}

// analyzeNode runs classification and condition extraction. Failures are
// recorded in state; routing sends them down the refusal path.
func (p *Pipeline) analyzeNode(ctx context.Context, gs graph.State) (graph.State, error) {
	s := stateFrom(gs)
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.analyze")

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.ModelTimeout)
	defer cancel()

	query, analysis, err := p.analyzer.Analyze(callCtx, s.Messages)
	s.Query = query
	if err != nil {
		p.logger.Error("query analysis failed", "error", err)
		s.Err = fmt.Sprintf(errFmtAnalysis, err.Error())
	} else {
		s.Analysis = analysis
	}

	telemetry.End(span, err)
	return s.into(gs), nil
}

// routeNode is the single conditional branch.
func (p *Pipeline) routeNode(ctx context.Context, gs graph.State) (string, error) {
	s := stateFrom(gs)
	branch := route(s)
	if branch == branchContinue {
		p.logger.Info("query approved",
			"category", s.Analysis.Category,
			"classification_confidence", s.Analysis.ClassificationConfidence)
	} else if s.Analysis != nil {
		p.logger.Info("query rejected",
			"category", s.Analysis.Category,
			"classification_confidence", s.Analysis.ClassificationConfidence)
	}
	return branch, nil
}

// sqlNode synthesizes, guards and executes the search statement.
func (p *Pipeline) sqlNode(ctx context.Context, gs graph.State) (graph.State, error) {
	s := stateFrom(gs)
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.search")

	err := p.search(ctx, s)
	if err != nil {
		p.logger.Error("policy search failed", "error", err)
		s.Err = fmt.Sprintf(errFmtSearch, err.Error())
	}

	telemetry.End(span, err)
	return s.into(gs), nil
}

func (p *Pipeline) search(ctx context.Context, s *State) error {
	modelCtx, cancel := context.WithTimeout(ctx, p.cfg.ModelTimeout)
	defer cancel()

	generated, err := p.synthesizer.Synthesize(modelCtx, s.Query, s.Analysis)
	if err != nil {
		return err
	}
	s.GeneratedSQL = generated.Query
	s.SQLExplanation = generated.Explanation

	queryCtx, cancel := context.WithTimeout(ctx, p.cfg.QueryTimeout)
	defer cancel()

	rs, err := p.executor.Execute(queryCtx, generated.Query)
	if err != nil {
		return err
	}

	s.Rows = policy.FilterRows(rs.Rows)
	s.RowCount = rs.RowCount
	p.logger.Info("policy search complete", "rows", rs.RowCount)
	return nil
}

// respondNode composes the final answer, or reports an earlier failure.
func (p *Pipeline) respondNode(ctx context.Context, gs graph.State) (graph.State, error) {
	s := stateFrom(gs)
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.respond")

	// A search failure reaches this node with Err set; the recorded message
	// is the answer.
	if s.Err != "" {
		s.FinalResponse = s.Err
		telemetry.End(span, nil)
		return s.into(gs), nil
	}

	err := p.respond(ctx, s)
	if err != nil {
		p.logger.Error("response generation failed", "error", err)
		s.Err = fmt.Sprintf(errFmtComposition, err.Error())
		s.FinalResponse = s.Err
	}

	telemetry.End(span, err)
	return s.into(gs), nil
}

func (p *Pipeline) respond(ctx context.Context, s *State) error {
	selectCtx, cancel := context.WithTimeout(ctx, p.cfg.ModelTimeout)
	defer cancel()

	selection, err := p.selector.Select(selectCtx, s.Query, s.Analysis, s.Rows)
	if err != nil {
		return err
	}
	s.Selected = selection.SelectedPolicies
	s.SelectionReasoning = selection.SelectionReasoning

	composeCtx, cancel := context.WithTimeout(ctx, p.cfg.ModelTimeout)
	defer cancel()

	answer, err := p.composer.Compose(composeCtx, s.Query, s.Analysis, s.Rows, s.Selected)
	if err != nil {
		return err
	}
	s.FinalResponse = answer
	return nil
}

// rejectNode terminates the refusal path with deterministic text.
func (p *Pipeline) rejectNode(ctx context.Context, gs graph.State) (graph.State, error) {
	s := stateFrom(gs)
	s.Rejected = true
	if s.Err != "" {
		s.FinalResponse = p.composer.Failure(s.Err)
	} else {
		s.FinalResponse = p.composer.Rejection()
	}
	p.logger.Info("query refused", "had_error", s.Err != "")
	return s.into(gs), nil
}
