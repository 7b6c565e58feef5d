// Package pipeline implements the youth-policy question answering flow:
// analyze the question, route in-scope questions through SQL synthesis,
// execution, policy selection and response composition, and answer
// out-of-scope questions with a fixed refusal.
package pipeline

import (
	"time"

	"github.com/youthlab/policyrag/graph"
	"github.com/youthlab/policyrag/message"
	"github.com/youthlab/policyrag/policy"
)

// stateKey is the single graph.State slot holding the typed pipeline state.
const stateKey = "pipeline_state"

// State is the typed value threaded through the graph nodes. Stages populate
// their own fields and read what earlier stages wrote; a stage failure sets
// Err and the remaining nodes degrade to error reporting.
type State struct {
	// Messages is the conversation, newest last.
	Messages []*message.Message

	// Query is the last user message, set by the analysis stage.
	Query string

	// Analysis is the classification and condition extraction result.
	Analysis *QueryAnalysis

	// GeneratedSQL is the synthesized statement after guard approval.
	GeneratedSQL string
	// SQLExplanation is the model's own account of the statement.
	SQLExplanation string

	// Rows is the executed result set with restricted columns removed.
	Rows []map[string]any
	// RowCount is the size of Rows before any token-budget truncation.
	RowCount int

	// Selected is the policy shortlist, relevance order.
	Selected []policy.SelectedPolicy
	// SelectionReasoning is the selector's stated rationale.
	SelectionReasoning string

	// FinalResponse is the user-facing answer text. Always set by the time
	// the graph reaches an end node, even on failure.
	FinalResponse string

	// Rejected marks the refusal path (out-of-scope category).
	Rejected bool

	// Err is the stage failure, already formatted for the user.
	Err string

	// Timestamp is when processing started.
	Timestamp time.Time
}

func stateFrom(gs graph.State) *State {
	if s, ok := gs[stateKey].(*State); ok {
		return s
	}
	return &State{}
}

func (s *State) into(gs graph.State) graph.State {
	if gs == nil {
		gs = make(graph.State)
	}
	gs[stateKey] = s
	return gs
}
