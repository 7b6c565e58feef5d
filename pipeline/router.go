package pipeline

// Branch labels returned by the routing decision.
const (
	branchContinue = "continue"
	branchReject   = "reject"
)

// route decides whether the pipeline proceeds to query synthesis or falls
// through to the refusal path. Pure function of the state: any earlier
// failure, a missing analysis, or an unsupported category all reject. The
// classification confidence is deliberately not consulted; the category set
// alone decides.
func route(s *State) string {
	if s.Err != "" {
		return branchReject
	}
	if s.Analysis == nil {
		return branchReject
	}
	if s.Analysis.Category.Supported() {
		return branchContinue
	}
	return branchReject
}
