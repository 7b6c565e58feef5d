package errors

import "errors"

// Sentinel errors for the pipeline stage failure taxonomy. Every stage wraps
// its underlying failure with one of these so callers can branch on the stage
// that failed while keeping the original diagnostic text.
var (
	// ErrMissingInput indicates no user message was found in the request
	ErrMissingInput = errors.New("no user message found")

	// ErrClassification indicates the analysis model call failed or returned
	// an output that does not satisfy the structured contract
	ErrClassification = errors.New("query analysis failed")

	// ErrSynthesis indicates the model failed to produce a structured query
	ErrSynthesis = errors.New("query synthesis failed")

	// ErrUnsafeQuery indicates the synthesized query was rejected by the guard
	ErrUnsafeQuery = errors.New("synthesized query rejected")

	// ErrExecution indicates the database rejected or errored on the statement
	ErrExecution = errors.New("query execution failed")

	// ErrSelection indicates the policy selection model call failed
	ErrSelection = errors.New("policy selection failed")

	// ErrComposition indicates the final response model call failed
	ErrComposition = errors.New("response generation failed")
)
