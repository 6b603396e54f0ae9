package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition indicates a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid agent status transition")

	// ErrCancelled indicates the agent did not run because its context was cancelled.
	ErrCancelled = errors.New("agent cancelled")

	// ErrUnknownStage indicates a stage name outside the pipeline.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrSectionExists indicates a second write to an analysis context section.
	ErrSectionExists = errors.New("analysis context section already set")

	// ErrSectionType indicates a section value of the wrong type for its stage.
	ErrSectionType = errors.New("section type does not match stage")
)

// AgentExecutionError wraps an unrecoverable failure inside an agent.
type AgentExecutionError struct {
	AgentName string
	Err       error
}

// Error returns formatted error message
func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent %s failed: %v", e.AgentName, e.Err)
}

// Unwrap returns the underlying error
func (e *AgentExecutionError) Unwrap() error {
	return e.Err
}
