// Package agent provides the execution framework shared by the analysis agents.
// Each pipeline agent runs one fixed stage, reads the sections produced by the
// stages before it and reports progress as ActivityEvents through a callback.
package agent

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/adaa/pkg/models"
)

// Stage identifies one step of the analysis pipeline. The set is closed:
// AllStages lists every value in execution order.
type Stage string

const (
	StageProfiler         Stage = "profiler"
	StageInsightDiscovery Stage = "insight_discovery"
	StageVisualization    Stage = "visualization"
	StageRecommendation   Stage = "recommendation"
)

// AllStages returns the pipeline stages in execution order.
func AllStages() []Stage {
	return []Stage{
		StageProfiler,
		StageInsightDiscovery,
		StageVisualization,
		StageRecommendation,
	}
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range AllStages() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
}

// Agent is one pipeline stage. Agents are built per orchestrator run and
// are not shared between runs.
type Agent interface {
	// Name is the agent's identifier in activity events (e.g. "data_profiler").
	Name() string

	// Stage is the context section this agent produces.
	Stage() Stage

	// Description is a short human-readable summary used in event messages.
	Description() string

	// Status returns the current lifecycle state.
	Status() models.AgentStatus

	// SetEventCallback registers the receiver of this agent's activity events.
	// Must be called before Execute.
	SetEventCallback(cb EventCallback)

	// Execute runs the stage against the accumulated context and returns the
	// section for Stage(). The agent does not write into actx itself.
	// Errors are *AgentExecutionError, or wrap ErrCancelled when ctx was
	// cancelled before the stage started.
	Execute(ctx context.Context, actx *AnalysisContext) (any, error)
}

// EventCallback receives activity events synchronously, in emission order.
type EventCallback func(event models.ActivityEvent)

// CanTransition reports whether the status machine allows from → to.
func CanTransition(from, to models.AgentStatus) bool {
	switch from {
	case models.AgentStatusIdle:
		return to == models.AgentStatusRunning || to == models.AgentStatusCancelled
	case models.AgentStatusRunning:
		return to == models.AgentStatusCompleted ||
			to == models.AgentStatusFailed ||
			to == models.AgentStatusCancelled
	default:
		return false
	}
}
