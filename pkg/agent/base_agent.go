package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/models"
)

// Emitter publishes an intermediate progress event from inside an agent's work.
type Emitter func(message string, detail map[string]any)

// WorkFunc is the stage-specific body run by BaseAgent.Run.
type WorkFunc func(ctx context.Context, emit Emitter) (any, error)

// BaseAgent provides the status machine and event emission common to all
// pipeline agents. Concrete agents embed it and call Run from Execute.
type BaseAgent struct {
	name        string
	stage       Stage
	description string

	mu       sync.Mutex
	status   models.AgentStatus
	callback EventCallback

	logger *slog.Logger
	now    func() time.Time
}

// NewBaseAgent creates an idle agent.
func NewBaseAgent(name string, stage Stage, description string) *BaseAgent {
	return &BaseAgent{
		name:        name,
		stage:       stage,
		description: description,
		status:      models.AgentStatusIdle,
		logger:      slog.Default().With("agent", name),
		now:         time.Now,
	}
}

// Name returns the agent name.
func (a *BaseAgent) Name() string { return a.name }

// Stage returns the section this agent produces.
func (a *BaseAgent) Stage() Stage { return a.stage }

// Description returns the human-readable description.
func (a *BaseAgent) Description() string { return a.description }

// Status returns the current status.
func (a *BaseAgent) Status() models.AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// SetEventCallback registers the activity event receiver.
func (a *BaseAgent) SetEventCallback(cb EventCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callback = cb
}

// Transition moves the status machine, rejecting illegal moves.
func (a *BaseAgent) Transition(to models.AgentStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !CanTransition(a.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.status, to)
	}
	a.status = to
	return nil
}

// Run executes work exactly once through idle → running → completed|failed
// (or idle → cancelled when ctx is already done), emitting a started event
// and one terminal event. A panic inside work is reported as a failure.
func (a *BaseAgent) Run(ctx context.Context, taskID string, work WorkFunc) (any, error) {
	a.mu.Lock()
	a.status = models.AgentStatusIdle
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		_ = a.Transition(models.AgentStatusCancelled)
		a.emit(taskID, models.ActionCancelled, "Cancelled before start", nil)
		return nil, fmt.Errorf("%s: %w", a.name, ErrCancelled)
	}

	if err := a.Transition(models.AgentStatusRunning); err != nil {
		return nil, &AgentExecutionError{AgentName: a.name, Err: err}
	}
	a.emit(taskID, models.ActionStarted, "Starting "+a.description, nil)

	start := a.now()
	emit := func(message string, detail map[string]any) {
		a.emit(taskID, models.ActionProgress, message, detail)
	}
	result, err := a.invoke(ctx, work, emit)
	duration := a.now().Sub(start).Seconds()

	if err == nil && result == nil {
		err = errors.New("agent returned no result")
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_ = a.Transition(models.AgentStatusCancelled)
			a.emit(taskID, models.ActionCancelled, "Cancelled", map[string]any{"duration_seconds": duration})
			return nil, fmt.Errorf("%s: %w: %w", a.name, ErrCancelled, err)
		}
		_ = a.Transition(models.AgentStatusFailed)
		a.emit(taskID, models.ActionFailed, "Failed: "+err.Error(), map[string]any{
			"duration_seconds": duration,
			"error":            err.Error(),
		})
		return nil, &AgentExecutionError{AgentName: a.name, Err: err}
	}

	_ = a.Transition(models.AgentStatusCompleted)
	a.emit(taskID, models.ActionCompleted, "Completed "+a.description, map[string]any{
		"duration_seconds": duration,
	})
	return result, nil
}

func (a *BaseAgent) invoke(ctx context.Context, work WorkFunc, emit Emitter) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return work(ctx, emit)
}

// emit builds an event and hands it to the callback. Callback failures never
// reach the agent.
func (a *BaseAgent) emit(taskID, action, message string, detail map[string]any) {
	a.mu.Lock()
	cb := a.callback
	status := a.status
	a.mu.Unlock()

	if cb == nil {
		return
	}

	event := models.ActivityEvent{
		TaskID:    taskID,
		AgentName: a.name,
		Action:    action,
		Message:   message,
		Timestamp: a.now().UTC(),
		Status:    status,
		Detail:    detail,
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("Event callback panicked", "action", action, "panic", r)
		}
	}()
	cb(event)
}
