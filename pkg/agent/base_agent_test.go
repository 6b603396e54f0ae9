package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/adaa/pkg/models"
)

// recorder collects emitted events.
type recorder struct {
	events []models.ActivityEvent
}

func (r *recorder) callback(e models.ActivityEvent) {
	r.events = append(r.events, e)
}

func (r *recorder) actions() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.AgentStatus
		want     bool
	}{
		{models.AgentStatusIdle, models.AgentStatusRunning, true},
		{models.AgentStatusIdle, models.AgentStatusCancelled, true},
		{models.AgentStatusIdle, models.AgentStatusCompleted, false},
		{models.AgentStatusRunning, models.AgentStatusCompleted, true},
		{models.AgentStatusRunning, models.AgentStatusFailed, true},
		{models.AgentStatusRunning, models.AgentStatusCancelled, true},
		{models.AgentStatusRunning, models.AgentStatusIdle, false},
		{models.AgentStatusCompleted, models.AgentStatusRunning, false},
		{models.AgentStatusFailed, models.AgentStatusRunning, false},
		{models.AgentStatusCancelled, models.AgentStatusRunning, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestBaseAgent_Transition(t *testing.T) {
	a := NewBaseAgent("test", StageProfiler, "testing")

	require.NoError(t, a.Transition(models.AgentStatusRunning))
	require.NoError(t, a.Transition(models.AgentStatusCompleted))

	err := a.Transition(models.AgentStatusRunning)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.AgentStatusCompleted, a.Status())
}

func TestBaseAgent_Run(t *testing.T) {
	t.Run("success emits started, progress and completed in order", func(t *testing.T) {
		rec := &recorder{}
		a := NewBaseAgent("data_profiler", StageProfiler, "data profiling")
		a.SetEventCallback(rec.callback)

		result, err := a.Run(context.Background(), "task-1", func(ctx context.Context, emit Emitter) (any, error) {
			emit("halfway", map[string]any{"columns": 2})
			return "section", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "section", result)
		assert.Equal(t, models.AgentStatusCompleted, a.Status())
		assert.Equal(t, []string{models.ActionStarted, models.ActionProgress, models.ActionCompleted}, rec.actions())

		assert.Equal(t, "Starting data profiling", rec.events[0].Message)
		assert.Equal(t, models.AgentStatusRunning, rec.events[0].Status)
		assert.Equal(t, "task-1", rec.events[0].TaskID)
		assert.Equal(t, "data_profiler", rec.events[0].AgentName)
		assert.Equal(t, 2, rec.events[1].Detail["columns"])
		assert.Equal(t, models.AgentStatusCompleted, rec.events[2].Status)
		assert.Contains(t, rec.events[2].Detail, "duration_seconds")
	})

	t.Run("failure wraps the error with the agent name", func(t *testing.T) {
		rec := &recorder{}
		a := NewBaseAgent("insight_discovery", StageInsightDiscovery, "insight discovery")
		a.SetEventCallback(rec.callback)
		boom := errors.New("boom")

		_, err := a.Run(context.Background(), "task-1", func(ctx context.Context, emit Emitter) (any, error) {
			return nil, boom
		})

		var execErr *AgentExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "insight_discovery", execErr.AgentName)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, models.AgentStatusFailed, a.Status())
		assert.Equal(t, []string{models.ActionStarted, models.ActionFailed}, rec.actions())
		assert.Equal(t, "Failed: boom", rec.events[1].Message)
	})

	t.Run("panic in work becomes a failure", func(t *testing.T) {
		a := NewBaseAgent("visualization", StageVisualization, "visualization")

		_, err := a.Run(context.Background(), "task-1", func(ctx context.Context, emit Emitter) (any, error) {
			panic("index out of range")
		})

		var execErr *AgentExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, err.Error(), "index out of range")
		assert.Equal(t, models.AgentStatusFailed, a.Status())
	})

	t.Run("nil result is a failure", func(t *testing.T) {
		a := NewBaseAgent("recommendation", StageRecommendation, "recommendations")

		_, err := a.Run(context.Background(), "task-1", func(ctx context.Context, emit Emitter) (any, error) {
			return nil, nil
		})

		require.Error(t, err)
		assert.Equal(t, models.AgentStatusFailed, a.Status())
	})

	t.Run("cancelled context never starts the work", func(t *testing.T) {
		rec := &recorder{}
		a := NewBaseAgent("data_profiler", StageProfiler, "data profiling")
		a.SetEventCallback(rec.callback)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		_, err := a.Run(ctx, "task-1", func(ctx context.Context, emit Emitter) (any, error) {
			called = true
			return "x", nil
		})

		assert.ErrorIs(t, err, ErrCancelled)
		assert.False(t, called)
		assert.Equal(t, models.AgentStatusCancelled, a.Status())
		assert.Equal(t, []string{models.ActionCancelled}, rec.actions())
	})

	t.Run("panicking callback does not reach the agent", func(t *testing.T) {
		a := NewBaseAgent("data_profiler", StageProfiler, "data profiling")
		a.SetEventCallback(func(models.ActivityEvent) { panic("publisher exploded") })

		result, err := a.Run(context.Background(), "task-1", func(ctx context.Context, emit Emitter) (any, error) {
			emit("progress", nil)
			return 1, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, result)
		assert.Equal(t, models.AgentStatusCompleted, a.Status())
	})

	t.Run("agent can run again after a terminal state", func(t *testing.T) {
		a := NewBaseAgent("data_profiler", StageProfiler, "data profiling")
		work := func(ctx context.Context, emit Emitter) (any, error) { return 1, nil }

		_, err := a.Run(context.Background(), "t", work)
		require.NoError(t, err)
		_, err = a.Run(context.Background(), "t", work)
		require.NoError(t, err)
		assert.Equal(t, models.AgentStatusCompleted, a.Status())
	})
}
