// Package orchestrator runs the analysis pipeline: the four stages in fixed
// order over one shared context, with partial-failure semantics.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/agent/insight"
	"github.com/codeready-toolchain/adaa/pkg/agent/profiler"
	"github.com/codeready-toolchain/adaa/pkg/agent/recommendation"
	"github.com/codeready-toolchain/adaa/pkg/agent/visualization"
	"github.com/codeready-toolchain/adaa/pkg/blob"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/metrics"
	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/telemetry"
)

// Stage outcomes used as metric labels.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

// Deps are the collaborators of one orchestrator.
type Deps struct {
	Config *config.AnalysisConfig
	Store  blob.Store

	// OnEvent receives every activity event after it has been recorded,
	// typically the event bridge. May be nil.
	OnEvent agent.EventCallback

	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	Logger  *slog.Logger

	// Agents overrides the default pipeline. Tests only.
	Agents []agent.Agent
}

// StageInfo describes one available stage.
type StageInfo struct {
	Stage       agent.Stage `json:"stage"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
}

// Orchestrator owns the agents of a single run. Build a new one per task.
type Orchestrator struct {
	agents  []agent.Agent
	onEvent agent.EventCallback
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	activities []models.ActivityEvent
}

// DefaultAgents builds the four pipeline agents in stage order.
func DefaultAgents(cfg *config.AnalysisConfig, store blob.Store) []agent.Agent {
	if cfg == nil {
		cfg = config.DefaultAnalysisConfig()
	}
	return []agent.Agent{
		profiler.New(cfg.Profiler),
		insight.New(cfg.Insight),
		visualization.New(cfg.Visualization, store),
		recommendation.New(cfg.Recommendation),
	}
}

// New creates an orchestrator.
func New(deps Deps) *Orchestrator {
	agents := deps.Agents
	if agents == nil {
		agents = DefaultAgents(deps.Config, deps.Store)
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		agents:  agents,
		onEvent: deps.OnEvent,
		metrics: deps.Metrics,
		tracer:  tracer,
		logger:  logger.With("component", "orchestrator"),
		now:     time.Now,
	}
	for _, a := range agents {
		a.SetEventCallback(o.record)
	}
	return o
}

// AvailableStages lists the stages this orchestrator can run, in order.
func (o *Orchestrator) AvailableStages() []StageInfo {
	out := make([]StageInfo, 0, len(o.agents))
	for _, a := range o.agents {
		out = append(out, StageInfo{Stage: a.Stage(), Name: a.Name(), Description: a.Description()})
	}
	return out
}

func (o *Orchestrator) record(e models.ActivityEvent) {
	o.mu.Lock()
	o.activities = append(o.activities, e)
	o.mu.Unlock()
	if o.onEvent != nil {
		o.onEvent(e)
	}
}

func (o *Orchestrator) takeActivities() []models.ActivityEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.activities
	o.activities = nil
	if out == nil {
		out = []models.ActivityEvent{}
	}
	return out
}

// Run executes every stage in order against a fresh context for ds. A failed
// stage leaves its section nil and the run continues; cancellation of ctx
// stops the run before the next stage starts.
func (o *Orchestrator) Run(ctx context.Context, taskID string, ds *dataset.Dataset) *models.AnalysisResult {
	return o.execute(ctx, agent.NewAnalysisContext(taskID, ds), o.agents)
}

// RunSingle re-runs one stage against an existing context, replacing that
// stage's section in the returned result. actx is not modified.
func (o *Orchestrator) RunSingle(ctx context.Context, stage agent.Stage, actx *agent.AnalysisContext) (*models.AnalysisResult, error) {
	for _, a := range o.agents {
		if a.Stage() == stage {
			return o.execute(ctx, actx.Without(stage), []agent.Agent{a}), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", agent.ErrUnknownStage, stage)
}

func (o *Orchestrator) execute(ctx context.Context, actx *agent.AnalysisContext, agents []agent.Agent) *models.AnalysisResult {
	start := o.now()
	log := o.logger.With("task_id", actx.TaskID)
	ctx, span := o.tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("adaa.task_id", actx.TaskID),
		attribute.Int("adaa.stages", len(agents)),
	))
	defer span.End()

	res := &models.AnalysisResult{
		TaskID:    actx.TaskID,
		StartedAt: start,
		Errors:    map[string]string{},
	}
	if actx.Dataset != nil {
		res.Dataset = actx.Dataset.Name
	}

	succeeded, failed, cancelled := 0, 0, false
	for _, a := range agents {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		outcome, err := o.runStage(ctx, a, actx)
		switch outcome {
		case outcomeCompleted:
			succeeded++
		case outcomeFailed:
			failed++
			res.Errors[string(a.Stage())] = err.Error()
			log.Warn("Stage failed, continuing", "stage", a.Stage(), "error", err)
		case outcomeCancelled:
			cancelled = true
		}
		if cancelled {
			break
		}
	}

	switch {
	case cancelled:
		res.Status = models.AnalysisCancelled
	case succeeded > 0:
		res.Status = models.AnalysisCompleted
	default:
		res.Status = models.AnalysisFailed
	}

	res.Profiler = actx.Profiler
	res.Insights = actx.Insights
	res.Visualizations = actx.Visualizations
	res.Recommendations = actx.Recommendations
	res.Activities = o.takeActivities()
	res.DurationSeconds = o.now().Sub(start).Seconds()
	res.Summary = Summarize(res, len(agents), succeeded, failed)
	if len(res.Errors) == 0 {
		res.Errors = nil
	}

	span.SetAttributes(attribute.String("adaa.status", string(res.Status)))
	if res.Status == models.AnalysisFailed {
		span.SetStatus(codes.Error, "all stages failed")
	}
	o.metrics.IncAnalysis(string(res.Status))
	log.Info("Analysis finished",
		"status", res.Status,
		"succeeded", succeeded,
		"failed", failed,
		"duration_seconds", res.DurationSeconds)
	return res
}

// runStage executes one agent inside a span and stores its section.
func (o *Orchestrator) runStage(ctx context.Context, a agent.Agent, actx *agent.AnalysisContext) (string, error) {
	ctx, span := o.tracer.Start(ctx, "analysis.stage."+string(a.Stage()), trace.WithAttributes(
		attribute.String("adaa.task_id", actx.TaskID),
		attribute.String("adaa.stage", string(a.Stage())),
		attribute.String("adaa.agent", a.Name()),
	))
	defer span.End()

	start := o.now()
	section, err := a.Execute(ctx, actx)
	if err == nil {
		// The result is persisted as JSON; a section that cannot be
		// encoded fails its stage instead of the whole analysis.
		if _, encErr := json.Marshal(section); encErr != nil {
			err = fmt.Errorf("failed to encode %s section: %w", a.Stage(), encErr)
		} else {
			err = actx.Set(a.Stage(), section)
		}
	}

	outcome := outcomeCompleted
	switch {
	case err == nil:
	case errors.Is(err, agent.ErrCancelled):
		outcome = outcomeCancelled
		span.SetStatus(codes.Error, "cancelled")
	default:
		outcome = outcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	o.metrics.ObserveStage(string(a.Stage()), outcome, o.now().Sub(start))
	return outcome, err
}
