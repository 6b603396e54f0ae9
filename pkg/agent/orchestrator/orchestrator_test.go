package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/blob"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/metrics"
	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/stats"
)

// stubAgent runs a fixed function through the shared BaseAgent machinery.
type stubAgent struct {
	*agent.BaseAgent
	work func(ctx context.Context, actx *agent.AnalysisContext) (any, error)
}

func newStub(stage agent.Stage, work func(ctx context.Context, actx *agent.AnalysisContext) (any, error)) *stubAgent {
	return &stubAgent{
		BaseAgent: agent.NewBaseAgent("stub_"+string(stage), stage, "stub "+string(stage)),
		work:      work,
	}
}

func (s *stubAgent) Execute(ctx context.Context, actx *agent.AnalysisContext) (any, error) {
	return s.Run(ctx, actx.TaskID, func(ctx context.Context, _ agent.Emitter) (any, error) {
		return s.work(ctx, actx)
	})
}

func failing(stage agent.Stage) *stubAgent {
	return newStub(stage, func(context.Context, *agent.AnalysisContext) (any, error) {
		return nil, errors.New("boom")
	})
}

func testDataset() *dataset.Dataset {
	x := make([]string, 30)
	y := make([]string, 30)
	city := make([]string, 30)
	for i := range x {
		x[i] = fmt.Sprint(i)
		y[i] = fmt.Sprint(3*i + 2)
		city[i] = "NY"
		if i%5 == 0 {
			city[i] = "LA"
		}
	}
	y[7] = ""
	return dataset.MustFromColumns("sales.csv",
		dataset.NewColumn("x", x...),
		dataset.NewColumn("y", y...),
		dataset.NewColumn("city", city...),
	)
}

func TestRun_FullPipeline(t *testing.T) {
	store := blob.NewMemoryStore()
	var mu sync.Mutex
	var forwarded []models.ActivityEvent
	o := New(Deps{
		Config: config.DefaultAnalysisConfig(),
		Store:  store,
		OnEvent: func(e models.ActivityEvent) {
			mu.Lock()
			forwarded = append(forwarded, e)
			mu.Unlock()
		},
	})

	res := o.Run(context.Background(), "task-1", testDataset())

	assert.Equal(t, models.AnalysisCompleted, res.Status)
	assert.Equal(t, "task-1", res.TaskID)
	assert.Equal(t, "sales.csv", res.Dataset)
	require.NotNil(t, res.Profiler)
	require.NotNil(t, res.Insights)
	require.NotNil(t, res.Visualizations)
	require.NotNil(t, res.Recommendations)
	assert.Nil(t, res.Errors)

	s := res.Summary
	assert.Equal(t, 4, s.TotalAgents)
	assert.Equal(t, 4, s.SuccessfulAgents)
	assert.Equal(t, 0, s.FailedAgents)
	require.NotNil(t, s.DataQualityScore)
	assert.Equal(t, res.Profiler.QualityScore, *s.DataQualityScore)
	assert.Equal(t, len(res.Insights.Insights), s.InsightsFound)
	assert.GreaterOrEqual(t, s.CorrelationsFound, 1)
	assert.Equal(t, len(res.Visualizations.Charts), s.ChartsGenerated)
	assert.Equal(t, store.Len(), s.ChartsGenerated)
	assert.Equal(t, len(res.Recommendations.Recommendations), s.RecommendationsCount)

	assert.Equal(t, len(res.Activities), s.TotalActivities)
	assert.Equal(t, res.Activities, forwarded)
	assert.Equal(t, models.ActionStarted, res.Activities[0].Action)
	assert.Equal(t, "data_profiler", res.Activities[0].AgentName)
	last := res.Activities[len(res.Activities)-1]
	assert.Equal(t, "recommendation", last.AgentName)
	assert.Equal(t, models.ActionCompleted, last.Action)
}

func TestRun_IsDeterministic(t *testing.T) {
	ds := testDataset()
	a := New(Deps{Store: blob.NewMemoryStore()}).Run(context.Background(), "t", ds)
	b := New(Deps{Store: blob.NewMemoryStore()}).Run(context.Background(), "t", ds)

	assert.Equal(t, a.Profiler, b.Profiler)
	assert.Equal(t, a.Insights, b.Insights)
	assert.Equal(t, a.Visualizations, b.Visualizations)
	assert.Equal(t, a.Recommendations, b.Recommendations)
}

func TestRun_PartialFailureContinues(t *testing.T) {
	cfg := config.DefaultAnalysisConfig()
	agents := DefaultAgents(cfg, blob.NewMemoryStore())
	agents[0] = failing(agent.StageProfiler)
	o := New(Deps{Agents: agents})

	res := o.Run(context.Background(), "task-1", testDataset())

	assert.Equal(t, models.AnalysisCompleted, res.Status)
	assert.Nil(t, res.Profiler)
	require.NotNil(t, res.Insights, "insight discovery works on raw data")
	assert.NotEmpty(t, res.Insights.Insights)
	assert.NotNil(t, res.Visualizations)
	assert.NotNil(t, res.Recommendations)
	assert.Contains(t, res.Errors[string(agent.StageProfiler)], "boom")
	assert.Equal(t, 3, res.Summary.SuccessfulAgents)
	assert.Equal(t, 1, res.Summary.FailedAgents)
	assert.Equal(t, []string{"profiler"}, res.Summary.FailedStages)
	assert.Nil(t, res.Summary.DataQualityScore)
}

func TestRun_LargeValuesProduceEncodableResult(t *testing.T) {
	x := make([]string, 30)
	big := make([]string, 30)
	for i := range x {
		x[i] = fmt.Sprint(i)
		big[i] = fmt.Sprintf("%g", 1e308+float64(i%7)*1e307)
	}
	ds := dataset.MustFromColumns("huge.csv",
		dataset.NewColumn("x", x...),
		dataset.NewColumn("big", big...),
	)

	res := New(Deps{Store: blob.NewMemoryStore()}).Run(context.Background(), "task-1", ds)

	assert.Equal(t, models.AnalysisCompleted, res.Status)
	assert.Nil(t, res.Errors)
	require.NotNil(t, res.Profiler)
	st, ok := res.Profiler.Statistics["big"]
	require.True(t, ok)
	assert.False(t, math.IsInf(st.Mean, 0))
	assert.False(t, math.IsInf(st.Std, 0))

	_, err := json.Marshal(res)
	assert.NoError(t, err)
}

func TestRun_UnencodableSectionFailsOnlyItsStage(t *testing.T) {
	agents := DefaultAgents(config.DefaultAnalysisConfig(), blob.NewMemoryStore())
	agents[0] = newStub(agent.StageProfiler, func(context.Context, *agent.AnalysisContext) (any, error) {
		return &models.ProfilerResult{
			Statistics: map[string]models.ColumnStatistics{
				"x": {Summary: stats.Summary{Mean: math.Inf(1)}},
			},
		}, nil
	})

	res := New(Deps{Agents: agents}).Run(context.Background(), "task-1", testDataset())

	assert.Equal(t, models.AnalysisCompleted, res.Status)
	assert.Nil(t, res.Profiler)
	assert.Contains(t, res.Errors[string(agent.StageProfiler)], "failed to encode profiler section")
	assert.NotNil(t, res.Insights)

	_, err := json.Marshal(res)
	assert.NoError(t, err)
}

func TestRun_AllStagesFailed(t *testing.T) {
	o := New(Deps{Agents: []agent.Agent{
		failing(agent.StageProfiler),
		failing(agent.StageInsightDiscovery),
		failing(agent.StageVisualization),
		failing(agent.StageRecommendation),
	}})

	res := o.Run(context.Background(), "task-1", testDataset())

	assert.Equal(t, models.AnalysisFailed, res.Status)
	assert.Len(t, res.Errors, 4)
	assert.Equal(t, []string{"profiler", "insight_discovery", "visualization", "recommendation"}, res.Summary.FailedStages)
}

func TestRun_CancellationStopsBeforeNextStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := map[agent.Stage]bool{}
	mark := func(stage agent.Stage, cancelAfter bool) *stubAgent {
		return newStub(stage, func(context.Context, *agent.AnalysisContext) (any, error) {
			ran[stage] = true
			if cancelAfter {
				cancel()
			}
			return sectionFor(stage), nil
		})
	}
	o := New(Deps{Agents: []agent.Agent{
		mark(agent.StageProfiler, false),
		mark(agent.StageInsightDiscovery, true),
		mark(agent.StageVisualization, false),
		mark(agent.StageRecommendation, false),
	}})

	res := o.Run(ctx, "task-1", testDataset())

	assert.Equal(t, models.AnalysisCancelled, res.Status)
	assert.True(t, ran[agent.StageProfiler])
	assert.True(t, ran[agent.StageInsightDiscovery])
	assert.False(t, ran[agent.StageVisualization])
	assert.False(t, ran[agent.StageRecommendation])
	assert.NotNil(t, res.Insights, "a stage that finished before cancellation keeps its section")
	assert.Equal(t, 2, res.Summary.SuccessfulAgents)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(Deps{Store: blob.NewMemoryStore()}).Run(ctx, "task-1", testDataset())

	assert.Equal(t, models.AnalysisCancelled, res.Status)
	assert.Nil(t, res.Profiler)
	assert.Empty(t, res.Activities)
}

func TestRun_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.MustNew(reg)
	o := New(Deps{Store: blob.NewMemoryStore(), Metrics: m})

	o.Run(context.Background(), "task-1", testDataset())

	count, err := testutil.GatherAndCount(reg, "adaa_pipeline_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, count, "one completed series per stage")
	n, err := testutil.GatherAndCount(reg, "adaa_pipeline_analyses_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunSingle(t *testing.T) {
	store := blob.NewMemoryStore()
	o := New(Deps{Store: store})
	ds := testDataset()
	full := o.Run(context.Background(), "task-1", ds)
	require.Equal(t, models.AnalysisCompleted, full.Status)

	actx := agent.FromResult(ds, full)
	res, err := New(Deps{Store: store}).RunSingle(context.Background(), agent.StageRecommendation, actx)
	require.NoError(t, err)

	assert.Equal(t, models.AnalysisCompleted, res.Status)
	assert.Equal(t, full.Recommendations, res.Recommendations)
	assert.Equal(t, full.Profiler, res.Profiler, "other sections are carried over")
	assert.Equal(t, 1, res.Summary.TotalAgents)
	for _, e := range res.Activities {
		assert.Equal(t, "recommendation", e.AgentName)
	}
	assert.Same(t, full.Recommendations, actx.Recommendations, "the input context is not modified")

	_, err = o.RunSingle(context.Background(), agent.Stage("nope"), actx)
	assert.ErrorIs(t, err, agent.ErrUnknownStage)
}

func TestMergeStage(t *testing.T) {
	store := blob.NewMemoryStore()
	ds := testDataset()
	stored := New(Deps{Store: store}).Run(context.Background(), "task-1", ds)
	require.Equal(t, models.AnalysisCompleted, stored.Status)
	require.Empty(t, stored.Errors)

	t.Run("failed re-run replaces the section", func(t *testing.T) {
		o := New(Deps{Agents: []agent.Agent{failing(agent.StageRecommendation)}})
		rerun, err := o.RunSingle(context.Background(), agent.StageRecommendation, agent.FromResult(ds, stored))
		require.NoError(t, err)

		merged := MergeStage(stored, rerun, agent.StageRecommendation)

		assert.Equal(t, models.AnalysisCompleted, merged.Status)
		assert.Nil(t, merged.Recommendations)
		assert.Equal(t, stored.Profiler, merged.Profiler)
		assert.Contains(t, merged.Errors["recommendation"], "boom")
		assert.Equal(t, 4, merged.Summary.TotalAgents)
		assert.Equal(t, 3, merged.Summary.SuccessfulAgents)
		assert.Equal(t, []string{"recommendation"}, merged.Summary.FailedStages)
		assert.Len(t, merged.Activities, len(stored.Activities)+len(rerun.Activities))
		assert.Nil(t, stored.Errors, "the stored result is not modified")

		t.Run("successful re-run clears the error", func(t *testing.T) {
			again, err := New(Deps{Store: store}).RunSingle(context.Background(), agent.StageRecommendation, agent.FromResult(ds, merged))
			require.NoError(t, err)

			fixed := MergeStage(merged, again, agent.StageRecommendation)

			assert.Nil(t, fixed.Errors)
			assert.NotNil(t, fixed.Recommendations)
			assert.Equal(t, 4, fixed.Summary.SuccessfulAgents)
			assert.Empty(t, fixed.Summary.FailedStages)
		})
	})
}

func TestAvailableStages(t *testing.T) {
	stages := New(Deps{Store: blob.NewMemoryStore()}).AvailableStages()

	require.Len(t, stages, 4)
	for i, st := range agent.AllStages() {
		assert.Equal(t, st, stages[i].Stage)
		assert.NotEmpty(t, stages[i].Name)
		assert.NotEmpty(t, stages[i].Description)
	}
}

func sectionFor(stage agent.Stage) any {
	switch stage {
	case agent.StageProfiler:
		return &models.ProfilerResult{}
	case agent.StageInsightDiscovery:
		return &models.InsightResult{}
	case agent.StageVisualization:
		return &models.VisualizationResult{}
	default:
		return &models.RecommendationResult{}
	}
}
