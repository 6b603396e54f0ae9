// Package insight implements the insight discovery stage: correlations,
// trends, anomalies and distribution patterns over the profiled columns.
package insight

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

// Name is the agent name reported in activity events.
const Name = "insight_discovery"

// ErrNoDataset is returned when the analysis context carries no dataset.
var ErrNoDataset = errors.New("no dataset to analyse")

// Agent is the insight discovery stage.
type Agent struct {
	*agent.BaseAgent
	cfg config.InsightConfig
}

// New creates an insight discovery agent.
func New(cfg config.InsightConfig) *Agent {
	return &Agent{
		BaseAgent: agent.NewBaseAgent(Name, agent.StageInsightDiscovery, "insight discovery"),
		cfg:       cfg,
	}
}

// Execute discovers insights and returns a *models.InsightResult.
func (a *Agent) Execute(ctx context.Context, actx *agent.AnalysisContext) (any, error) {
	return a.Run(ctx, actx.TaskID, func(ctx context.Context, emit agent.Emitter) (any, error) {
		if actx.Dataset == nil {
			return nil, ErrNoDataset
		}
		return Discover(ctx, actx.Dataset, actx.Profiler, a.cfg, emit)
	})
}

// Discover runs every detector over ds. profile may be nil, in which case
// column types are re-inferred from the raw values.
func Discover(ctx context.Context, ds *dataset.Dataset, profile *models.ProfilerResult, cfg config.InsightConfig, emit agent.Emitter) (*models.InsightResult, error) {
	if emit == nil {
		emit = func(string, map[string]any) {}
	}
	cols := agent.ClassifyColumns(ds, profile)

	var all []models.Insight
	detectors := []struct {
		kind  models.InsightType
		limit int
		run   func() []models.Insight
	}{
		{models.InsightCorrelation, cfg.MaxCorrelations, func() []models.Insight { return correlations(ds, cols.Numeric, cfg) }},
		{models.InsightTrend, cfg.MaxTrends, func() []models.Insight { return trends(ds, cols.Numeric, cfg) }},
		{models.InsightAnomaly, cfg.MaxAnomalies, func() []models.Insight { return anomalies(ds, cols.Numeric, cfg) }},
		{models.InsightPattern, cfg.MaxPatterns, func() []models.Insight { return patterns(ds, cols, cfg) }},
	}
	for _, d := range detectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found := top(d.run(), d.limit)
		emit(fmt.Sprintf("Found %d %s insights", len(found), d.kind), map[string]any{
			"type":  string(d.kind),
			"count": len(found),
		})
		all = append(all, found...)
	}

	sortByConfidence(all)
	res := &models.InsightResult{
		Insights:     all,
		CountsByType: make(map[models.InsightType]int, len(detectors)),
	}
	if res.Insights == nil {
		res.Insights = []models.Insight{}
	}
	for _, d := range detectors {
		res.CountsByType[d.kind] = 0
	}
	for _, in := range all {
		res.CountsByType[in.Type]++
		if in.Confidence >= cfg.HighConfidence {
			res.HighConfidence++
		}
	}
	return res, nil
}

// top keeps the n most confident insights, ties in discovery order.
func top(in []models.Insight, n int) []models.Insight {
	sortByConfidence(in)
	if n >= 0 && len(in) > n {
		in = in[:n]
	}
	return in
}

func sortByConfidence(in []models.Insight) {
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].Confidence > in[j].Confidence
	})
}
