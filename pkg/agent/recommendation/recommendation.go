// Package recommendation implements the recommendation stage. Output is a
// pure function of the profile and insight sections.
package recommendation

import (
	"context"
	"fmt"
	"sort"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

// Name is the agent name reported in activity events.
const Name = "recommendation"

// Agent is the recommendation stage.
type Agent struct {
	*agent.BaseAgent
	cfg config.RecommendationConfig
}

// New creates a recommendation agent.
func New(cfg config.RecommendationConfig) *Agent {
	return &Agent{
		BaseAgent: agent.NewBaseAgent(Name, agent.StageRecommendation, "recommendation generation"),
		cfg:       cfg,
	}
}

// Execute returns a *models.RecommendationResult built from the earlier sections.
func (a *Agent) Execute(ctx context.Context, actx *agent.AnalysisContext) (any, error) {
	return a.Run(ctx, actx.TaskID, func(ctx context.Context, emit agent.Emitter) (any, error) {
		res := Recommend(actx.Profiler, actx.Insights, a.cfg)
		emit(fmt.Sprintf("Generated %d recommendations", len(res.Recommendations)), map[string]any{
			"by_priority": res.ByPriority,
		})
		return res, nil
	})
}

// Escalation is the minimum priority the data-quality recommendations must
// carry: critical when quality is below the critical cut-off or any issue is
// high severity, high when quality is below the high cut-off or a confident
// actionable insight exists. It returns "" when no escalation applies.
func Escalation(profile *models.ProfilerResult, insights *models.InsightResult, cfg config.RecommendationConfig) models.Priority {
	if profile != nil && !profile.InsufficientData {
		if profile.QualityScore < cfg.CriticalQuality || profile.HighestSeverity() == models.SeverityHigh {
			return models.PriorityCritical
		}
		if profile.QualityScore < cfg.HighQuality {
			return models.PriorityHigh
		}
	}
	if insights != nil {
		for _, in := range insights.Insights {
			if in.Actionable && in.Confidence >= cfg.HighConfidence {
				return models.PriorityHigh
			}
		}
	}
	return ""
}

// Recommend generates, prioritises and orders the recommendations.
// Either section may be nil when its stage failed.
func Recommend(profile *models.ProfilerResult, insights *models.InsightResult, cfg config.RecommendationConfig) *models.RecommendationResult {
	in := inputs{profile: profile, insights: insights}
	var recs []models.Recommendation
	for _, r := range rules {
		if rec, ok := r(in); ok {
			recs = append(recs, rec)
		}
	}

	if floor := Escalation(profile, insights, cfg); floor != "" {
		for i := range recs {
			if recs[i].Category == models.CategoryDataQuality && recs[i].Priority.Rank() < floor.Rank() {
				recs[i].Priority = floor
			}
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if pi, pj := recs[i].Priority.Rank(), recs[j].Priority.Rank(); pi != pj {
			return pi > pj
		}
		return recs[i].EstimatedImpact.Rank() > recs[j].EstimatedImpact.Rank()
	})
	if cfg.MaxRecommendation > 0 && len(recs) > cfg.MaxRecommendation {
		recs = recs[:cfg.MaxRecommendation]
	}

	res := &models.RecommendationResult{
		Recommendations: recs,
		ByPriority: map[models.Priority]int{
			models.PriorityCritical: 0,
			models.PriorityHigh:     0,
			models.PriorityMedium:   0,
			models.PriorityLow:      0,
		},
		ByCategory: make(map[string]int),
	}
	if res.Recommendations == nil {
		res.Recommendations = []models.Recommendation{}
	}
	for _, r := range recs {
		res.ByPriority[r.Priority]++
		res.ByCategory[r.Category]++
	}
	return res
}
