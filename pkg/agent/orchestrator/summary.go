package orchestrator

import (
	"maps"
	"slices"
	"sort"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

// Summarize aggregates the counts reported with a run.
func Summarize(res *models.AnalysisResult, total, succeeded, failed int) models.AnalysisSummary {
	s := models.AnalysisSummary{
		TotalAgents:      total,
		SuccessfulAgents: succeeded,
		FailedAgents:     failed,
		TotalActivities:  len(res.Activities),
	}
	for stage := range res.Errors {
		s.FailedStages = append(s.FailedStages, stage)
	}
	sortStages(s.FailedStages)

	if p := res.Profiler; p != nil {
		score := p.QualityScore
		s.DataQualityScore = &score
		s.InsufficientData = p.InsufficientData
		s.QualityIssues = len(p.QualityIssues)
	}
	if in := res.Insights; in != nil {
		s.InsightsFound = len(in.Insights)
		s.HighConfidenceInsights = in.HighConfidence
		s.CorrelationsFound = in.CountsByType[models.InsightCorrelation]
		s.TrendsFound = in.CountsByType[models.InsightTrend]
		s.AnomaliesFound = in.CountsByType[models.InsightAnomaly]
		s.PatternsFound = in.CountsByType[models.InsightPattern]
	}
	if v := res.Visualizations; v != nil {
		s.ChartsGenerated = len(v.Charts)
	}
	if r := res.Recommendations; r != nil {
		s.RecommendationsCount = len(r.Recommendations)
		s.RecommendationsByPriority = r.ByPriority
	}
	return s
}

// MergeStage folds a single-stage re-run into the stored result of a full
// run. The stage's section and error are replaced, the re-run's activities
// are appended and the summary is recomputed over the whole pipeline.
func MergeStage(stored, rerun *models.AnalysisResult, stage agent.Stage) *models.AnalysisResult {
	merged := *stored
	merged.Profiler = rerun.Profiler
	merged.Insights = rerun.Insights
	merged.Visualizations = rerun.Visualizations
	merged.Recommendations = rerun.Recommendations
	merged.Activities = append(slices.Clone(stored.Activities), rerun.Activities...)

	merged.Errors = maps.Clone(stored.Errors)
	if merged.Errors == nil {
		merged.Errors = map[string]string{}
	}
	delete(merged.Errors, string(stage))
	if msg, ok := rerun.Errors[string(stage)]; ok {
		merged.Errors[string(stage)] = msg
	}

	total := len(agent.AllStages())
	failed := len(merged.Errors)
	succeeded := total - failed
	merged.Status = models.AnalysisCompleted
	if succeeded == 0 {
		merged.Status = models.AnalysisFailed
	}
	if failed == 0 {
		merged.Errors = nil
	}
	merged.Summary = Summarize(&merged, total, succeeded, failed)
	return &merged
}

// sortStages orders stage names by pipeline position.
func sortStages(stages []string) {
	pos := make(map[string]int, 4)
	for i, st := range agent.AllStages() {
		pos[string(st)] = i
	}
	sort.Slice(stages, func(i, j int) bool {
		return pos[stages[i]] < pos[stages[j]]
	})
}
