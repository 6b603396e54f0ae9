package models

import "time"

// AnalysisStatus is the overall outcome of one pipeline run.
type AnalysisStatus string

// Analysis statuses
const (
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
	AnalysisCancelled AnalysisStatus = "cancelled"
)

// AnalysisSummary aggregates counts over all pipeline sections.
type AnalysisSummary struct {
	TotalAgents               int              `json:"total_agents"`
	SuccessfulAgents          int              `json:"successful_agents"`
	FailedAgents              int              `json:"failed_agents"`
	TotalActivities           int              `json:"total_activities"`
	DataQualityScore          *float64         `json:"data_quality_score"`
	InsufficientData          bool             `json:"insufficient_data"`
	QualityIssues             int              `json:"quality_issues"`
	InsightsFound             int              `json:"insights_found"`
	HighConfidenceInsights    int              `json:"high_confidence_insights"`
	CorrelationsFound         int              `json:"correlations_found"`
	TrendsFound               int              `json:"trends_found"`
	AnomaliesFound            int              `json:"anomalies_found"`
	PatternsFound             int              `json:"patterns_found"`
	ChartsGenerated           int              `json:"charts_generated"`
	RecommendationsCount      int              `json:"recommendations_count"`
	RecommendationsByPriority map[Priority]int `json:"recommendations_by_priority,omitempty"`
	FailedStages              []string         `json:"failed_stages,omitempty"`
}

// AnalysisResult is the aggregated output of one orchestrator run. A section
// is nil when its stage failed or never ran.
type AnalysisResult struct {
	TaskID          string                `json:"task_id"`
	Dataset         string                `json:"dataset"`
	Status          AnalysisStatus        `json:"status"`
	StartedAt       time.Time             `json:"started_at"`
	DurationSeconds float64               `json:"duration_seconds"`
	Summary         AnalysisSummary       `json:"summary"`
	Profiler        *ProfilerResult       `json:"profiler"`
	Insights        *InsightResult        `json:"insights"`
	Visualizations  *VisualizationResult  `json:"visualizations"`
	Recommendations *RecommendationResult `json:"recommendations"`
	Activities      []ActivityEvent       `json:"activities"`
	Errors          map[string]string     `json:"errors,omitempty"`
}
