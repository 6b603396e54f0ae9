package models

// Priority of a recommendation.
type Priority string

// Priorities, most urgent first.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities: critical=3 .. low=0.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Impact is the estimated impact (and effort) level of a recommendation.
type Impact string

// Impact levels
const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Rank orders impact levels: high=2 .. low=0.
func (i Impact) Rank() int {
	switch i {
	case ImpactHigh:
		return 2
	case ImpactMedium:
		return 1
	default:
		return 0
	}
}

// Recommendation categories
const (
	CategoryDataQuality        = "data_quality"
	CategoryAnalysis           = "analysis"
	CategoryFeatureEngineering = "feature_engineering"
	CategoryNextSteps          = "next_steps"
)

// Recommendation is one suggested follow-up action.
type Recommendation struct {
	ID              string   `json:"id"`
	Category        string   `json:"category"`
	Priority        Priority `json:"priority"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Action          string   `json:"action"`
	Steps           []string `json:"steps"`
	EstimatedImpact Impact   `json:"estimated_impact"`
	Effort          Impact   `json:"effort"`
}

// RecommendationResult is the recommendation section of the analysis context.
type RecommendationResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	ByPriority      map[Priority]int `json:"by_priority"`
	ByCategory      map[string]int   `json:"by_category"`
}
