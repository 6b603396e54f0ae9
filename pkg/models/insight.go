package models

// InsightType classifies a discovered insight.
type InsightType string

// Insight types
const (
	InsightCorrelation InsightType = "correlation"
	InsightTrend       InsightType = "trend"
	InsightAnomaly     InsightType = "anomaly"
	InsightPattern     InsightType = "pattern"
)

// Insight is one discovered relationship or property of the data.
type Insight struct {
	Type        InsightType    `json:"type"`
	Subtype     string         `json:"subtype,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Confidence  float64        `json:"confidence"`
	Columns     []string       `json:"columns"`
	Evidence    map[string]any `json:"evidence"`
	Actionable  bool           `json:"actionable"`
	Action      string         `json:"action,omitempty"`
}

// InsightResult is the insight_discovery section of the analysis context.
type InsightResult struct {
	Insights       []Insight           `json:"insights"`
	CountsByType   map[InsightType]int `json:"counts_by_type"`
	HighConfidence int                 `json:"high_confidence_insights"`
}

// OfType filters insights by type, preserving order.
func (r *InsightResult) OfType(t InsightType) []Insight {
	if r == nil {
		return nil
	}
	var out []Insight
	for _, in := range r.Insights {
		if in.Type == t {
			out = append(out, in)
		}
	}
	return out
}
