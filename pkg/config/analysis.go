package config

// AnalysisConfig holds the statistical policy constants of the pipeline.
// None of them is a known optimum; they are tunable defaults.
type AnalysisConfig struct {
	Profiler       ProfilerConfig       `yaml:"profiler"`
	Insight        InsightConfig        `yaml:"insight"`
	Visualization  VisualizationConfig  `yaml:"visualization"`
	Recommendation RecommendationConfig `yaml:"recommendation"`
}

// QualityWeights weight each defect ratio in the quality score.
type QualityWeights struct {
	Missing           float64 `yaml:"missing"`
	Outlier           float64 `yaml:"outlier"`
	TypeInconsistency float64 `yaml:"type_inconsistency"`
}

// ProfilerConfig controls type inference, severity bands and the quality score.
type ProfilerConfig struct {
	// SampleSize is how many non-missing values per column are inspected for type inference.
	SampleSize int `yaml:"sample_size"`

	// TypeMatchRatio is the share of sampled values that must parse as a type.
	TypeMatchRatio float64 `yaml:"type_match_ratio"`

	// CategoricalRatio and CategoricalMaxUnique decide categorical vs text:
	// a column is categorical when unique/non-missing is below the ratio or
	// it has fewer distinct values than the maximum.
	CategoricalRatio     float64 `yaml:"categorical_ratio"`
	CategoricalMaxUnique int     `yaml:"categorical_max_unique"`

	// LowSeverityMax and MediumSeverityMax bound the severity bands:
	// 0 is none, (0, low) is low, [low, medium] is medium, above is high.
	LowSeverityMax    float64 `yaml:"low_severity_max"`
	MediumSeverityMax float64 `yaml:"medium_severity_max"`

	// IQRMultiplier is k in Q1 - k*IQR / Q3 + k*IQR.
	IQRMultiplier float64 `yaml:"iqr_multiplier"`

	// MinOutlierPoints is the minimum sample size for outlier detection.
	MinOutlierPoints int `yaml:"min_outlier_points"`

	Weights QualityWeights `yaml:"weights"`
}

// InsightConfig controls insight discovery thresholds and limits.
type InsightConfig struct {
	CorrelationThreshold float64 `yaml:"correlation_threshold"`
	TrendMinRSquared     float64 `yaml:"trend_min_r_squared"`
	ZScoreThreshold      float64 `yaml:"z_score_threshold"`
	DominantShare        float64 `yaml:"dominant_share"`
	// ConcentrationRatio flags a numeric column whose IQR is below this share of its range.
	ConcentrationRatio float64 `yaml:"concentration_ratio"`
	PatternConfidence  float64 `yaml:"pattern_confidence"`
	// HighConfidence is the cut-off counted as a high-confidence insight.
	HighConfidence float64 `yaml:"high_confidence"`

	MaxCorrelations int `yaml:"max_correlations"`
	MaxTrends       int `yaml:"max_trends"`
	MaxAnomalies    int `yaml:"max_anomalies"`
	MaxPatterns     int `yaml:"max_patterns"`
}

// VisualizationConfig limits the charts generated per dataset.
type VisualizationConfig struct {
	MaxHistograms    int `yaml:"max_histograms"`
	MaxScatters      int `yaml:"max_scatters"`
	MaxBars          int `yaml:"max_bars"`
	HistogramBins    int `yaml:"histogram_bins"`
	BarMaxCategories int `yaml:"bar_max_categories"`
	BarTopValues     int `yaml:"bar_top_values"`
	ChartHeight      int `yaml:"chart_height"`
	ChartMargin      int `yaml:"chart_margin"`
}

// RecommendationConfig holds the priority cut-offs.
type RecommendationConfig struct {
	CriticalQuality   float64 `yaml:"critical_quality"`
	HighQuality       float64 `yaml:"high_quality"`
	HighConfidence    float64 `yaml:"high_confidence"`
	MaxRecommendation int     `yaml:"max_recommendations"`
}

// DefaultAnalysisConfig returns the built-in analysis policy.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Profiler: ProfilerConfig{
			SampleSize:           1000,
			TypeMatchRatio:       0.9,
			CategoricalRatio:     0.1,
			CategoricalMaxUnique: 50,
			LowSeverityMax:       0.05,
			MediumSeverityMax:    0.20,
			IQRMultiplier:        1.5,
			MinOutlierPoints:     4,
			Weights: QualityWeights{
				Missing:           0.5,
				Outlier:           0.3,
				TypeInconsistency: 0.2,
			},
		},
		Insight: InsightConfig{
			CorrelationThreshold: 0.7,
			TrendMinRSquared:     0.5,
			ZScoreThreshold:      3.0,
			DominantShare:        0.6,
			ConcentrationRatio:   0.3,
			PatternConfidence:    0.6,
			HighConfidence:       0.8,
			MaxCorrelations:      5,
			MaxTrends:            3,
			MaxAnomalies:         3,
			MaxPatterns:          3,
		},
		Visualization: VisualizationConfig{
			MaxHistograms:    5,
			MaxScatters:      3,
			MaxBars:          3,
			HistogramBins:    20,
			BarMaxCategories: 20,
			BarTopValues:     10,
			ChartHeight:      400,
			ChartMargin:      50,
		},
		Recommendation: RecommendationConfig{
			CriticalQuality:   0.5,
			HighQuality:       0.75,
			HighConfidence:    0.8,
			MaxRecommendation: 20,
		},
	}
}
