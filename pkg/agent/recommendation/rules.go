package recommendation

import (
	"fmt"
	"math"
	"strings"

	"github.com/codeready-toolchain/adaa/pkg/models"
)

const (
	// scaleRatio is the max/min numeric range ratio that suggests feature scaling.
	scaleRatio = 100

	// smallDatasetRows is the row count below which more data is suggested.
	smallDatasetRows = 100

	modelReadyQuality  = 0.8
	modelReadyInsights = 3
	maxListedColumns   = 5
)

type inputs struct {
	profile  *models.ProfilerResult
	insights *models.InsightResult
}

func (in inputs) issues(kind string) []models.QualityIssue {
	if in.profile == nil {
		return nil
	}
	var out []models.QualityIssue
	for _, i := range in.profile.QualityIssues {
		if i.Type == kind {
			out = append(out, i)
		}
	}
	return out
}

func issueColumns(issues []models.QualityIssue) string {
	cols := make([]string, 0, len(issues))
	for _, i := range issues {
		if i.Column != "" && len(cols) < maxListedColumns {
			cols = append(cols, i.Column)
		}
	}
	return strings.Join(cols, ", ")
}

type rule func(in inputs) (models.Recommendation, bool)

// rules run in generation order; ties in the final sort keep this order.
var rules = []rule{
	overallQuality,
	missingValues,
	outliers,
	typeCleanup,
	duplicates,
	correlationFollowUp,
	trendMonitoring,
	anomalyInvestigation,
	segmentation,
	categoricalEncoding,
	featureScaling,
	datetimeFeatures,
	readyForModeling,
	collectMoreData,
	exportResults,
}

func overallQuality(in inputs) (models.Recommendation, bool) {
	p := in.profile
	if p == nil || p.InsufficientData || len(p.QualityIssues) == 0 {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "dq_001",
		Category:    models.CategoryDataQuality,
		Priority:    models.PriorityMedium,
		Title:       "Improve overall data quality",
		Description: fmt.Sprintf("Data quality score is %.1f%% with %d quality issues. Address them before relying on the analysis.", p.QualityScore*100, len(p.QualityIssues)),
		Action:      "Review and clean the data",
		Steps: []string{
			"Review the quality issues column by column",
			"Decide on an imputation or removal strategy",
			"Handle outliers and inconsistent values",
			"Re-run the analysis after cleaning",
		},
		EstimatedImpact: models.ImpactHigh,
		Effort:          models.ImpactMedium,
	}, true
}

func missingValues(in inputs) (models.Recommendation, bool) {
	issues := in.issues(models.IssueMissingValues)
	if len(issues) == 0 {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "dq_002",
		Category:    models.CategoryDataQuality,
		Priority:    models.PriorityHigh,
		Title:       "Handle missing values",
		Description: fmt.Sprintf("%d missing cells across %d columns (%s).", in.profile.TotalMissing(), len(issues), issueColumns(issues)),
		Action:      "Implement a missing value strategy",
		Steps: []string{
			"For numeric columns consider mean or median imputation",
			"For categorical columns consider the mode or an 'Unknown' category",
			"Consider dropping columns with more than 50% missing",
			"Document imputation decisions",
		},
		EstimatedImpact: models.ImpactHigh,
		Effort:          models.ImpactLow,
	}, true
}

func outliers(in inputs) (models.Recommendation, bool) {
	issues := in.issues(models.IssueOutliers)
	if len(issues) == 0 {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "dq_003",
		Category:    models.CategoryDataQuality,
		Priority:    models.PriorityMedium,
		Title:       "Investigate outliers",
		Description: fmt.Sprintf("Outliers detected in %d columns (%s).", len(issues), issueColumns(issues)),
		Action:      "Review outlier values",
		Steps: []string{
			"Verify whether outliers are errors or valid extreme values",
			"Consider winsorizing or capping extreme values",
			"Prefer robust statistics where outliers remain",
			"Document outlier handling decisions",
		},
		EstimatedImpact: models.ImpactMedium,
		Effort:          models.ImpactLow,
	}, true
}

func typeCleanup(in inputs) (models.Recommendation, bool) {
	issues := in.issues(models.IssueTypeInconsistent)
	if len(issues) == 0 {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "dq_004",
		Category:    models.CategoryDataQuality,
		Priority:    models.PriorityMedium,
		Title:       "Fix inconsistent value types",
		Description: fmt.Sprintf("Values that do not match the column type were found in %s.", issueColumns(issues)),
		Action:      "Standardise value formats",
		Steps: []string{
			"List the non-conforming values per column",
			"Correct or convert them to the expected type",
			"Add validation at the data source",
		},
		EstimatedImpact: models.ImpactMedium,
		Effort:          models.ImpactLow,
	}, true
}

func duplicates(in inputs) (models.Recommendation, bool) {
	if len(in.issues(models.IssueDuplicateRows)) == 0 {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "dq_005",
		Category:    models.CategoryDataQuality,
		Priority:    models.PriorityMedium,
		Title:       "Remove duplicate rows",
		Description: fmt.Sprintf("%d rows repeat an earlier row exactly.", in.profile.Overview.DuplicateRows),
		Action:      "Deduplicate the dataset",
		Steps: []string{
			"Confirm the duplicates are not legitimate repeated events",
			"Drop exact duplicates",
			"Add a unique key upstream",
		},
		EstimatedImpact: models.ImpactMedium,
		Effort:          models.ImpactLow,
	}, true
}

func correlationFollowUp(in inputs) (models.Recommendation, bool) {
	corr := in.insights.OfType(models.InsightCorrelation)
	if len(corr) == 0 {
		return models.Recommendation{}, false
	}
	pairs := make([]string, 0, 3)
	for _, c := range corr {
		if len(pairs) == 3 {
			break
		}
		pairs = append(pairs, strings.Join(c.Columns, " vs "))
	}
	return models.Recommendation{
		ID:          "an_001",
		Category:    models.CategoryAnalysis,
		Priority:    models.PriorityHigh,
		Title:       "Investigate strong correlations",
		Description: fmt.Sprintf("Found %d strong correlations (%s) that warrant deeper investigation.", len(corr), strings.Join(pairs, "; ")),
		Action:      "Perform causal analysis",
		Steps: []string{
			"Separate causation from correlation",
			"Consider time-lagged relationships",
			"Look for confounding variables",
			"Build predictive models if appropriate",
		},
		EstimatedImpact: models.ImpactHigh,
		Effort:          models.ImpactMedium,
	}, true
}

func trendMonitoring(in inputs) (models.Recommendation, bool) {
	trends := in.insights.OfType(models.InsightTrend)
	if len(trends) == 0 {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "an_002",
		Category:    models.CategoryAnalysis,
		Priority:    models.PriorityMedium,
		Title:       "Analyze detected trends",
		Description: fmt.Sprintf("Found %d significant trends in the data.", len(trends)),
		Action:      "Monitor and forecast trends",
		Steps: []string{
			"Forecast future values from the trend lines",
			"Identify what drives each trend",
			"Check for seasonality",
		},
		EstimatedImpact: models.ImpactMedium,
		Effort:          models.ImpactLow,
	}, true
}

func anomalyInvestigation(in inputs) (models.Recommendation, bool) {
	anomalies := in.insights.OfType(models.InsightAnomaly)
	if len(anomalies) == 0 {
		return models.Recommendation{}, false
	}
	cols := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		cols = append(cols, a.Columns...)
	}
	return models.Recommendation{
		ID:          "an_003",
		Category:    models.CategoryAnalysis,
		Priority:    models.PriorityMedium,
		Title:       "Investigate anomalies",
		Description: fmt.Sprintf("Anomalous values found in %s.", strings.Join(cols, ", ")),
		Action:      "Review anomalous records",
		Steps: []string{
			"Inspect the flagged rows",
			"Decide whether they are errors or real events",
			"Set up alerts for similar values",
		},
		EstimatedImpact: models.ImpactMedium,
		Effort:          models.ImpactMedium,
	}, true
}

func segmentation(in inputs) (models.Recommendation, bool) {
	if len(in.profile.ColumnsOfType(models.ColumnTypeCategorical)) == 0 {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "an_004",
		Category:    models.CategoryAnalysis,
		Priority:    models.PriorityLow,
		Title:       "Perform segmentation analysis",
		Description: "Categorical columns are present. Segmenting by them may reveal group-specific patterns.",
		Action:      "Create segments",
		Steps: []string{
			"Group data by categorical variables",
			"Compare metrics across segments",
			"Look for segment-specific patterns",
		},
		EstimatedImpact: models.ImpactMedium,
		Effort:          models.ImpactMedium,
	}, true
}

func categoricalEncoding(in inputs) (models.Recommendation, bool) {
	cats := in.profile.ColumnsOfType(models.ColumnTypeCategorical)
	if len(cats) == 0 {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "fe_001",
		Category:    models.CategoryFeatureEngineering,
		Priority:    models.PriorityMedium,
		Title:       "Encode categorical variables",
		Description: fmt.Sprintf("Found %d categorical columns that need encoding for modeling.", len(cats)),
		Action:      "Apply encoding techniques",
		Steps: []string{
			"Use one-hot encoding for low cardinality columns",
			"Use ordinal encoding for ordered categories",
			"Consider target encoding for high cardinality",
			"Group rare categories",
		},
		EstimatedImpact: models.ImpactHigh,
		Effort:          models.ImpactLow,
	}, true
}

func featureScaling(in inputs) (models.Recommendation, bool) {
	if in.profile == nil || len(in.profile.Statistics) < 2 {
		return models.Recommendation{}, false
	}
	lo, hi := -1.0, 0.0
	for _, name := range in.profile.ColumnOrder {
		st, ok := in.profile.Statistics[name]
		if !ok {
			continue
		}
		span := st.Max - st.Min
		if span <= 0 || math.IsInf(span, 0) {
			continue
		}
		if lo < 0 || span < lo {
			lo = span
		}
		if span > hi {
			hi = span
		}
	}
	if lo <= 0 || hi/lo <= scaleRatio {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "fe_002",
		Category:    models.CategoryFeatureEngineering,
		Priority:    models.PriorityMedium,
		Title:       "Normalize numeric features",
		Description: fmt.Sprintf("Numeric column ranges differ by a factor of %.0f.", hi/lo),
		Action:      "Apply feature scaling",
		Steps: []string{
			"Standardise roughly normal features",
			"Min-max scale bounded features",
			"Use robust scaling where outliers are present",
		},
		EstimatedImpact: models.ImpactHigh,
		Effort:          models.ImpactLow,
	}, true
}

func datetimeFeatures(in inputs) (models.Recommendation, bool) {
	if len(in.profile.ColumnsOfType(models.ColumnTypeDatetime)) == 0 {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "fe_003",
		Category:    models.CategoryFeatureEngineering,
		Priority:    models.PriorityLow,
		Title:       "Extract datetime features",
		Description: "Datetime columns are present. Temporal features may improve analysis.",
		Action:      "Create time-based features",
		Steps: []string{
			"Extract year, month, day and weekday",
			"Add weekend and holiday flags",
			"Compute time differences between events",
		},
		EstimatedImpact: models.ImpactMedium,
		Effort:          models.ImpactLow,
	}, true
}

func readyForModeling(in inputs) (models.Recommendation, bool) {
	if in.profile == nil || in.insights == nil {
		return models.Recommendation{}, false
	}
	if in.profile.QualityScore <= modelReadyQuality || len(in.insights.Insights) <= modelReadyInsights {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "ns_001",
		Category:    models.CategoryNextSteps,
		Priority:    models.PriorityHigh,
		Title:       "Ready for predictive modeling",
		Description: "Data quality is good and several insights were found. Consider building predictive models.",
		Action:      "Build models",
		Steps: []string{
			"Define the prediction target",
			"Split data into train and test sets",
			"Try several algorithms",
			"Evaluate and compare models",
		},
		EstimatedImpact: models.ImpactHigh,
		Effort:          models.ImpactHigh,
	}, true
}

func collectMoreData(in inputs) (models.Recommendation, bool) {
	if in.profile == nil || in.profile.Overview.Rows >= smallDatasetRows {
		return models.Recommendation{}, false
	}
	return models.Recommendation{
		ID:          "ns_002",
		Category:    models.CategoryNextSteps,
		Priority:    models.PriorityMedium,
		Title:       "Collect more data",
		Description: fmt.Sprintf("The dataset has only %d rows. More data would make the analysis more robust.", in.profile.Overview.Rows),
		Action:      "Expand the dataset",
		Steps: []string{
			"Identify additional data sources",
			"Validate the quality of new data",
			"Re-run the analysis on the expanded dataset",
		},
		EstimatedImpact: models.ImpactHigh,
		Effort:          models.ImpactHigh,
	}, true
}

func exportResults(inputs) (models.Recommendation, bool) {
	return models.Recommendation{
		ID:          "ns_003",
		Category:    models.CategoryNextSteps,
		Priority:    models.PriorityLow,
		Title:       "Export and share results",
		Description: "Share the findings with stakeholders.",
		Action:      "Create a report",
		Steps: []string{
			"Export the charts",
			"Write an executive summary",
			"Document the key findings",
		},
		EstimatedImpact: models.ImpactMedium,
		Effort:          models.ImpactLow,
	}, true
}
