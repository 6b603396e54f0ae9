package models

import "github.com/codeready-toolchain/adaa/pkg/stats"

// ColumnType is the inferred semantic type of a column.
type ColumnType string

// Column types
const (
	ColumnTypeNumeric     ColumnType = "numeric"
	ColumnTypeCategorical ColumnType = "categorical"
	ColumnTypeDatetime    ColumnType = "datetime"
	ColumnTypeText        ColumnType = "text"
	ColumnTypeBoolean     ColumnType = "boolean"
)

// Severity grades a data-quality defect.
type Severity string

// Severity values, ordered from least to most severe.
const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities (none=0 .. high=3).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// Overview describes the dataset shape.
type Overview struct {
	Rows               int   `json:"rows"`
	Columns            int   `json:"columns"`
	MemoryBytes        int64 `json:"memory_bytes"`
	DuplicateRows      int   `json:"duplicate_rows"`
	NumericColumns     int   `json:"numeric_columns"`
	CategoricalColumns int   `json:"categorical_columns"`
	DatetimeColumns    int   `json:"datetime_columns"`
	TextColumns        int   `json:"text_columns"`
	BooleanColumns     int   `json:"boolean_columns"`
}

// MissingSummary is the missing-value profile of one column.
type MissingSummary struct {
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
	Severity   Severity `json:"severity"`
}

// OutlierSummary is the IQR outlier profile of one numeric column.
type OutlierSummary struct {
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
	Severity   Severity `json:"severity"`
	LowerBound float64  `json:"lower_bound"`
	UpperBound float64  `json:"upper_bound"`
}

// TypeInference is the inferred type of one column.
type TypeInference struct {
	Type         ColumnType `json:"type"`
	Confidence   float64    `json:"confidence"`
	UniqueCount  int        `json:"unique_count"`
	Inconsistent int        `json:"inconsistent_values"`
	SampleValues []string   `json:"sample_values"`
}

// ColumnStatistics holds descriptive statistics of a numeric column.
type ColumnStatistics struct {
	stats.Summary
	Shape string `json:"shape"`
}

// Quality issue types
const (
	IssueMissingValues    = "missing_values"
	IssueOutliers         = "outliers"
	IssueTypeInconsistent = "type_inconsistency"
	IssueDuplicateRows    = "duplicate_rows"
)

// QualityIssue is one severity-tagged defect found while profiling.
type QualityIssue struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Column      string   `json:"column,omitempty"`
	Description string   `json:"description"`
	Impact      string   `json:"impact"`
}

// ProfilerResult is the profiler section of the analysis context.
type ProfilerResult struct {
	Overview         Overview                    `json:"overview"`
	ColumnOrder      []string                    `json:"columns"`
	QualityScore     float64                     `json:"quality_score"`
	InsufficientData bool                        `json:"insufficient_data"`
	Missing          map[string]MissingSummary   `json:"missing_value_summary"`
	Outliers         map[string]OutlierSummary   `json:"outlier_summary"`
	Types            map[string]TypeInference    `json:"type_inference"`
	Statistics       map[string]ColumnStatistics `json:"statistics"`
	QualityIssues    []QualityIssue              `json:"quality_issues"`
}

// ColumnsOfType returns the columns with the given inferred type, in dataset order.
func (p *ProfilerResult) ColumnsOfType(t ColumnType) []string {
	if p == nil {
		return nil
	}
	var out []string
	for _, name := range p.ColumnOrder {
		if p.Types[name].Type == t {
			out = append(out, name)
		}
	}
	return out
}

// HighestSeverity returns the most severe quality issue severity.
func (p *ProfilerResult) HighestSeverity() Severity {
	worst := SeverityNone
	if p == nil {
		return worst
	}
	for _, issue := range p.QualityIssues {
		if issue.Severity.Rank() > worst.Rank() {
			worst = issue.Severity
		}
	}
	return worst
}

// TotalMissing sums missing cells over all columns.
func (p *ProfilerResult) TotalMissing() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, m := range p.Missing {
		n += m.Count
	}
	return n
}
