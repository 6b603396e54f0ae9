// Package profiler implements the data profiling stage: type inference,
// missing-value and outlier detection, descriptive statistics and the
// overall data-quality score.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/stats"
)

// Name is the agent name reported in activity events.
const Name = "data_profiler"

// ErrNoDataset is returned when the analysis context carries no dataset.
var ErrNoDataset = errors.New("no dataset to profile")

// Agent is the data profiling stage.
type Agent struct {
	*agent.BaseAgent
	cfg config.ProfilerConfig
}

// New creates a profiler agent.
func New(cfg config.ProfilerConfig) *Agent {
	return &Agent{
		BaseAgent: agent.NewBaseAgent(Name, agent.StageProfiler, "data profiling"),
		cfg:       cfg,
	}
}

// Execute profiles the context's dataset and returns a *models.ProfilerResult.
func (a *Agent) Execute(ctx context.Context, actx *agent.AnalysisContext) (any, error) {
	return a.Run(ctx, actx.TaskID, func(ctx context.Context, emit agent.Emitter) (any, error) {
		if actx.Dataset == nil {
			return nil, ErrNoDataset
		}
		return Profile(ctx, actx.Dataset, a.cfg, emit)
	})
}

// Profile computes the full profile of ds. emit may be nil.
func Profile(ctx context.Context, ds *dataset.Dataset, cfg config.ProfilerConfig, emit agent.Emitter) (*models.ProfilerResult, error) {
	if emit == nil {
		emit = func(string, map[string]any) {}
	}

	res := &models.ProfilerResult{
		Overview: models.Overview{
			Rows:          ds.NumRows(),
			Columns:       ds.NumColumns(),
			MemoryBytes:   ds.MemoryBytes(),
			DuplicateRows: ds.DuplicateRows(),
		},
		ColumnOrder:   ds.ColumnNames(),
		Missing:       make(map[string]models.MissingSummary, ds.NumColumns()),
		Outliers:      make(map[string]models.OutlierSummary),
		Types:         make(map[string]models.TypeInference, ds.NumColumns()),
		Statistics:    make(map[string]models.ColumnStatistics),
		QualityIssues: []models.QualityIssue{},
	}

	var t tally
	rows := ds.NumRows()
	for _, col := range ds.Columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		profileColumn(res, col, rows, cfg, &t)
	}
	emit(fmt.Sprintf("Profiled %d columns", ds.NumColumns()), map[string]any{
		"rows":    rows,
		"columns": ds.NumColumns(),
	})

	if ds.NumColumns() == 0 || rows == 0 {
		res.QualityScore = 1
		res.InsufficientData = true
	} else {
		res.QualityScore = t.score(cfg.Weights)
	}
	res.QualityIssues = append(res.QualityIssues, duplicateIssue(res.Overview, cfg)...)

	emit("Computed data quality score", map[string]any{
		"quality_score":  res.QualityScore,
		"quality_issues": len(res.QualityIssues),
	})
	return res, nil
}

// tally accumulates the numerators and denominators of the quality ratios.
type tally struct {
	cells, missing      int
	numericValues, outs int
	nonMissing, badType int
}

func (t tally) score(w config.QualityWeights) float64 {
	penalty := w.Missing*ratio(t.missing, t.cells) +
		w.Outlier*ratio(t.outs, t.numericValues) +
		w.TypeInconsistency*ratio(t.badType, t.nonMissing)
	return math.Max(0, math.Min(1, 1-penalty))
}

func profileColumn(res *models.ProfilerResult, col *dataset.Column, rows int, cfg config.ProfilerConfig, t *tally) {
	missing := col.MissingCount()
	missingRatio := ratio(missing, rows)
	res.Missing[col.Name] = models.MissingSummary{
		Count:      missing,
		Percentage: percent(missingRatio),
		Severity:   severity(missingRatio, cfg),
	}
	t.cells += rows
	t.missing += missing
	nonMissing := rows - missing
	t.nonMissing += nonMissing

	if missingRatio >= cfg.LowSeverityMax {
		res.QualityIssues = append(res.QualityIssues, models.QualityIssue{
			Type:        models.IssueMissingValues,
			Severity:    severity(missingRatio, cfg),
			Column:      col.Name,
			Description: fmt.Sprintf("Column '%s' has %d missing values (%.1f%%)", col.Name, missing, percent(missingRatio)),
			Impact:      "May reduce the accuracy of statistics and models built on this column",
		})
	}

	inf := InferType(col, cfg)
	res.Types[col.Name] = inf
	countType(&res.Overview, inf.Type)
	t.badType += inf.Inconsistent

	if badRatio := ratio(inf.Inconsistent, nonMissing); badRatio >= cfg.LowSeverityMax {
		res.QualityIssues = append(res.QualityIssues, models.QualityIssue{
			Type:        models.IssueTypeInconsistent,
			Severity:    severity(badRatio, cfg),
			Column:      col.Name,
			Description: fmt.Sprintf("Column '%s' is %s but %d values do not conform", col.Name, inf.Type, inf.Inconsistent),
			Impact:      "May break calculations that expect a consistent type",
		})
	}

	if inf.Type != models.ColumnTypeNumeric {
		return
	}

	values, _ := col.Floats()
	if summary, ok := stats.Describe(values); ok {
		res.Statistics[col.Name] = models.ColumnStatistics{Summary: summary, Shape: shape(summary.Skewness)}
	}

	t.numericValues += len(values)
	fences, ok := stats.IQRFences(values, cfg.IQRMultiplier, cfg.MinOutlierPoints)
	if !ok {
		return
	}
	outliers := 0
	for _, v := range values {
		if fences.Outside(v) {
			outliers++
		}
	}
	t.outs += outliers

	outRatio := ratio(outliers, len(values))
	res.Outliers[col.Name] = models.OutlierSummary{
		Count:      outliers,
		Percentage: percent(outRatio),
		Severity:   severity(outRatio, cfg),
		LowerBound: fences.Lower,
		UpperBound: fences.Upper,
	}
	if outRatio >= cfg.LowSeverityMax {
		res.QualityIssues = append(res.QualityIssues, models.QualityIssue{
			Type:        models.IssueOutliers,
			Severity:    severity(outRatio, cfg),
			Column:      col.Name,
			Description: fmt.Sprintf("Column '%s' has %d outliers (%.1f%%) outside [%.4g, %.4g]", col.Name, outliers, percent(outRatio), fences.Lower, fences.Upper),
			Impact:      "May skew means, variances and fitted models",
		})
	}
}

func duplicateIssue(o models.Overview, cfg config.ProfilerConfig) []models.QualityIssue {
	r := ratio(o.DuplicateRows, o.Rows)
	if r < cfg.LowSeverityMax {
		return nil
	}
	return []models.QualityIssue{{
		Type:        models.IssueDuplicateRows,
		Severity:    severity(r, cfg),
		Description: fmt.Sprintf("%d duplicate rows (%.1f%%)", o.DuplicateRows, percent(r)),
		Impact:      "May bias counts and aggregate statistics",
	}}
}

// severity maps a defect ratio onto the configured bands.
func severity(r float64, cfg config.ProfilerConfig) models.Severity {
	switch {
	case r <= 0:
		return models.SeverityNone
	case r < cfg.LowSeverityMax:
		return models.SeverityLow
	case r <= cfg.MediumSeverityMax:
		return models.SeverityMedium
	default:
		return models.SeverityHigh
	}
}

func shape(skew float64) string {
	switch {
	case math.Abs(skew) < 0.5:
		return "symmetric"
	case skew > 0:
		return "right_skewed"
	default:
		return "left_skewed"
	}
}

func countType(o *models.Overview, t models.ColumnType) {
	switch t {
	case models.ColumnTypeNumeric:
		o.NumericColumns++
	case models.ColumnTypeCategorical:
		o.CategoricalColumns++
	case models.ColumnTypeDatetime:
		o.DatetimeColumns++
	case models.ColumnTypeBoolean:
		o.BooleanColumns++
	default:
		o.TextColumns++
	}
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func percent(r float64) float64 {
	return math.Round(r*10000) / 100
}
