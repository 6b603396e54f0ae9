package insight

import (
	"fmt"
	"math"
	"strings"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/stats"
)

const (
	veryStrongCorrelation = 0.9
	minTrendPoints        = 3
	minPatternPoints      = 4
	maxAnomalyRows        = 5

	// zeroTolerance treats a fitted start value this close to zero as zero.
	zeroTolerance = 1e-9
)

// correlations tests every unordered numeric pair once over rows where both are present.
func correlations(ds *dataset.Dataset, numeric []string, cfg config.InsightConfig) []models.Insight {
	var out []models.Insight
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			x, y := ds.PairedFloats(numeric[i], numeric[j])
			r, ok := stats.Pearson(x, y)
			if !ok || math.Abs(r) < cfg.CorrelationThreshold {
				continue
			}
			out = append(out, correlationInsight(numeric[i], numeric[j], r, len(x)))
		}
	}
	return out
}

func correlationInsight(a, b string, r float64, n int) models.Insight {
	direction, tendency := "positive", "increase"
	if r < 0 {
		direction, tendency = "negative", "decrease"
	}
	strength := "strong"
	if math.Abs(r) > veryStrongCorrelation {
		strength = "very strong"
	}
	desc := fmt.Sprintf("%s and %s show a %s %s correlation (r = %.3f); as one increases the other tends to %s.",
		a, b, strength, direction, r, tendency)
	return models.Insight{
		Type:        models.InsightCorrelation,
		Title:       fmt.Sprintf("%s correlation between %s and %s", capitalize(strength), a, b),
		Description: desc,
		Confidence:  math.Abs(r),
		Columns:     []string{a, b},
		Evidence: map[string]any{
			"correlation": r,
			"direction":   direction,
			"sample_size": n,
		},
		Actionable: true,
		Action:     fmt.Sprintf("Model %s and %s together and check for multicollinearity before using both as features", a, b),
	}
}

// trends regresses each numeric column on its row index.
func trends(ds *dataset.Dataset, numeric []string, cfg config.InsightConfig) []models.Insight {
	var out []models.Insight
	for _, name := range numeric {
		col, _ := ds.Column(name)
		vals, rows := col.Floats()
		if len(vals) < minTrendPoints {
			continue
		}
		x := make([]float64, len(rows))
		for i, r := range rows {
			x[i] = float64(r)
		}
		fit, ok := stats.LinearFit(x, vals)
		if !ok || fit.Slope == 0 || fit.RSquared < cfg.TrendMinRSquared {
			continue
		}

		direction := "increasing"
		if fit.Slope < 0 {
			direction = "decreasing"
		}
		first, last := fit.At(x[0]), fit.At(x[len(x)-1])
		var change *float64
		changeText := ""
		if math.Abs(first) > zeroTolerance {
			if pct := (last - first) / math.Abs(first) * 100; !math.IsInf(pct, 0) && !math.IsNaN(pct) {
				change = &pct
				changeText = fmt.Sprintf(" (%+.1f%% from first to last row)", pct)
			}
		}

		out = append(out, models.Insight{
			Type:        models.InsightTrend,
			Title:       fmt.Sprintf("%s trend in %s", capitalize(direction), name),
			Description: fmt.Sprintf("%s is %s across rows with slope %.4g per row%s.", name, direction, fit.Slope, changeText),
			Confidence:  fit.RSquared,
			Columns:     []string{name},
			Evidence: map[string]any{
				"slope":          fit.Slope,
				"r_squared":      fit.RSquared,
				"direction":      direction,
				"percent_change": change,
			},
			Actionable: true,
			Action:     fmt.Sprintf("Monitor %s over time and consider forecasting its trajectory", name),
		})
	}
	return out
}

// anomalies reports one insight per column with values at or beyond the z-score threshold.
func anomalies(ds *dataset.Dataset, numeric []string, cfg config.InsightConfig) []models.Insight {
	var out []models.Insight
	for _, name := range numeric {
		col, _ := ds.Column(name)
		vals, rows := col.Floats()
		z, ok := stats.ZScores(vals)
		if !ok {
			continue
		}
		var hits []int
		count, maxZ := 0, 0.0
		for i, s := range z {
			if math.Abs(s) < cfg.ZScoreThreshold {
				continue
			}
			count++
			if len(hits) < maxAnomalyRows {
				hits = append(hits, rows[i])
			}
			maxZ = math.Max(maxZ, math.Abs(s))
		}
		if count == 0 {
			continue
		}

		out = append(out, models.Insight{
			Type:        models.InsightAnomaly,
			Title:       fmt.Sprintf("Anomalous values in %s", name),
			Description: fmt.Sprintf("%d value(s) in %s lie %.1f or more standard deviations from the mean (max |z| = %.2f).", count, name, cfg.ZScoreThreshold, maxZ),
			Confidence:  math.Min(0.99, 0.5+maxZ/10),
			Columns:     []string{name},
			Evidence: map[string]any{
				"count":     count,
				"max_abs_z": maxZ,
				"rows":      hits,
			},
			Actionable: true,
			Action:     fmt.Sprintf("Investigate the anomalous %s values for data entry errors or real events", name),
		})
	}
	return out
}

// patterns finds dominant categories and concentrated numeric distributions.
func patterns(ds *dataset.Dataset, cols agent.ColumnSets, cfg config.InsightConfig) []models.Insight {
	var out []models.Insight
	for _, name := range cols.Labelled {
		col, _ := ds.Column(name)
		counts := col.ValueCounts()
		present := len(col.NonMissing())
		if len(counts) == 0 || present == 0 {
			continue
		}
		share := float64(counts[0].Count) / float64(present)
		if share < cfg.DominantShare {
			continue
		}
		out = append(out, models.Insight{
			Type:        models.InsightPattern,
			Subtype:     "dominant_category",
			Title:       fmt.Sprintf("Dominant category in %s", name),
			Description: fmt.Sprintf("'%s' accounts for %.1f%% of %s values.", counts[0].Value, share*100, name),
			Confidence:  cfg.PatternConfidence,
			Columns:     []string{name},
			Evidence: map[string]any{
				"value":    counts[0].Value,
				"count":    counts[0].Count,
				"share":    share,
				"distinct": len(counts),
			},
			Actionable: true,
			Action:     fmt.Sprintf("Account for the imbalance in %s when sampling or training models", name),
		})
	}

	for _, name := range cols.Numeric {
		col, _ := ds.Column(name)
		vals, _ := col.Floats()
		fences, ok := stats.IQRFences(vals, 0, minPatternPoints)
		if !ok {
			continue
		}
		sorted := stats.Sorted(vals)
		span := sorted[len(sorted)-1] - sorted[0]
		if span <= 0 || math.IsInf(span, 0) {
			continue
		}
		r := fences.IQR / span
		if r >= cfg.ConcentrationRatio {
			continue
		}
		out = append(out, models.Insight{
			Type:        models.InsightPattern,
			Subtype:     "concentrated_distribution",
			Title:       fmt.Sprintf("Concentrated distribution in %s", name),
			Description: fmt.Sprintf("The middle half of %s spans only %.1f%% of its range.", name, r*100),
			Confidence:  cfg.PatternConfidence,
			Columns:     []string{name},
			Evidence: map[string]any{
				"iqr":   fences.IQR,
				"range": span,
				"ratio": r,
			},
		})
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
