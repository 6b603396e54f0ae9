package visualization

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/stats"
)

// minHeatmapColumns is the number of numeric columns needed for a correlation heatmap.
const minHeatmapColumns = 3

var unsafeID = regexp.MustCompile(`[^a-z0-9]+`)

type draft struct {
	chart   models.Chart
	payload models.ChartPayload
}

type builder struct {
	ds   *dataset.Dataset
	cfg  config.VisualizationConfig
	cols agent.ColumnSets
}

func (b *builder) layout(title, x, y string) models.Layout {
	m := b.cfg.ChartMargin
	return models.Layout{
		Title:  title,
		XAxis:  x,
		YAxis:  y,
		Height: b.cfg.ChartHeight,
		Margin: models.Margin{Left: m, Right: m, Top: m, Bottom: m},
	}
}

// chartID derives a stable identifier from the chart type and columns.
func chartID(prefix string, cols ...string) string {
	parts := []string{prefix}
	for _, c := range cols {
		slug := strings.Trim(unsafeID.ReplaceAllString(strings.ToLower(c), "_"), "_")
		if slug == "" {
			slug = "col"
		}
		parts = append(parts, slug)
	}
	return strings.Join(parts, "_")
}

func (b *builder) histograms() []draft {
	var out []draft
	for _, name := range b.cols.Numeric {
		if len(out) >= b.cfg.MaxHistograms {
			break
		}
		col, _ := b.ds.Column(name)
		vals, _ := col.Floats()
		bins := stats.Histogram(vals, b.cfg.HistogramBins)
		if len(bins) == 0 {
			continue
		}
		x := make([]any, len(bins))
		y := make([]any, len(bins))
		for i, bin := range bins {
			x[i] = bin.Midpoint()
			y[i] = bin.Count
		}
		title := fmt.Sprintf("Distribution of %s", name)
		out = append(out, draft{
			chart: models.Chart{
				ID:          chartID("hist", name),
				Type:        models.ChartHistogram,
				Title:       title,
				Description: fmt.Sprintf("Shows the frequency distribution of %s", name),
				Columns:     []string{name},
			},
			payload: models.ChartPayload{
				Type:   models.ChartHistogram,
				Series: []models.Series{{Name: name, Kind: "bar", X: x, Y: y}},
				Layout: b.layout(title, name, "Count"),
			},
		})
	}
	return out
}

func (b *builder) scatters(insights *models.InsightResult) []draft {
	var out []draft
	for _, in := range insights.OfType(models.InsightCorrelation) {
		if len(out) >= b.cfg.MaxScatters {
			break
		}
		if len(in.Columns) != 2 {
			continue
		}
		xName, yName := in.Columns[0], in.Columns[1]
		xs, ys := b.ds.PairedFloats(xName, yName)
		if len(xs) < 2 {
			continue
		}
		series := []models.Series{{Name: "data", Kind: "markers", X: anySlice(xs), Y: anySlice(ys)}}
		if fit, ok := stats.LinearFit(xs, ys); ok {
			sorted := stats.Sorted(xs)
			lo, hi := sorted[0], sorted[len(sorted)-1]
			if yLo, yHi := fit.At(lo), fit.At(hi); !math.IsInf(yLo, 0) && !math.IsInf(yHi, 0) && !math.IsNaN(yLo) && !math.IsNaN(yHi) {
				series = append(series, models.Series{
					Name: "trendline",
					Kind: "line",
					X:    []any{lo, hi},
					Y:    []any{yLo, yHi},
				})
			}
		}
		r, _ := in.Evidence["correlation"].(float64)
		title := fmt.Sprintf("%s vs %s", xName, yName)
		out = append(out, draft{
			chart: models.Chart{
				ID:          chartID("scatter", xName, yName),
				Type:        models.ChartScatter,
				Title:       title,
				Description: fmt.Sprintf("Relationship between %s and %s (correlation: %.2f)", xName, yName, r),
				Columns:     []string{xName, yName},
			},
			payload: models.ChartPayload{
				Type:   models.ChartScatter,
				Series: series,
				Layout: b.layout(fmt.Sprintf("%s (r=%.2f)", title, r), xName, yName),
			},
		})
	}
	return out
}

// bars charts the columns with a dominant category. Without an insight
// section every low-cardinality labelled column qualifies.
func (b *builder) bars(insights *models.InsightResult) []draft {
	var candidates []string
	if insights != nil {
		for _, in := range insights.OfType(models.InsightPattern) {
			if in.Subtype == "dominant_category" && len(in.Columns) == 1 {
				candidates = append(candidates, in.Columns[0])
			}
		}
	} else {
		candidates = b.cols.Labelled
	}

	var out []draft
	for _, name := range candidates {
		if len(out) >= b.cfg.MaxBars {
			break
		}
		col, ok := b.ds.Column(name)
		if !ok {
			continue
		}
		counts := col.ValueCounts()
		if len(counts) == 0 || len(counts) > b.cfg.BarMaxCategories {
			continue
		}
		if len(counts) > b.cfg.BarTopValues {
			counts = counts[:b.cfg.BarTopValues]
		}
		x := make([]any, len(counts))
		y := make([]any, len(counts))
		for i, c := range counts {
			x[i] = c.Value
			y[i] = c.Count
		}
		title := fmt.Sprintf("Distribution of %s", name)
		out = append(out, draft{
			chart: models.Chart{
				ID:          chartID("bar", name),
				Type:        models.ChartBar,
				Title:       title,
				Description: fmt.Sprintf("Shows the frequency of each category in %s", name),
				Columns:     []string{name},
			},
			payload: models.ChartPayload{
				Type:   models.ChartBar,
				Series: []models.Series{{Name: name, Kind: "bar", X: x, Y: y}},
				Layout: b.layout(title, name, "Count"),
			},
		})
	}
	return out
}

func (b *builder) heatmap() []draft {
	names := b.cols.Numeric
	if len(names) < minHeatmapColumns {
		return nil
	}
	z := make([][]float64, len(names))
	for i := range names {
		z[i] = make([]float64, len(names))
		z[i][i] = 1
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			xs, ys := b.ds.PairedFloats(names[i], names[j])
			r, ok := stats.Pearson(xs, ys)
			if !ok {
				r = 0
			}
			z[i][j], z[j][i] = r, r
		}
	}
	labels := make([]any, len(names))
	for i, n := range names {
		labels[i] = n
	}
	title := "Correlation Heatmap"
	return []draft{{
		chart: models.Chart{
			ID:          "heatmap_correlation",
			Type:        models.ChartHeatmap,
			Title:       title,
			Description: "Shows correlations between all numeric variables",
			Columns:     append([]string(nil), names...),
		},
		payload: models.ChartPayload{
			Type:   models.ChartHeatmap,
			Series: []models.Series{{Name: "correlation", Kind: "heatmap", X: labels, Y: labels, Z: z}},
			Layout: b.layout(title, "", ""),
		},
	}}
}

func anySlice(xs []float64) []any {
	out := make([]any, len(xs))
	for i, v := range xs {
		out[i] = v
	}
	return out
}
