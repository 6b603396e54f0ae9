package insight

import (
	"context"
	"fmt"
	"testing"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/agent/profiler"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCfg() config.InsightConfig {
	return config.DefaultAnalysisConfig().Insight
}

func numbers(n int, f func(i int) float64) *dataset.Column {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = fmt.Sprint(f(i))
	}
	return dataset.NewColumn("", vals...)
}

func named(name string, c *dataset.Column) *dataset.Column {
	c.Name = name
	return c
}

func discover(t *testing.T, ds *dataset.Dataset, profile *models.ProfilerResult) *models.InsightResult {
	t.Helper()
	res, err := Discover(context.Background(), ds, profile, defaultCfg(), nil)
	require.NoError(t, err)
	return res
}

func TestDiscover_PerfectLinearRelationship(t *testing.T) {
	ds := dataset.MustFromColumns("t",
		named("x", numbers(10, func(i int) float64 { return float64(i + 1) })),
		named("y", numbers(10, func(i int) float64 { return float64(2 * (i + 1)) })),
	)

	res := discover(t, ds, nil)

	corr := res.OfType(models.InsightCorrelation)
	require.Len(t, corr, 1)
	assert.Equal(t, models.InsightCorrelation, corr[0].Type)
	assert.InDelta(t, 1.0, corr[0].Confidence, 1e-9)
	assert.Equal(t, []string{"x", "y"}, corr[0].Columns)
	assert.Equal(t, "positive", corr[0].Evidence["direction"])
	assert.Contains(t, corr[0].Description, "very strong")
}

func TestDiscover_CorrelationPairsAreUnique(t *testing.T) {
	ds := dataset.MustFromColumns("t",
		named("a", numbers(12, func(i int) float64 { return float64(i) })),
		named("b", numbers(12, func(i int) float64 { return float64(-3 * i) })),
		named("c", numbers(12, func(i int) float64 { return float64(i*i) + 1 })),
	)

	res := discover(t, ds, nil)

	seen := map[string]bool{}
	for _, in := range res.OfType(models.InsightCorrelation) {
		require.Len(t, in.Columns, 2)
		assert.NotEqual(t, in.Columns[0], in.Columns[1])
		key := in.Columns[0] + "|" + in.Columns[1]
		reverse := in.Columns[1] + "|" + in.Columns[0]
		assert.False(t, seen[key] || seen[reverse], "pair %s reported twice", key)
		seen[key] = true
		assert.GreaterOrEqual(t, in.Confidence, defaultCfg().CorrelationThreshold)
	}
	assert.Len(t, seen, 3)
}

func TestDiscover_SkipsZeroVariance(t *testing.T) {
	ds := dataset.MustFromColumns("t",
		named("x", numbers(10, func(i int) float64 { return float64(i) })),
		named("flat", numbers(10, func(int) float64 { return 7 })),
	)

	res := discover(t, ds, nil)

	assert.Empty(t, res.OfType(models.InsightCorrelation))
}

func TestDiscover_DominantCategory(t *testing.T) {
	ds := dataset.MustFromColumns("t",
		dataset.NewColumn("city", "NY", "NY", "LA", "NY", "NY", "NY", "SF", "NY", "NY", "NY"),
	)

	res := discover(t, ds, nil)

	patterns := res.OfType(models.InsightPattern)
	require.Len(t, patterns, 1)
	assert.Equal(t, "dominant_category", patterns[0].Subtype)
	assert.GreaterOrEqual(t, patterns[0].Confidence, 0.6)
	assert.Equal(t, "NY", patterns[0].Evidence["value"])
	assert.InDelta(t, 0.8, patterns[0].Evidence["share"], 1e-9)
}

func TestDiscover_Trend(t *testing.T) {
	ds := dataset.MustFromColumns("t",
		named("sales", numbers(10, func(i int) float64 { return float64(3*i + 5) })),
	)

	res := discover(t, ds, nil)

	trends := res.OfType(models.InsightTrend)
	require.Len(t, trends, 1)
	assert.InDelta(t, 1.0, trends[0].Confidence, 1e-9)
	assert.Equal(t, "increasing", trends[0].Evidence["direction"])
	change, ok := trends[0].Evidence["percent_change"].(*float64)
	require.True(t, ok)
	require.NotNil(t, change)
	assert.InDelta(t, 540.0, *change, 1e-9)
}

func TestDiscover_TrendWithZeroStartHasNoPercentChange(t *testing.T) {
	ds := dataset.MustFromColumns("t",
		named("n", numbers(6, func(i int) float64 { return float64(i) })),
	)

	res := discover(t, ds, nil)

	trends := res.OfType(models.InsightTrend)
	require.Len(t, trends, 1)
	assert.Nil(t, trends[0].Evidence["percent_change"])
}

func TestDiscover_Anomaly(t *testing.T) {
	ds := dataset.MustFromColumns("t",
		named("v", numbers(20, func(i int) float64 {
			if i == 19 {
				return 100
			}
			return float64(10 + i%2)
		})),
	)

	res := discover(t, ds, nil)

	anomalies := res.OfType(models.InsightAnomaly)
	require.Len(t, anomalies, 1)
	assert.Equal(t, 1, anomalies[0].Evidence["count"])
	assert.Equal(t, []int{19}, anomalies[0].Evidence["rows"])
	assert.LessOrEqual(t, anomalies[0].Confidence, 0.99)
	assert.GreaterOrEqual(t, anomalies[0].Confidence, 0.8)
}

func TestDiscover_LimitsAndOrdering(t *testing.T) {
	var cols []*dataset.Column
	for k := 1; k <= 5; k++ {
		k := k
		cols = append(cols, named(fmt.Sprintf("c%d", k), numbers(15, func(i int) float64 { return float64(k*i + k) })))
	}
	ds := dataset.MustFromColumns("t", cols...)

	res := discover(t, ds, nil)

	cfg := defaultCfg()
	assert.Len(t, res.OfType(models.InsightCorrelation), cfg.MaxCorrelations)
	assert.Len(t, res.OfType(models.InsightTrend), cfg.MaxTrends)
	for i := 1; i < len(res.Insights); i++ {
		assert.GreaterOrEqual(t, res.Insights[i-1].Confidence, res.Insights[i].Confidence)
	}
	assert.Equal(t, cfg.MaxCorrelations, res.CountsByType[models.InsightCorrelation])
	assert.Equal(t, len(res.Insights), res.HighConfidence)
}

func TestDiscover_IsDeterministic(t *testing.T) {
	ds := dataset.MustFromColumns("t",
		named("a", numbers(30, func(i int) float64 { return float64(i % 7) })),
		named("b", numbers(30, func(i int) float64 { return float64(i%7) * 2.5 })),
		dataset.NewColumn("g", repeat("x", 25, "y", 5)...),
	)

	first := discover(t, ds, nil)
	second := discover(t, ds, nil)

	assert.Equal(t, first, second)
}

func TestDiscover_UsesProfileTypes(t *testing.T) {
	ds := dataset.MustFromColumns("t",
		named("x", numbers(10, func(i int) float64 { return float64(i + 1) })),
		named("y", numbers(10, func(i int) float64 { return float64(2 * (i + 1)) })),
	)
	profile, err := profiler.Profile(context.Background(), ds, config.DefaultAnalysisConfig().Profiler, nil)
	require.NoError(t, err)

	withProfile := discover(t, ds, profile)
	without := discover(t, ds, nil)

	assert.Equal(t, without.Insights, withProfile.Insights)
}

func TestAgent_Execute(t *testing.T) {
	a := New(defaultCfg())
	var actions []string
	a.SetEventCallback(func(e models.ActivityEvent) { actions = append(actions, e.Action) })

	actx := agent.NewAnalysisContext("task-1", dataset.MustFromColumns("t", dataset.NewColumn("c", "a", "a", "b")))
	out, err := a.Execute(context.Background(), actx)
	require.NoError(t, err)

	_, ok := out.(*models.InsightResult)
	assert.True(t, ok)
	require.GreaterOrEqual(t, len(actions), 2)
	assert.Equal(t, models.ActionStarted, actions[0])
	assert.Equal(t, models.ActionCompleted, actions[len(actions)-1])
}

func repeat(a string, n int, b string, m int) []string {
	out := make([]string, 0, n+m)
	for i := 0; i < n; i++ {
		out = append(out, a)
	}
	for i := 0; i < m; i++ {
		out = append(out, b)
	}
	return out
}
