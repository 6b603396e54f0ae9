package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/adaa/pkg/models"
)

func TestParseStage(t *testing.T) {
	for _, st := range AllStages() {
		got, err := ParseStage(string(st))
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}

	_, err := ParseStage("query")
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestAllStages_Order(t *testing.T) {
	assert.Equal(t, []Stage{
		StageProfiler,
		StageInsightDiscovery,
		StageVisualization,
		StageRecommendation,
	}, AllStages())
}

func TestAnalysisContext_Set(t *testing.T) {
	t.Run("stores each section once", func(t *testing.T) {
		c := NewAnalysisContext("task-1", nil)
		profile := &models.ProfilerResult{QualityScore: 0.9}

		require.NoError(t, c.Set(StageProfiler, profile))
		assert.True(t, c.Has(StageProfiler))
		assert.Same(t, profile, c.Profiler)

		err := c.Set(StageProfiler, &models.ProfilerResult{})
		assert.ErrorIs(t, err, ErrSectionExists)
		assert.Same(t, profile, c.Profiler)
	})

	t.Run("rejects a section of the wrong type", func(t *testing.T) {
		c := NewAnalysisContext("task-1", nil)

		err := c.Set(StageInsightDiscovery, &models.ProfilerResult{})
		assert.ErrorIs(t, err, ErrSectionType)
		assert.False(t, c.Has(StageInsightDiscovery))
	})

	t.Run("rejects an unknown stage", func(t *testing.T) {
		c := NewAnalysisContext("task-1", nil)
		assert.ErrorIs(t, c.Set(Stage("bogus"), 1), ErrUnknownStage)
	})
}

func TestAnalysisContext_Without(t *testing.T) {
	c := NewAnalysisContext("task-1", nil)
	require.NoError(t, c.Set(StageProfiler, &models.ProfilerResult{}))
	require.NoError(t, c.Set(StageInsightDiscovery, &models.InsightResult{}))

	cp := c.Without(StageInsightDiscovery)

	assert.True(t, cp.Has(StageProfiler))
	assert.False(t, cp.Has(StageInsightDiscovery))
	assert.True(t, c.Has(StageInsightDiscovery), "original context is untouched")
}

func TestAnalysisContext_MarshalJSON(t *testing.T) {
	c := NewAnalysisContext("task-1", nil)
	require.NoError(t, c.Set(StageProfiler, &models.ProfilerResult{QualityScore: 1}))

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 4)
	assert.Equal(t, "null", string(decoded["insight_discovery"]))
	assert.NotEqual(t, "null", string(decoded["profiler"]))
}
