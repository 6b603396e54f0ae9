package agent

import (
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

// AnalysisContext accumulates stage sections during one orchestrator run.
// A section is nil until its stage succeeds; sections are never overwritten.
// The context is owned by a single run and needs no locking.
type AnalysisContext struct {
	TaskID  string
	Dataset *dataset.Dataset

	Profiler        *models.ProfilerResult
	Insights        *models.InsightResult
	Visualizations  *models.VisualizationResult
	Recommendations *models.RecommendationResult
}

// NewAnalysisContext creates an empty context for a dataset.
func NewAnalysisContext(taskID string, ds *dataset.Dataset) *AnalysisContext {
	return &AnalysisContext{TaskID: taskID, Dataset: ds}
}

// Set stores the section produced by stage. It rejects a second write and a
// value whose type does not belong to the stage.
func (c *AnalysisContext) Set(stage Stage, section any) error {
	if c.Has(stage) {
		return fmt.Errorf("%w: %s", ErrSectionExists, stage)
	}
	switch stage {
	case StageProfiler:
		v, ok := section.(*models.ProfilerResult)
		if !ok || v == nil {
			return fmt.Errorf("%w: %s got %T", ErrSectionType, stage, section)
		}
		c.Profiler = v
	case StageInsightDiscovery:
		v, ok := section.(*models.InsightResult)
		if !ok || v == nil {
			return fmt.Errorf("%w: %s got %T", ErrSectionType, stage, section)
		}
		c.Insights = v
	case StageVisualization:
		v, ok := section.(*models.VisualizationResult)
		if !ok || v == nil {
			return fmt.Errorf("%w: %s got %T", ErrSectionType, stage, section)
		}
		c.Visualizations = v
	case StageRecommendation:
		v, ok := section.(*models.RecommendationResult)
		if !ok || v == nil {
			return fmt.Errorf("%w: %s got %T", ErrSectionType, stage, section)
		}
		c.Recommendations = v
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	return nil
}

// Has reports whether stage has produced its section.
func (c *AnalysisContext) Has(stage Stage) bool {
	switch stage {
	case StageProfiler:
		return c.Profiler != nil
	case StageInsightDiscovery:
		return c.Insights != nil
	case StageVisualization:
		return c.Visualizations != nil
	case StageRecommendation:
		return c.Recommendations != nil
	}
	return false
}

// Without returns a shallow copy with stage's section cleared, used to re-run
// a single stage against an otherwise complete context.
func (c *AnalysisContext) Without(stage Stage) *AnalysisContext {
	cp := *c
	switch stage {
	case StageProfiler:
		cp.Profiler = nil
	case StageInsightDiscovery:
		cp.Insights = nil
	case StageVisualization:
		cp.Visualizations = nil
	case StageRecommendation:
		cp.Recommendations = nil
	}
	return &cp
}

// MarshalJSON encodes the context as a stage → section map; missing sections are null.
func (c *AnalysisContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[Stage]any{
		StageProfiler:         c.Profiler,
		StageInsightDiscovery: c.Insights,
		StageVisualization:    c.Visualizations,
		StageRecommendation:   c.Recommendations,
	})
}

// FromResult rebuilds a context from a stored analysis result, e.g. to answer
// queries or re-run one stage after the original run has finished.
func FromResult(ds *dataset.Dataset, r *models.AnalysisResult) *AnalysisContext {
	return &AnalysisContext{
		TaskID:          r.TaskID,
		Dataset:         ds,
		Profiler:        r.Profiler,
		Insights:        r.Insights,
		Visualizations:  r.Visualizations,
		Recommendations: r.Recommendations,
	}
}
