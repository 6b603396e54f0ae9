// Package visualization implements the chart selection stage. Chart payloads
// are written to the blob store; the stage result carries only references.
package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/blob"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

// Name is the agent name reported in activity events.
const Name = "visualization"

// ErrNoDataset is returned when the analysis context carries no dataset.
var ErrNoDataset = errors.New("no dataset to visualise")

// geoKeywords mark column names that suggest a map visualization.
var geoKeywords = []string{"country", "state", "city", "region", "location", "lat", "lon", "latitude", "longitude"}

// Agent is the visualization stage.
type Agent struct {
	*agent.BaseAgent
	cfg   config.VisualizationConfig
	store blob.Store
}

// New creates a visualization agent writing payloads to store.
func New(cfg config.VisualizationConfig, store blob.Store) *Agent {
	return &Agent{
		BaseAgent: agent.NewBaseAgent(Name, agent.StageVisualization, "chart generation"),
		cfg:       cfg,
		store:     store,
	}
}

// Execute selects charts, stores their payloads and returns a *models.VisualizationResult.
func (a *Agent) Execute(ctx context.Context, actx *agent.AnalysisContext) (any, error) {
	return a.Run(ctx, actx.TaskID, func(ctx context.Context, emit agent.Emitter) (any, error) {
		if actx.Dataset == nil {
			return nil, ErrNoDataset
		}
		return Generate(ctx, actx, a.cfg, a.store, emit)
	})
}

// Generate builds the chart set for actx and writes each payload to store.
// Any store failure fails the whole stage.
func Generate(ctx context.Context, actx *agent.AnalysisContext, cfg config.VisualizationConfig, store blob.Store, emit agent.Emitter) (*models.VisualizationResult, error) {
	if emit == nil {
		emit = func(string, map[string]any) {}
	}
	b := &builder{
		ds:   actx.Dataset,
		cfg:  cfg,
		cols: agent.ClassifyColumns(actx.Dataset, actx.Profiler),
	}

	var drafts []draft
	drafts = append(drafts, b.histograms()...)
	drafts = append(drafts, b.scatters(actx.Insights)...)
	drafts = append(drafts, b.bars(actx.Insights)...)
	drafts = append(drafts, b.heatmap()...)
	emit(fmt.Sprintf("Selected %d charts", len(drafts)), map[string]any{"charts": len(drafts)})

	res := &models.VisualizationResult{
		Charts:      make([]models.Chart, 0, len(drafts)),
		Suggestions: suggestions(b.cols, actx.Dataset.ColumnNames(), len(drafts)),
	}
	seen := make(map[string]int, len(drafts))
	for _, d := range drafts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n := seen[d.chart.ID]; n > 0 {
			seen[d.chart.ID]++
			d.chart.ID = fmt.Sprintf("%s_%d", d.chart.ID, n+1)
		} else {
			seen[d.chart.ID] = 1
		}
		data, err := json.Marshal(d.payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode chart %s: %w", d.chart.ID, err)
		}
		ref := blob.ChartKey(actx.TaskID, d.chart.ID)
		if err := store.Put(ctx, ref, data); err != nil {
			return nil, fmt.Errorf("failed to store chart %s: %w", d.chart.ID, err)
		}
		d.chart.PayloadRef = ref
		res.Charts = append(res.Charts, d.chart)
	}
	emit("Stored chart payloads", map[string]any{"charts": len(res.Charts)})
	return res, nil
}

func suggestions(cols agent.ColumnSets, names []string, charts int) []models.VisualizationSuggestion {
	out := []models.VisualizationSuggestion{}
	if len(cols.Datetime) > 0 {
		col := cols.Datetime[0]
		out = append(out, models.VisualizationSuggestion{
			Type:        "time_series",
			Title:       fmt.Sprintf("Create a time series visualization for %s", col),
			Description: fmt.Sprintf("Column '%s' is temporal. A line chart would show how values change over time.", col),
			Columns:     []string{col},
		})
	}

	var geo []string
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, kw := range geoKeywords {
			if strings.Contains(lower, kw) {
				geo = append(geo, name)
				break
			}
		}
	}
	if len(geo) > 0 {
		out = append(out, models.VisualizationSuggestion{
			Type:        "geographic",
			Title:       "Create a geographic visualization",
			Description: fmt.Sprintf("Geographic columns detected: %s. A map would show spatial patterns.", strings.Join(geo, ", ")),
			Columns:     geo,
		})
	}

	if charts < 3 {
		out = append(out, models.VisualizationSuggestion{
			Type:        "exploration",
			Title:       "Explore more visualizations",
			Description: "Few charts could be generated automatically. Consider custom charts for other aspects of the data.",
		})
	}
	return out
}
