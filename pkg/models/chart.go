package models

// ChartType is the kind of chart produced by the visualization agent.
type ChartType string

// Chart types
const (
	ChartHistogram ChartType = "histogram"
	ChartScatter   ChartType = "scatter"
	ChartBar       ChartType = "bar"
	ChartHeatmap   ChartType = "heatmap"
)

// Chart is chart metadata. The renderable payload lives in the blob store
// under PayloadRef and is never embedded here.
type Chart struct {
	ID          string    `json:"id"`
	Type        ChartType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Columns     []string  `json:"columns"`
	PayloadRef  string    `json:"payload_ref"`
}

// ChartPayload is the self-contained renderable description of a chart.
type ChartPayload struct {
	Type   ChartType `json:"type"`
	Series []Series  `json:"series"`
	Layout Layout    `json:"layout"`
}

// Series is one trace of a chart. Only the fields relevant to the chart type are set.
type Series struct {
	Name string      `json:"name"`
	Kind string      `json:"kind"`
	X    []any       `json:"x,omitempty"`
	Y    []any       `json:"y,omitempty"`
	Z    [][]float64 `json:"z,omitempty"`
}

// Layout describes chart presentation.
type Layout struct {
	Title  string `json:"title"`
	XAxis  string `json:"xaxis_title,omitempty"`
	YAxis  string `json:"yaxis_title,omitempty"`
	Height int    `json:"height"`
	Margin Margin `json:"margin"`
}

// Margin holds chart margins in pixels.
type Margin struct {
	Left   int `json:"l"`
	Right  int `json:"r"`
	Top    int `json:"t"`
	Bottom int `json:"b"`
}

// VisualizationSuggestion is a chart the user may want that was not generated.
type VisualizationSuggestion struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Columns     []string `json:"columns,omitempty"`
}

// VisualizationResult is the visualization section of the analysis context.
type VisualizationResult struct {
	Charts      []Chart                   `json:"charts"`
	Suggestions []VisualizationSuggestion `json:"suggestions"`
}
