package query

import (
	"strings"
	"unicode"
)

// Intent is the classified purpose of a question.
type Intent string

// Intents, in rule-table order. IntentOther means no rule scored.
const (
	IntentDatasetSize     Intent = "dataset_size"
	IntentColumns         Intent = "columns"
	IntentMissingValues   Intent = "missing_values"
	IntentQuality         Intent = "quality"
	IntentOutliers        Intent = "outliers"
	IntentInsights        Intent = "insights"
	IntentCorrelations    Intent = "correlations"
	IntentRecommendations Intent = "recommendations"
	IntentCharts          Intent = "charts"
	IntentSummary         Intent = "summary"
	IntentHelp            Intent = "help"
	IntentOther           Intent = "other"
)

// rule scores 2 per phrase contained in the question and 1 per keyword
// present as a whole token.
type rule struct {
	intent   Intent
	phrases  []string
	keywords []string
}

// rules is ordered: on equal scores the earlier rule wins.
var rules = []rule{
	{
		intent: IntentDatasetSize,
		phrases: []string{
			"how many rows", "how many records", "dataset size", "data size",
			"number of rows", "row count", "record count", "how big",
			"how much data",
		},
		keywords: []string{
			"rows", "records", "size",
		},
	},
	{
		intent: IntentColumns,
		phrases: []string{
			"what columns", "which columns", "list columns", "column names",
			"how many columns", "what fields", "show columns",
			"available columns",
		},
		keywords: []string{
			"columns", "column", "fields", "features", "variables",
		},
	},
	{
		intent: IntentMissingValues,
		phrases: []string{
			"missing values", "null values", "missing data", "gaps in data",
		},
		keywords: []string{
			"missing", "null", "nulls", "empty", "nan", "incomplete", "blank",
		},
	},
	{
		intent: IntentQuality,
		phrases: []string{
			"data quality", "quality score", "how good", "data health",
			"how clean",
		},
		keywords: []string{
			"quality", "clean", "health", "reliable",
		},
	},
	{
		intent: IntentOutliers,
		phrases: []string{
			"extreme values", "unusual values",
		},
		keywords: []string{
			"outlier", "outliers", "anomaly", "anomalies", "unusual", "abnormal",
			"extreme",
		},
	},
	{
		intent: IntentInsights,
		phrases: []string{
			"what did you find", "key findings", "main insights", "what insights",
		},
		keywords: []string{
			"insight", "insights", "finding", "findings", "trend", "trends",
			"pattern", "patterns", "discover",
		},
	},
	{
		intent: IntentCorrelations,
		phrases: []string{
			"related to", "relationship between", "correlated with",
		},
		keywords: []string{
			"correlation", "correlations", "correlated", "relationship",
			"relationships", "related", "association",
		},
	},
	{
		intent: IntentRecommendations,
		phrases: []string{
			"what next", "what should i do", "next steps", "what to do",
		},
		keywords: []string{
			"recommend", "recommendation", "recommendations", "suggestion",
			"suggestions", "advice", "improve", "should",
		},
	},
	{
		intent: IntentCharts,
		phrases: []string{
			"what charts", "which charts", "show me a chart",
		},
		keywords: []string{
			"chart", "charts", "graph", "graphs", "plot", "plots", "visual",
			"visualization", "visualizations",
		},
	},
	{
		intent: IntentSummary,
		phrases: []string{
			"tell me about", "give me an overview", "sum up",
		},
		keywords: []string{
			"summary", "summarize", "overview", "describe",
		},
	},
	{
		intent: IntentHelp,
		phrases: []string{
			"what can you do", "what can i ask", "how do i", "help me",
		},
		keywords: []string{
			"help", "guide",
		},
	},
}

// Classification is the winning intent of a normalized question.
type Classification struct {
	Intent Intent
	Score  int

	// PhraseMatch is true when the winning rule matched at least one phrase.
	PhraseMatch bool
}

// Classify scores every rule against a normalized question.
func Classify(normalized string) Classification {
	padded := " " + normalized + " "
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		tokens[tok] = struct{}{}
	}

	best := Classification{Intent: IntentOther}
	for _, r := range rules {
		score, phrased := 0, false
		for _, p := range r.phrases {
			if strings.Contains(padded, " "+p+" ") {
				score += 2
				phrased = true
			}
		}
		for _, k := range r.keywords {
			if _, ok := tokens[k]; ok {
				score++
			}
		}
		if score > best.Score {
			best = Classification{Intent: r.intent, Score: score, PhraseMatch: phrased}
		}
	}
	return best
}

// Normalize lowercases q, replaces punctuation with spaces and collapses
// whitespace. Underscores, decimal points between digits and a percent sign
// after a digit survive so column names and numbers stay intact.
func Normalize(q string) string {
	runes := []rune(strings.ToLower(q))
	var b strings.Builder
	b.Grow(len(runes))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case r == '.' && i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]):
			b.WriteRune(r)
		case r == '%' && i > 0 && unicode.IsDigit(runes[i-1]):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
