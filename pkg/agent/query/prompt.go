package query

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/adaa/pkg/agent"
)

const (
	promptColumns         = 10
	promptInsights        = 3
	promptRecommendations = 3
)

// systemPrompt describes the analysis to the model. Sections that have not
// been produced are omitted.
func systemPrompt(actx *agent.AnalysisContext) string {
	f := factsOf(actx)
	var b strings.Builder
	b.WriteString("You are an expert data analyst assistant. Answer questions about the user's dataset using only the analysis results below.\n\n")

	b.WriteString("Dataset:\n")
	if f.known {
		fmt.Fprintf(&b, "- Rows: %d\n- Columns: %d\n", f.rows, len(f.columns))
		names := f.columns
		if len(names) > promptColumns {
			names = names[:promptColumns]
		}
		fmt.Fprintf(&b, "- Column names: %s\n", strings.Join(names, ", "))
	} else {
		b.WriteString("- Shape: unknown\n")
	}

	if p := actx.Profiler; p != nil {
		fmt.Fprintf(&b, "\nData quality:\n- Quality score: %.2f\n- Missing values: %d\n- Quality issues: %d\n",
			p.QualityScore, p.TotalMissing(), len(p.QualityIssues))
	}

	if in := actx.Insights; in != nil && len(in.Insights) > 0 {
		b.WriteString("\nKey insights:\n")
		for i, ins := range in.Insights {
			if i == promptInsights {
				break
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, ins.Description)
		}
	}

	if r := actx.Recommendations; r != nil && len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for i, rec := range r.Recommendations {
			if i == promptRecommendations {
				break
			}
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, rec.Title, rec.Description)
		}
	}

	b.WriteString(`
Instructions:
- Answer clearly and concisely.
- Use the figures above; if the information is not there, say so.
- Suggest a concrete next step when it helps.
`)
	return b.String()
}
