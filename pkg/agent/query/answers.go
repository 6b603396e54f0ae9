package query

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

const (
	defaultListSize = 5
	maxListSize     = 20
	maxColumnNames  = 20
)

const helpText = `I can answer questions about this analysis. Try asking:
- "How many rows are in the dataset?"
- "What columns are available?"
- "What is the data quality score?"
- "Are there missing values in price?"
- "Which columns have outliers?"
- "What are the top 3 insights?"
- "What correlations exist?"
- "What should I do next?"
- "What charts were created?"
- "Describe price"`

// facts are the dataset shape known to the query agent, taken from the
// loaded dataset when present and from the profile otherwise.
type facts struct {
	known   bool
	rows    int
	columns []string
}

func factsOf(actx *agent.AnalysisContext) facts {
	if actx == nil {
		return facts{}
	}
	if ds := actx.Dataset; ds != nil {
		return facts{known: true, rows: ds.NumRows(), columns: ds.ColumnNames()}
	}
	if p := actx.Profiler; p != nil {
		return facts{known: true, rows: p.Overview.Rows, columns: p.ColumnOrder}
	}
	return facts{}
}

// answerer renders the rule-based reply for one classified question.
type answerer struct {
	actx     *agent.AnalysisContext
	facts    facts
	entities Entities
}

func (a answerer) answer(intent Intent) string {
	switch intent {
	case IntentDatasetSize:
		return a.datasetSize()
	case IntentColumns:
		return a.columnList()
	case IntentMissingValues:
		return a.missingValues()
	case IntentQuality:
		return a.quality()
	case IntentOutliers:
		return a.outliers()
	case IntentInsights:
		return a.insights()
	case IntentCorrelations:
		return a.correlations()
	case IntentRecommendations:
		return a.recommendations()
	case IntentCharts:
		return a.charts()
	case IntentSummary:
		return a.summary()
	default:
		return helpText
	}
}

func (a answerer) datasetSize() string {
	if !a.facts.known {
		return "The dataset size is not available yet."
	}
	return fmt.Sprintf("The dataset has %s rows and %d columns.", thousands(a.facts.rows), len(a.facts.columns))
}

func (a answerer) columnList() string {
	if !a.facts.known {
		return "Column information is not available yet."
	}
	cols := a.facts.columns
	if len(cols) == 0 {
		return "The dataset has no columns."
	}
	names := make([]string, 0, len(cols))
	for i, c := range cols {
		if i == maxColumnNames {
			names = append(names, fmt.Sprintf("and %d more", len(cols)-maxColumnNames))
			break
		}
		if t, ok := a.columnType(c); ok {
			c = fmt.Sprintf("%s (%s)", c, t)
		}
		names = append(names, c)
	}
	return fmt.Sprintf("The dataset has %d columns: %s.", len(cols), strings.Join(names, ", "))
}

func (a answerer) columnType(col string) (models.ColumnType, bool) {
	p := a.actx.Profiler
	if p == nil {
		return "", false
	}
	t, ok := p.Types[col]
	return t.Type, ok
}

func (a answerer) missingValues() string {
	p := a.actx.Profiler
	if p == nil {
		return "Missing value analysis is not available yet."
	}
	if cols := a.entities.Columns; len(cols) > 0 {
		lines := make([]string, 0, len(cols))
		for _, c := range cols {
			m := p.Missing[c]
			lines = append(lines, fmt.Sprintf("%s has %d missing values (%s%%, %s severity).",
				c, m.Count, formatFloat(m.Percentage), orNone(m.Severity)))
		}
		return strings.Join(lines, "\n")
	}

	affected := a.rankColumns(func(c string) (int, float64) {
		m := p.Missing[c]
		return m.Count, m.Percentage
	})
	if threshold, ok := a.entities.Percent(); ok {
		var over []string
		for _, c := range affected {
			if pct := p.Missing[c].Percentage; pct > threshold {
				over = append(over, fmt.Sprintf("- %s: %s%%", c, formatFloat(pct)))
			}
		}
		if len(over) == 0 {
			return fmt.Sprintf("No column has more than %s%% missing values.", formatFloat(threshold))
		}
		return fmt.Sprintf("%d columns have more than %s%% missing values:\n%s",
			len(over), formatFloat(threshold), strings.Join(over, "\n"))
	}

	total := p.TotalMissing()
	if total == 0 {
		return "No missing values were found in the dataset."
	}
	limit := a.entities.Limit(defaultListSize, maxListSize)
	lines := make([]string, 0, limit)
	for i, c := range affected {
		if i == limit {
			break
		}
		m := p.Missing[c]
		lines = append(lines, fmt.Sprintf("- %s: %d missing (%s%%)", c, m.Count, formatFloat(m.Percentage)))
	}
	return fmt.Sprintf("Found %s missing values across %d columns:\n%s",
		thousands(total), len(affected), strings.Join(lines, "\n"))
}

func (a answerer) quality() string {
	p := a.actx.Profiler
	if p == nil {
		return "Data quality analysis is not available yet."
	}
	if p.InsufficientData {
		return "There is not enough data to assess quality."
	}
	msg := fmt.Sprintf("The data quality score is %d%% (%s).", int(p.QualityScore*100+0.5), qualityLabel(p.QualityScore))
	if n := len(p.QualityIssues); n > 0 {
		msg += fmt.Sprintf(" %d quality issues were found; the most severe is %s.", n, p.HighestSeverity())
	} else {
		msg += " No quality issues were found."
	}
	return msg
}

func qualityLabel(score float64) string {
	switch {
	case score >= 0.9:
		return "excellent"
	case score >= 0.7:
		return "good"
	case score >= 0.5:
		return "fair"
	default:
		return "needs improvement"
	}
}

func (a answerer) outliers() string {
	p := a.actx.Profiler
	if p == nil {
		return "Outlier analysis is not available yet."
	}
	if cols := a.entities.Columns; len(cols) > 0 {
		lines := make([]string, 0, len(cols))
		for _, c := range cols {
			o, ok := p.Outliers[c]
			if !ok {
				lines = append(lines, fmt.Sprintf("%s is not numeric, so it was not checked for outliers.", c))
				continue
			}
			lines = append(lines, fmt.Sprintf("%s has %d outliers (%s%%) outside [%s, %s].",
				c, o.Count, formatFloat(o.Percentage), formatFloat(o.LowerBound), formatFloat(o.UpperBound)))
		}
		return strings.Join(lines, "\n")
	}

	affected := a.rankColumns(func(c string) (int, float64) {
		o := p.Outliers[c]
		return o.Count, o.Percentage
	})
	if len(affected) == 0 {
		return "No significant outliers were detected."
	}
	total := 0
	lines := make([]string, 0, len(affected))
	limit := a.entities.Limit(defaultListSize, maxListSize)
	for i, c := range affected {
		o := p.Outliers[c]
		total += o.Count
		if i < limit {
			lines = append(lines, fmt.Sprintf("- %s: %d outliers (%s%%, %s severity)",
				c, o.Count, formatFloat(o.Percentage), orNone(o.Severity)))
		}
	}
	return fmt.Sprintf("Outliers were detected in %d columns, %s values in total:\n%s",
		len(affected), thousands(total), strings.Join(lines, "\n"))
}

// rankColumns returns the profiled columns with a non-zero count, by
// descending count and then dataset order.
func (a answerer) rankColumns(measure func(col string) (int, float64)) []string {
	var out []string
	for _, c := range a.actx.Profiler.ColumnOrder {
		if n, _ := measure(c); n > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, _ := measure(out[i])
		nj, _ := measure(out[j])
		return ni > nj
	})
	return out
}

func (a answerer) insights() string {
	in := a.actx.Insights
	if in == nil {
		return "Insight discovery has not produced results yet."
	}
	list := a.mentioning(in.Insights)
	if len(list) == 0 {
		return "No notable insights were found."
	}
	limit := a.entities.Limit(defaultListSize, maxListSize)
	lines := make([]string, 0, limit)
	for i, ins := range list {
		if i == limit {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, ins.Title, ins.Description))
	}
	return fmt.Sprintf("I found %d insights:\n%s", len(list), strings.Join(lines, "\n"))
}

func (a answerer) correlations() string {
	in := a.actx.Insights
	if in == nil {
		return "Insight discovery has not produced results yet."
	}
	list := a.mentioning(in.OfType(models.InsightCorrelation))
	if len(list) == 0 {
		return "No significant correlations were found between the numeric columns."
	}
	limit := a.entities.Limit(defaultListSize, maxListSize)
	lines := make([]string, 0, limit)
	for i, ins := range list {
		if i == limit {
			break
		}
		r, _ := ins.Evidence["correlation"].(float64)
		lines = append(lines, fmt.Sprintf("- %s: r = %.2f", strings.Join(ins.Columns, " and "), r))
	}
	return fmt.Sprintf("%d significant correlations were found:\n%s\nValues close to 1 or -1 indicate strong relationships.",
		len(list), strings.Join(lines, "\n"))
}

// mentioning keeps the insights touching any column named in the question;
// with no column entities it returns all of them.
func (a answerer) mentioning(list []models.Insight) []models.Insight {
	if len(a.entities.Columns) == 0 {
		return list
	}
	wanted := make(map[string]struct{}, len(a.entities.Columns))
	for _, c := range a.entities.Columns {
		wanted[c] = struct{}{}
	}
	var out []models.Insight
	for _, ins := range list {
		for _, c := range ins.Columns {
			if _, ok := wanted[c]; ok {
				out = append(out, ins)
				break
			}
		}
	}
	return out
}

func (a answerer) recommendations() string {
	r := a.actx.Recommendations
	if r == nil || len(r.Recommendations) == 0 {
		return "No recommendations are available yet."
	}
	limit := a.entities.Limit(defaultListSize, maxListSize)
	lines := make([]string, 0, limit)
	for i, rec := range r.Recommendations {
		if i == limit {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. [%s] %s: %s", i+1, strings.ToUpper(string(rec.Priority)), rec.Title, rec.Description))
	}
	return fmt.Sprintf("There are %d recommendations:\n%s", len(r.Recommendations), strings.Join(lines, "\n"))
}

func (a answerer) charts() string {
	v := a.actx.Visualizations
	if v == nil || len(v.Charts) == 0 {
		return "No charts have been generated yet."
	}
	lines := make([]string, 0, len(v.Charts))
	for _, c := range v.Charts {
		lines = append(lines, fmt.Sprintf("- %s (%s)", c.Title, c.Type))
	}
	return fmt.Sprintf("%d charts were created:\n%s", len(v.Charts), strings.Join(lines, "\n"))
}

func (a answerer) summary() string {
	if cols := a.entities.Columns; len(cols) > 0 && a.actx.Profiler != nil {
		parts := make([]string, 0, len(cols))
		for _, c := range cols {
			parts = append(parts, a.describeColumn(c))
		}
		return strings.Join(parts, "\n\n")
	}
	if !a.facts.known {
		return "The analysis has not produced a summary yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dataset overview: %s rows and %d columns.", thousands(a.facts.rows), len(a.facts.columns))
	if p := a.actx.Profiler; p != nil && !p.InsufficientData {
		fmt.Fprintf(&b, "\nQuality score: %d%% (%s).", int(p.QualityScore*100+0.5), qualityLabel(p.QualityScore))
		fmt.Fprintf(&b, "\nMissing values: %s.", thousands(p.TotalMissing()))
	}
	if in := a.actx.Insights; in != nil {
		fmt.Fprintf(&b, "\nInsights: %d (%d high confidence).", len(in.Insights), in.HighConfidence)
	}
	if r := a.actx.Recommendations; r != nil {
		fmt.Fprintf(&b, "\nRecommendations: %d.", len(r.Recommendations))
	}
	if v := a.actx.Visualizations; v != nil {
		fmt.Fprintf(&b, "\nCharts: %d.", len(v.Charts))
	}
	return b.String()
}

func (a answerer) describeColumn(col string) string {
	p := a.actx.Profiler
	t := p.Types[col]
	var b strings.Builder
	fmt.Fprintf(&b, "%s is a %s column with %d unique values", col, t.Type, t.UniqueCount)
	if m := p.Missing[col]; m.Count > 0 {
		fmt.Fprintf(&b, " and %d missing (%s%%)", m.Count, formatFloat(m.Percentage))
	}
	b.WriteString(".")
	if s, ok := p.Statistics[col]; ok {
		fmt.Fprintf(&b, "\nMean %s, median %s, std %s, range %s to %s, distribution %s.",
			formatFloat(s.Mean), formatFloat(s.Median), formatFloat(s.Std),
			formatFloat(s.Min), formatFloat(s.Max), s.Shape)
	}
	if o, ok := p.Outliers[col]; ok && o.Count > 0 {
		fmt.Fprintf(&b, "\n%d outliers (%s%%).", o.Count, formatFloat(o.Percentage))
	}
	return b.String()
}

func orNone(s models.Severity) models.Severity {
	if s == "" {
		return models.SeverityNone
	}
	return s
}

// formatFloat prints at most two decimals without trailing zeros.
func formatFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// thousands formats n with comma separators.
func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
