package agent

import (
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

// fallbackNumericShare is the parseable share that makes a column numeric
// when no profile is available.
const fallbackNumericShare = 0.9

// ColumnSets groups column names by the role they play in analysis.
type ColumnSets struct {
	Numeric []string
	// Labelled holds the categorical, boolean and text columns.
	Labelled []string
	Datetime []string
}

// ClassifyColumns groups the columns of ds using the profiler's type
// inference. Without a profile (the profiler failed) numeric columns are
// re-detected from raw values and every other non-empty column is labelled.
func ClassifyColumns(ds *dataset.Dataset, profile *models.ProfilerResult) ColumnSets {
	var cs ColumnSets
	if ds == nil {
		return cs
	}
	if profile != nil && len(profile.Types) > 0 {
		for _, name := range ds.ColumnNames() {
			inf, ok := profile.Types[name]
			if !ok {
				continue
			}
			switch inf.Type {
			case models.ColumnTypeNumeric:
				cs.Numeric = append(cs.Numeric, name)
			case models.ColumnTypeDatetime:
				cs.Datetime = append(cs.Datetime, name)
			default:
				cs.Labelled = append(cs.Labelled, name)
			}
		}
		return cs
	}

	for _, c := range ds.Columns {
		present := len(c.NonMissing())
		if present == 0 {
			continue
		}
		vals, _ := c.Floats()
		if float64(len(vals))/float64(present) >= fallbackNumericShare {
			cs.Numeric = append(cs.Numeric, c.Name)
		} else {
			cs.Labelled = append(cs.Labelled, c.Name)
		}
	}
	return cs
}
