package profiler

import (
	"strings"
	"time"

	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

// maxSampleValues is how many example values are reported per column.
const maxSampleValues = 5

var booleanTokens = map[string]struct{}{
	"true": {}, "false": {},
	"yes": {}, "no": {},
	"y": {}, "n": {},
	"t": {}, "f": {},
	"1": {}, "0": {},
}

// dateLayouts are tried in order when checking for datetime values.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"01/02/2006",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func isBoolean(v string) bool {
	_, ok := booleanTokens[strings.ToLower(v)]
	return ok
}

func isNumeric(v string) bool {
	_, ok := dataset.ParseFloat(v)
	return ok
}

// IsDatetime reports whether v parses with one of the accepted date layouts.
func IsDatetime(v string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// InferType classifies a column by sampling its first non-missing values.
// Order of precedence: boolean, numeric, datetime, categorical, text.
func InferType(col *dataset.Column, cfg config.ProfilerConfig) models.TypeInference {
	values := col.NonMissing()
	sample := values
	if len(sample) > cfg.SampleSize {
		sample = sample[:cfg.SampleSize]
	}

	distinct := make(map[string]struct{}, len(values))
	var samples []string
	for _, v := range values {
		if _, ok := distinct[v]; !ok {
			distinct[v] = struct{}{}
			if len(samples) < maxSampleValues {
				samples = append(samples, v)
			}
		}
	}

	inf := models.TypeInference{
		Type:         models.ColumnTypeText,
		UniqueCount:  len(distinct),
		SampleValues: samples,
	}
	if len(sample) == 0 {
		return inf
	}

	if share(sample, isBoolean) == 1 && lowerDistinct(sample) <= 2 {
		inf.Type = models.ColumnTypeBoolean
		inf.Confidence = 1
		inf.Inconsistent = countNot(values, isBoolean)
		return inf
	}
	if s := share(sample, isNumeric); s >= cfg.TypeMatchRatio {
		inf.Type = models.ColumnTypeNumeric
		inf.Confidence = s
		inf.Inconsistent = countNot(values, isNumeric)
		return inf
	}
	if s := share(sample, IsDatetime); s >= cfg.TypeMatchRatio {
		inf.Type = models.ColumnTypeDatetime
		inf.Confidence = s
		inf.Inconsistent = countNot(values, IsDatetime)
		return inf
	}

	uniqueRatio := float64(len(distinct)) / float64(len(values))
	if uniqueRatio < cfg.CategoricalRatio || len(distinct) < cfg.CategoricalMaxUnique {
		inf.Type = models.ColumnTypeCategorical
		inf.Confidence = 1 - uniqueRatio
		return inf
	}

	inf.Confidence = uniqueRatio
	return inf
}

func share(values []string, match func(string) bool) float64 {
	if len(values) == 0 {
		return 0
	}
	hits := 0
	for _, v := range values {
		if match(v) {
			hits++
		}
	}
	return float64(hits) / float64(len(values))
}

func countNot(values []string, match func(string) bool) int {
	n := 0
	for _, v := range values {
		if !match(v) {
			n++
		}
	}
	return n
}

func lowerDistinct(values []string) int {
	seen := make(map[string]struct{}, 2)
	for _, v := range values {
		seen[strings.ToLower(v)] = struct{}{}
	}
	return len(seen)
}
