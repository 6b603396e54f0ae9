package query

import (
	"regexp"
	"strconv"
	"strings"
)

// shortColumnLen is the name length below which a column must match as a
// whole token rather than a substring.
const shortColumnLen = 4

var numberPattern = regexp.MustCompile(`\b(\d+(?:\.\d+)?)(%?)`)

// Number is a numeric literal found in a question.
type Number struct {
	Text    string  `json:"text"`
	Value   float64 `json:"value"`
	Percent bool    `json:"percent"`
}

// Entities are the column names and numbers mentioned in a question.
type Entities struct {
	Columns []string `json:"columns,omitempty"`
	Numbers []Number `json:"numbers,omitempty"`
}

// ExtractEntities finds known column names and numbers in a normalized
// question. Columns are returned in dataset order.
func ExtractEntities(normalized string, columns []string) Entities {
	var e Entities
	padded := " " + normalized + " "
	for _, col := range columns {
		name := Normalize(col)
		if name == "" {
			continue
		}
		if len(name) < shortColumnLen {
			if strings.Contains(padded, " "+name+" ") {
				e.Columns = append(e.Columns, col)
			}
			continue
		}
		if strings.Contains(normalized, name) {
			e.Columns = append(e.Columns, col)
		}
	}
	for _, m := range numberPattern.FindAllStringSubmatch(normalized, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		e.Numbers = append(e.Numbers, Number{Text: m[0], Value: v, Percent: m[2] == "%"})
	}
	return e
}

// Percent returns the first percentage mentioned.
func (e Entities) Percent() (float64, bool) {
	for _, n := range e.Numbers {
		if n.Percent {
			return n.Value, true
		}
	}
	return 0, false
}

// Limit returns the first whole number in [1, upper] that is not a
// percentage, or def.
func (e Entities) Limit(def, upper int) int {
	for _, n := range e.Numbers {
		if n.Percent || n.Value != float64(int(n.Value)) {
			continue
		}
		if v := int(n.Value); v >= 1 && v <= upper {
			return v
		}
	}
	return def
}
