// Package dataset holds the in-memory tabular data handed to the analysis pipeline.
//
// Cells are kept as raw text. Type interpretation happens in the agents so the
// same dataset can be profiled, re-profiled and queried without re-reading
// the source file.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrEmpty indicates the source had no header row.
	ErrEmpty = errors.New("dataset is empty")

	// ErrRaggedColumns indicates columns of different lengths were combined.
	ErrRaggedColumns = errors.New("columns have different lengths")
)

// missingTokens are the cell values treated as "no value" (compared lower-cased and trimmed).
var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
	"-":    {},
}

// IsMissing reports whether a raw cell value represents a missing value.
func IsMissing(v string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// ParseFloat parses a cell as a number. Missing cells, NaN and Inf are rejected.
func ParseFloat(v string) (float64, bool) {
	if IsMissing(v) {
		return 0, false
	}
	s := strings.TrimSpace(v)
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Column is one named column of raw cell values.
type Column struct {
	Name   string
	Values []string
}

// NewColumn creates a column from raw values.
func NewColumn(name string, values ...string) *Column {
	return &Column{Name: name, Values: values}
}

// Len returns the number of cells, missing ones included.
func (c *Column) Len() int {
	return len(c.Values)
}

// MissingCount returns how many cells are missing.
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if IsMissing(v) {
			n++
		}
	}
	return n
}

// NonMissing returns the trimmed non-missing values in row order.
func (c *Column) NonMissing() []string {
	out := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		if !IsMissing(v) {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

// Floats returns every numeric cell and the row index it came from.
func (c *Column) Floats() ([]float64, []int) {
	vals := make([]float64, 0, len(c.Values))
	rows := make([]int, 0, len(c.Values))
	for i, v := range c.Values {
		if f, ok := ParseFloat(v); ok {
			vals = append(vals, f)
			rows = append(rows, i)
		}
	}
	return vals, rows
}

// ValueCount is one distinct value with its frequency.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts returns distinct non-missing values ordered by descending count,
// ties broken by first appearance.
func (c *Column) ValueCounts() []ValueCount {
	index := make(map[string]int)
	var counts []ValueCount
	for _, v := range c.NonMissing() {
		if i, ok := index[v]; ok {
			counts[i].Count++
			continue
		}
		index[v] = len(counts)
		counts = append(counts, ValueCount{Value: v, Count: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

// Dataset is a named, column-oriented table. All columns have the same length.
type Dataset struct {
	Name    string
	Columns []*Column
}

// FromColumns builds a dataset, rejecting columns of unequal length.
func FromColumns(name string, cols ...*Column) (*Dataset, error) {
	for _, c := range cols {
		if c.Len() != cols[0].Len() {
			return nil, fmt.Errorf("%w: %q has %d rows, %q has %d",
				ErrRaggedColumns, cols[0].Name, cols[0].Len(), c.Name, c.Len())
		}
	}
	return &Dataset{Name: name, Columns: cols}, nil
}

// MustFromColumns is like FromColumns but panics on error. Intended for fixtures.
func MustFromColumns(name string, cols ...*Column) *Dataset {
	ds, err := FromColumns(name, cols...)
	if err != nil {
		panic(err)
	}
	return ds
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}
	return d.Columns[0].Len()
}

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int {
	if d == nil {
		return 0
	}
	return len(d.Columns)
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, 0, d.NumColumns())
	for _, c := range d.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Column looks a column up by exact name.
func (d *Dataset) Column(name string) (*Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Row returns the raw cells of row i.
func (d *Dataset) Row(i int) []string {
	row := make([]string, len(d.Columns))
	for j, c := range d.Columns {
		row[j] = c.Values[i]
	}
	return row
}

// PairedFloats returns the numeric values of columns a and b restricted to
// rows where both parse.
func (d *Dataset) PairedFloats(a, b string) ([]float64, []float64) {
	ca, okA := d.Column(a)
	cb, okB := d.Column(b)
	if !okA || !okB {
		return nil, nil
	}
	var x, y []float64
	for i := range ca.Values {
		va, ok1 := ParseFloat(ca.Values[i])
		vb, ok2 := ParseFloat(cb.Values[i])
		if ok1 && ok2 {
			x = append(x, va)
			y = append(y, vb)
		}
	}
	return x, y
}

// DuplicateRows counts rows that repeat an earlier row exactly.
func (d *Dataset) DuplicateRows() int {
	seen := make(map[string]struct{}, d.NumRows())
	dups := 0
	for i := 0; i < d.NumRows(); i++ {
		key := strings.Join(d.Row(i), "\x1f")
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// MemoryBytes estimates the in-memory size of the cell text.
func (d *Dataset) MemoryBytes() int64 {
	var n int64
	for _, c := range d.Columns {
		n += int64(len(c.Name))
		for _, v := range c.Values {
			n += int64(len(v))
		}
	}
	return n
}
