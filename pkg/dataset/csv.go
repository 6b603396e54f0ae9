package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV decodes a CSV document with a header row. Short rows are padded with
// empty (missing) cells and long rows are truncated to the header width.
// Blank or repeated header names are replaced with positional names.
func ReadCSV(r io.Reader, name string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make([]*Column, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := seen[h]; h == "" || dup {
			h = positionalName(i, seen)
		}
		seen[h] = struct{}{}
		cols[i] = &Column{Name: h}
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		for i, c := range cols {
			v := ""
			if i < len(record) {
				v = record[i]
			}
			c.Values = append(c.Values, v)
		}
	}

	return &Dataset{Name: name, Columns: cols}, nil
}

// positionalName returns column_<i+1>, suffixed until it is not in seen.
func positionalName(i int, seen map[string]struct{}) string {
	base := fmt.Sprintf("column_%d", i+1)
	h := base
	for n := 2; ; n++ {
		if _, taken := seen[h]; !taken {
			return h
		}
		h = fmt.Sprintf("%s_%d", base, n)
	}
}
