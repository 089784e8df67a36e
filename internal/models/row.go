package models

import (
	"bytes"
	"encoding/json"
)

const (
	// NullValue is the display form of SQL NULL. It is distinct from an empty string.
	NullValue = "NULL"
	// UnknownValue is the display form of a value that could not be converted.
	UnknownValue = "?"
)

// Row is an immutable snapshot of one table row: column names in select order
// mapped to display-formatted values.
type Row struct {
	columns []string
	values  map[string]string
}

// NewRow builds a row from parallel column and value slices. Extra entries on
// either side are ignored; a repeated column keeps its last value.
func NewRow(columns, values []string) Row {
	n := len(columns)
	if len(values) < n {
		n = len(values)
	}
	row := Row{
		columns: make([]string, 0, n),
		values:  make(map[string]string, n),
	}
	for i := 0; i < n; i++ {
		if _, seen := row.values[columns[i]]; !seen {
			row.columns = append(row.columns, columns[i])
		}
		row.values[columns[i]] = values[i]
	}
	return row
}

// RowOf builds a row from alternating column/value pairs.
func RowOf(pairs ...string) Row {
	columns := make([]string, 0, len(pairs)/2)
	values := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		columns = append(columns, pairs[i])
		values = append(values, pairs[i+1])
	}
	return NewRow(columns, values)
}

// Columns returns the column names in their original order.
func (r Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Get returns the value of a column and whether the column exists.
func (r Row) Get(column string) (string, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Value returns the value of a column, or "" when the column is absent.
func (r Row) Value(column string) string {
	return r.values[column]
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.columns)
}

// MarshalJSON encodes the row as an object whose keys keep the column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[col])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
