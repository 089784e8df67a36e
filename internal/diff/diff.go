// Package diff compares two captures of a table and reports added, removed
// and modified rows keyed by a best-effort primary key.
package diff

import (
	"fmt"
	"strings"

	"tabletrace/internal/models"
)

// fallbackKeys are tried in order when the nominal key column has no usable value.
var fallbackKeys = []string{"id", "uuid", "pk"}

const syntheticKeyLen = 20

func usable(v string) bool {
	return v != "" && v != models.NullValue
}

// KeyValue resolves the identifier of a row. It never returns an empty string.
//
// Synthesized identifiers of NULL-heavy rows can collide, and identifiers built
// from the first non-NULL column change when the column order changes.
func KeyValue(row models.Row, keyColumn string) string {
	if v, ok := row.Get(keyColumn); ok && usable(v) {
		return v
	}
	for _, col := range fallbackKeys {
		if v, ok := row.Get(col); ok && usable(v) {
			return v
		}
	}

	columns := row.Columns()
	for _, col := range columns {
		if v := row.Value(col); usable(v) {
			return fmt.Sprintf("%s:%s", col, v)
		}
	}

	values := make([]string, 0, 3)
	for i := 0; i < len(columns) && i < 3; i++ {
		values = append(values, row.Value(columns[i]))
	}
	return syntheticKey(values)
}

// syntheticKey joins values with "_" and keeps the first syntheticKeyLen
// runes after the "row_" prefix.
func syntheticKey(values []string) string {
	joined := []rune(strings.Join(values, "_"))
	if len(joined) > syntheticKeyLen {
		joined = joined[:syntheticKeyLen]
	}
	return "row_" + string(joined)
}

// index maps identifiers to rows, remembering first-seen order. A repeated
// identifier keeps the last row.
type index struct {
	order []string
	rows  map[string]models.Row
}

func buildIndex(rows []models.Row, keyColumn string) index {
	idx := index{rows: make(map[string]models.Row, len(rows))}
	for _, row := range rows {
		key := KeyValue(row, keyColumn)
		if _, seen := idx.rows[key]; !seen {
			idx.order = append(idx.order, key)
		}
		idx.rows[key] = row
	}
	return idx
}

// Compute returns the diffs between oldRows and newRows. Added and modified
// rows follow the order of newRows, removed rows follow oldRows. Callers that
// need a stable order across kinds must sort.
func Compute(oldRows, newRows []models.Row, keyColumn string) []models.RowDiff {
	before := buildIndex(oldRows, keyColumn)
	after := buildIndex(newRows, keyColumn)

	var diffs []models.RowDiff
	for _, key := range after.order {
		newRow := after.rows[key]
		oldRow, existed := before.rows[key]
		if !existed {
			row := newRow
			diffs = append(diffs, models.RowDiff{
				KeyColumn:      keyColumn,
				KeyValue:       key,
				Kind:           models.Added,
				New:            &row,
				ChangedColumns: newRow.Columns(),
			})
			continue
		}

		changed := ChangedColumns(oldRow, newRow)
		if len(changed) == 0 {
			continue
		}
		o, n := oldRow, newRow
		diffs = append(diffs, models.RowDiff{
			KeyColumn:      keyColumn,
			KeyValue:       key,
			Kind:           models.Modified,
			Old:            &o,
			New:            &n,
			ChangedColumns: changed,
		})
	}

	for _, key := range before.order {
		if _, still := after.rows[key]; still {
			continue
		}
		row := before.rows[key]
		diffs = append(diffs, models.RowDiff{
			KeyColumn:      keyColumn,
			KeyValue:       key,
			Kind:           models.Removed,
			Old:            &row,
			ChangedColumns: row.Columns(),
		})
	}

	return diffs
}

// ChangedColumns lists the columns whose values differ between two versions of
// a row. A column present on only one side counts as changed. Columns of the
// new row come first, followed by columns that only the old row has.
func ChangedColumns(oldRow, newRow models.Row) []string {
	var changed []string
	for _, col := range newRow.Columns() {
		if ov, ok := oldRow.Get(col); !ok || ov != newRow.Value(col) {
			changed = append(changed, col)
		}
	}
	for _, col := range oldRow.Columns() {
		if _, ok := newRow.Get(col); !ok {
			changed = append(changed, col)
		}
	}
	return changed
}
