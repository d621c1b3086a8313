package dataset

import (
	"sort"
	"time"
)

// Row is a single observation: a UTC timestamp plus the remaining decoded fields.
type Row struct {
	Timestamp time.Time
	Fields    map[string]any
}

// Table is an ordered-by-time sequence of rows. Timestamps are strictly
// increasing and unique; an empty table is a valid terminal state meaning
// the entity contributes nothing.
type Table struct {
	Rows []Row
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// NumericColumns returns the columns usable as numeric series, in sorted
// order. A column qualifies when every non-null value across all rows is a
// JSON number; mixed-type columns are excluded entirely.
func (t *Table) NumericColumns() []string {
	if t.Empty() {
		return nil
	}

	sawNumber := make(map[string]bool)
	tainted := make(map[string]bool)

	for _, row := range t.Rows {
		for name, value := range row.Fields {
			switch value.(type) {
			case nil:
				// Nulls don't disqualify a column
			case float64:
				sawNumber[name] = true
			default:
				tainted[name] = true
			}
		}
	}

	columns := make([]string, 0, len(sawNumber))
	for name := range sawNumber {
		if !tainted[name] {
			columns = append(columns, name)
		}
	}
	sort.Strings(columns)

	return columns
}

// NumericValue returns the numeric value of a column in a row, or false when
// the value is null or non-numeric.
func (r *Row) NumericValue(column string) (float64, bool) {
	v, ok := r.Fields[column].(float64)
	return v, ok
}
