package alignment

import (
	"encoding/json"
	"errors"
	"sort"
	"time"
)

var (
	// ErrEmptyDataset is returned when a persisted dataset decodes to zero rows
	ErrEmptyDataset = errors.New("aligned dataset has no rows")
)

// Dataset is the aligned wide table: the master grid plus one nullable
// value sequence per derived column, each exactly grid length.
type Dataset struct {
	Grid    *Grid
	Columns []string
	Values  map[string][]*float64
}

// Shape returns (rows, columns).
func (d *Dataset) Shape() (rows, cols int) {
	return d.Grid.Len(), len(d.Columns)
}

// Column returns the value sequence for a derived column.
func (d *Dataset) Column(name string) []*float64 {
	return d.Values[name]
}

// MarshalRows serializes the dataset as an ordered array of row objects,
// each {"timestamp": RFC3339, column: number|null, ...}. Missing data is an
// explicit null, never an omitted key.
func (d *Dataset) MarshalRows() ([]byte, error) {
	rows := make([]map[string]any, d.Grid.Len())
	for i, point := range d.Grid.Points {
		row := make(map[string]any, len(d.Columns)+1)
		row["timestamp"] = point.Format(time.RFC3339)
		for _, column := range d.Columns {
			if v := d.Values[column][i]; v != nil {
				row[column] = *v
			} else {
				row[column] = nil
			}
		}
		rows[i] = row
	}

	return json.Marshal(rows)
}

// ParseRows reconstructs a dataset from its persisted row-object form.
// Column order inside row objects is not preserved by JSON, so columns come
// back in sorted order; that order is stable across runs on identical input.
func ParseRows(data []byte) (*Dataset, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}

	points := make([]time.Time, 0, len(rows))
	columnSet := make(map[string]bool)

	for _, row := range rows {
		raw, _ := row["timestamp"].(string)
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, err
		}
		points = append(points, ts.UTC())

		for name := range row {
			if name != "timestamp" {
				columnSet[name] = true
			}
		}
	}

	columns := make([]string, 0, len(columnSet))
	for name := range columnSet {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	values := make(map[string][]*float64, len(columns))
	for _, column := range columns {
		series := make([]*float64, len(rows))
		for i, row := range rows {
			if v, ok := row[column].(float64); ok {
				value := v
				series[i] = &value
			}
		}
		values[column] = series
	}

	step := time.Hour
	if len(points) > 1 {
		step = points[1].Sub(points[0])
	}

	return &Dataset{
		Grid:    &Grid{Step: step, Points: points},
		Columns: columns,
		Values:  values,
	}, nil
}
