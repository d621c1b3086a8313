package dataset

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer() *Normalizer {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewNormalizer(log)
}

func TestNormalizeShapes(t *testing.T) {
	tests := []struct {
		name     string
		shape    Shape
		payload  string
		wantRows int
	}{
		{
			name:     "array of records",
			shape:    ShapeRecords,
			payload:  `[{"timestamp":"2024-01-01T00:00:00Z","kp":3.1},{"timestamp":"2024-01-01T01:00:00Z","kp":2.9}]`,
			wantRows: 2,
		},
		{
			name:     "wrapped object with data field",
			shape:    ShapeWrapped,
			payload:  `{"meta":"x","data":[{"time":"2024-01-01 00:00:00","power":7.8}]}`,
			wantRows: 1,
		},
		{
			name:     "wrapped object with arbitrary array field",
			shape:    ShapeWrapped,
			payload:  `{"observations":[{"date":"2024-01-01","flux":140.2}]}`,
			wantRows: 1,
		},
		{
			name:     "single flat object",
			shape:    ShapeSingle,
			payload:  `{"timestamp":"2024-01-01T00:00:00Z","score":0.52}`,
			wantRows: 1,
		},
		{
			name:     "unknown shape",
			shape:    ShapeUnknown,
			payload:  `{"result":"plain text ephemeris"}`,
			wantRows: 0,
		},
		{
			name:     "shape mismatch",
			shape:    ShapeRecords,
			payload:  `{"timestamp":"2024-01-01T00:00:00Z"}`,
			wantRows: 0,
		},
		{
			name:     "no timestamp column",
			shape:    ShapeRecords,
			payload:  `[{"kp":3.1},{"kp":2.9}]`,
			wantRows: 0,
		},
	}

	n := newTestNormalizer()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := n.Normalize(&RawDataset{
				Source:  "geomagnetic",
				Entity:  "geomagnetic_kp",
				Shape:   tt.shape,
				Payload: []byte(tt.payload),
			})

			require.NotNil(t, table)
			assert.Len(t, table.Rows, tt.wantRows)
		})
	}
}

func TestNormalizeDropsUnparseableTimestamps(t *testing.T) {
	n := newTestNormalizer()

	table := n.Normalize(&RawDataset{
		Entity: "market_SPY",
		Shape:  ShapeRecords,
		Payload: []byte(`[
			{"date":"2024-01-01T00:00:00Z","close":470.1},
			{"date":"not a date","close":471.0},
			{"date":"2024-01-02T00:00:00Z","close":472.3}
		]`),
	})

	require.Len(t, table.Rows, 2)
	assert.Equal(t, 470.1, table.Rows[0].Fields["close"])
	assert.Equal(t, 472.3, table.Rows[1].Fields["close"])
}

func TestNormalizeSortsAscending(t *testing.T) {
	n := newTestNormalizer()

	table := n.Normalize(&RawDataset{
		Entity: "market_SPY",
		Shape:  ShapeRecords,
		Payload: []byte(`[
			{"date":"2024-01-03T00:00:00Z","close":3},
			{"date":"2024-01-01T00:00:00Z","close":1},
			{"date":"2024-01-02T00:00:00Z","close":2}
		]`),
	})

	require.Len(t, table.Rows, 3)
	for i := 1; i < len(table.Rows); i++ {
		assert.True(t, table.Rows[i-1].Timestamp.Before(table.Rows[i].Timestamp))
	}
}

func TestNormalizeDedupKeepsLaterRow(t *testing.T) {
	n := newTestNormalizer()

	table := n.Normalize(&RawDataset{
		Entity: "market_SPY",
		Shape:  ShapeRecords,
		Payload: []byte(`[
			{"date":"2024-01-01T00:00:00Z","close":100.0},
			{"date":"2024-01-01T00:00:00Z","close":101.5}
		]`),
	})

	require.Len(t, table.Rows, 1)
	value, ok := table.Rows[0].NumericValue("close")
	require.True(t, ok)
	assert.Equal(t, 101.5, value)
}

func TestNormalizeEpochTimestamps(t *testing.T) {
	n := newTestNormalizer()

	table := n.Normalize(&RawDataset{
		Entity:  "gcp_coherence",
		Shape:   ShapeRecords,
		Payload: []byte(`[{"timestamp":1704067200,"score":0.4},{"timestamp":1704070800000,"score":0.5}]`),
	})

	require.Len(t, table.Rows, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), table.Rows[0].Timestamp)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), table.Rows[1].Timestamp)
}

func TestNumericColumns(t *testing.T) {
	n := newTestNormalizer()

	table := n.Normalize(&RawDataset{
		Entity: "market_SPY",
		Shape:  ShapeRecords,
		Payload: []byte(`[
			{"date":"2024-01-01T00:00:00Z","close":470.1,"volume":1000,"symbol":"SPY","gap":null},
			{"date":"2024-01-02T00:00:00Z","close":471.9,"volume":null,"symbol":"SPY","gap":null}
		]`),
	})

	// symbol is a string column, gap never carries a number
	assert.Equal(t, []string{"close", "volume"}, table.NumericColumns())
}

func TestNumericColumnsExcludesMixedTypes(t *testing.T) {
	n := newTestNormalizer()

	table := n.Normalize(&RawDataset{
		Entity: "geomagnetic_kp",
		Shape:  ShapeRecords,
		Payload: []byte(`[
			{"time":"2024-01-01T00:00:00Z","kp":3.0,"status":1},
			{"time":"2024-01-01T01:00:00Z","kp":"n/a","status":2}
		]`),
	})

	assert.Equal(t, []string{"status"}, table.NumericColumns())
}
