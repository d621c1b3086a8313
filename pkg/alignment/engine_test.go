package alignment

import (
	"context"
	"testing"
	"time"

	"github.com/chimeradata/chimera/pkg/dataset"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, lookbackDays int) *Engine {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	engine, err := NewEngine(log, &Config{
		LookbackDays: lookbackDays,
		GridStep:     time.Hour,
		Concurrency:  2,
	})
	require.NoError(t, err)

	return engine
}

func tableAt(values map[time.Time]float64, column string) *dataset.Table {
	table := &dataset.Table{}
	times := make([]time.Time, 0, len(values))
	for ts := range values {
		times = append(times, ts)
	}
	// Rows must be ascending by time, as the normalizer guarantees
	for len(times) > 0 {
		min := 0
		for i := range times {
			if times[i].Before(times[min]) {
				min = i
			}
		}
		ts := times[min]
		table.Rows = append(table.Rows, dataset.Row{
			Timestamp: ts,
			Fields:    map[string]any{column: values[ts]},
		})
		times = append(times[:min], times[min+1:]...)
	}

	return table
}

func TestAlignNoEntities(t *testing.T) {
	engine := newTestEngine(t, 1)

	_, _, err := engine.Align(context.Background(), time.Now(), nil)
	require.ErrorIs(t, err, ErrNoEntities)
}

func TestAlignForwardFill(t *testing.T) {
	engine := newTestEngine(t, 1)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	// Single observation six hours before the grid end
	obsTime := time.Date(2024, 3, 15, 7, 30, 0, 0, time.UTC)
	entities := []Entity{{
		Category: "market",
		ID:       "market_SPY",
		Table:    tableAt(map[time.Time]float64{obsTime: 470.5}, "close"),
	}}

	ds, stats, err := engine.Align(context.Background(), now, entities)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EntitiesMerged)
	require.Equal(t, []string{"market_spy_close"}, ds.Columns)

	series := ds.Column("market_spy_close")
	bucket := obsTime.Truncate(time.Hour)

	for i, point := range ds.Grid.Points {
		if point.Before(bucket) {
			assert.Nil(t, series[i], "expected null before first observation at %s", point)
		} else {
			require.NotNil(t, series[i], "expected carried value at %s", point)
			assert.Equal(t, 470.5, *series[i])
		}
	}
}

func TestAlignNearestMean(t *testing.T) {
	engine := newTestEngine(t, 1)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	// Two sub-hourly samples in the same bucket, nothing else
	bucket := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	entities := []Entity{{
		Category: "schumann",
		ID:       "schumann_tomsk",
		Table: tableAt(map[time.Time]float64{
			bucket.Add(10 * time.Minute): 7.6,
			bucket.Add(40 * time.Minute): 8.0,
		}, "power"),
	}}

	ds, _, err := engine.Align(context.Background(), now, entities)
	require.NoError(t, err)

	series := ds.Column("schumann_tomsk_power")
	for i, point := range ds.Grid.Points {
		distance := point.Sub(bucket)
		if distance < 0 {
			distance = -distance
		}
		if distance <= time.Hour {
			require.NotNil(t, series[i], "expected value within one step at %s", point)
			assert.InDelta(t, 7.8, *series[i], 1e-9)
		} else {
			assert.Nil(t, series[i], "expected null beyond one step at %s", point)
		}
	}
}

func TestAlignSkipsNonNumericEntity(t *testing.T) {
	engine := newTestEngine(t, 1)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	textOnly := &dataset.Table{Rows: []dataset.Row{{
		Timestamp: now.Add(-2 * time.Hour),
		Fields:    map[string]any{"note": "calibration"},
	}}}

	entities := []Entity{
		{Category: "schumann", ID: "schumann_bad", Table: textOnly},
		{
			Category: "market",
			ID:       "market_SPY",
			Table:    tableAt(map[time.Time]float64{now.Add(-3 * time.Hour): 470.0}, "close"),
		},
	}

	ds, stats, err := engine.Align(context.Background(), now, entities)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EntitiesMerged)
	assert.Equal(t, 1, stats.EntitiesSkipped)
	assert.Equal(t, []string{"market_spy_close"}, ds.Columns)
}

func TestAlignCancelledContextYieldsPartial(t *testing.T) {
	engine := newTestEngine(t, 1)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entities := []Entity{{
		Category: "market",
		ID:       "market_SPY",
		Table:    tableAt(map[time.Time]float64{now.Add(-3 * time.Hour): 470.0}, "close"),
	}}

	ds, stats, err := engine.Align(ctx, now, entities)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.EntitiesMerged)
	assert.Equal(t, 1, stats.EntitiesSkipped)
	assert.Empty(t, ds.Columns)
	assert.Equal(t, 26, ds.Grid.Len())
}

func TestDeriveColumnName(t *testing.T) {
	tests := []struct {
		category string
		entityID string
		field    string
		want     string
	}{
		{"market", "market_SPY", "Close", "market_spy_close"},
		{"planetary", "planetary_Mars", "Delta AU", "planetary_mars_delta_au"},
		{"gcp", "gcp_coherence", "score", "gcp_coherence_score"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveColumnName(tt.category, tt.entityID, tt.field))
	}
}

func TestDatasetRowsRoundTrip(t *testing.T) {
	engine := newTestEngine(t, 1)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	entities := []Entity{{
		Category: "market",
		ID:       "market_SPY",
		Table:    tableAt(map[time.Time]float64{now.Add(-3 * time.Hour): 470.0}, "close"),
	}}

	ds, _, err := engine.Align(context.Background(), now, entities)
	require.NoError(t, err)

	data, err := ds.MarshalRows()
	require.NoError(t, err)

	parsed, err := ParseRows(data)
	require.NoError(t, err)

	assert.Equal(t, ds.Grid.Points, parsed.Grid.Points)
	assert.Equal(t, ds.Columns, parsed.Columns)

	for i := range ds.Grid.Points {
		a := ds.Column("market_spy_close")[i]
		b := parsed.Column("market_spy_close")[i]
		if a == nil {
			assert.Nil(t, b)
		} else {
			require.NotNil(t, b)
			assert.Equal(t, *a, *b)
		}
	}
}
