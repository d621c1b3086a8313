package dataset

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// timestampCandidates is the fixed priority list of field names recognized
// as the row timestamp. The first present column wins.
//
//nolint:gochecknoglobals // Fixed candidate set, read-only
var timestampCandidates = []string{
	"Date", "date", "timestamp", "Timestamp", "Time", "time", "datetime",
}

// timestampLayouts are tried in order when the timestamp value is a string.
//
//nolint:gochecknoglobals // Fixed layout set, read-only
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalizer converts raw payloads into canonical tables.
type Normalizer struct {
	log logrus.FieldLogger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(log logrus.FieldLogger) *Normalizer {
	return &Normalizer{log: log.WithField("component", "normalizer")}
}

// Normalize resolves the declared shape, detects the timestamp column,
// drops unparseable rows, sorts ascending and deduplicates exact timestamp
// collisions keeping the later raw row. An unrecognized shape or a missing
// timestamp column yields an empty table, never an error.
func (n *Normalizer) Normalize(raw *RawDataset) *Table {
	records := resolveShape(raw.Shape, raw.Payload)
	if len(records) == 0 {
		return &Table{}
	}

	tsColumn := detectTimestampColumn(records)
	if tsColumn == "" {
		n.log.WithField("entity", raw.Entity).Warn("No timestamp column found")
		return &Table{}
	}

	rows := make([]Row, 0, len(records))
	dropped := 0

	for _, record := range records {
		ts, ok := parseTimestamp(record[tsColumn])
		if !ok {
			dropped++
			continue
		}

		fields := make(map[string]any, len(record))
		for name, value := range record {
			if name == tsColumn {
				continue
			}
			fields[name] = value
		}

		rows = append(rows, Row{Timestamp: ts, Fields: fields})
	}

	if dropped > 0 {
		n.log.WithFields(logrus.Fields{
			"entity":  raw.Entity,
			"dropped": dropped,
		}).Debug("Dropped rows with unparseable timestamps")
	}

	// Stable sort keeps original order within equal timestamps, so the last
	// row of an equal run is the later raw row.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})

	deduped := rows[:0]
	for i, row := range rows {
		if i+1 < len(rows) && rows[i+1].Timestamp.Equal(row.Timestamp) {
			continue
		}
		deduped = append(deduped, row)
	}

	return &Table{Rows: deduped}
}

// resolveShape extracts row records from the payload according to the
// declared shape. Any mismatch between shape and payload yields nil.
func resolveShape(shape Shape, payload []byte) []map[string]any {
	switch shape {
	case ShapeRecords:
		var records []map[string]any
		if err := json.Unmarshal(payload, &records); err != nil {
			return nil
		}
		return records

	case ShapeWrapped:
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(payload, &wrapper); err != nil {
			return nil
		}
		return unwrapRecords(wrapper)

	case ShapeSingle:
		var record map[string]any
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil
		}
		return []map[string]any{record}

	case ShapeUnknown:
		return nil
	}

	return nil
}

// unwrapRecords finds the field holding the row array. The conventional
// "data" field is preferred; otherwise fields are scanned in sorted key
// order so resolution is deterministic.
func unwrapRecords(wrapper map[string]json.RawMessage) []map[string]any {
	if raw, ok := wrapper["data"]; ok {
		var records []map[string]any
		if err := json.Unmarshal(raw, &records); err == nil {
			return records
		}
	}

	keys := make([]string, 0, len(wrapper))
	for key := range wrapper {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var records []map[string]any
		if err := json.Unmarshal(wrapper[key], &records); err == nil && len(records) > 0 {
			return records
		}
	}

	return nil
}

// detectTimestampColumn scans the candidate names against the union of
// fields seen across all records.
func detectTimestampColumn(records []map[string]any) string {
	present := make(map[string]bool)
	for _, record := range records {
		for name := range record {
			present[name] = true
		}
	}

	for _, candidate := range timestampCandidates {
		if present[candidate] {
			return candidate
		}
	}

	return ""
}

// parseTimestamp converts a raw timestamp value to UTC. Strings are tried
// against the known layouts; numbers are treated as unix epochs (seconds,
// or milliseconds above a plausibility cutoff).
func parseTimestamp(value any) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC(), true
			}
		}
	case float64:
		const millisCutoff = 1e12
		if v > millisCutoff {
			return time.UnixMilli(int64(v)).UTC(), true
		}
		if v > 0 {
			return time.Unix(int64(v), 0).UTC(), true
		}
	}

	return time.Time{}, false
}
