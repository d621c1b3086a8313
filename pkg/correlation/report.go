package correlation

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

const (
	// KindInstant marks a zero-lag correlation record
	KindInstant = "instant"
	// KindLagged marks a time-shifted correlation record
	KindLagged = "lagged"
)

// baseKeySuffixes is the closed set of instrument field suffixes stripped
// when forming the canonical base key for diversity reduction.
//
//nolint:gochecknoglobals // Fixed suffix set, read-only
var baseKeySuffixes = []string{"_open", "_close", "_high", "_low", "_volume"}

// JSONFloat is a float64 that serializes NaN and Infinity as explicit null,
// keeping every report payload JSON-safe.
type JSONFloat float64

// MarshalJSON implements json.Marshaler.
func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}

	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler. Explicit null decodes to NaN.
func (f *JSONFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = JSONFloat(math.NaN())
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = JSONFloat(v)

	return nil
}

// Record is one qualifying correlation between a target and a factor.
type Record struct {
	TargetFactor        string    `json:"target_factor"`
	EnvironmentalFactor string    `json:"environmental_factor"`
	Correlation         JSONFloat `json:"correlation"`
	LagHours            int       `json:"lag_hours"`
	SampleSize          int       `json:"sample_size"`
	Kind                string    `json:"type"`
}

// PairKey returns the canonical diversity key: both names with instrument
// field suffixes stripped, combined as targetBase::factorBase. It groups
// near-duplicate OHLCV siblings of the same relationship.
func (r *Record) PairKey() string {
	return baseName(r.TargetFactor) + "::" + baseName(r.EnvironmentalFactor)
}

func baseName(column string) string {
	for _, suffix := range baseKeySuffixes {
		if strings.HasSuffix(column, suffix) {
			return strings.TrimSuffix(column, suffix)
		}
	}

	return column
}

// Report is the full output of one correlation run.
type Report struct {
	GeneratedAt            time.Time `json:"generated_at"`
	DataShape              [2]int    `json:"data_shape"` // [rows, cols]
	ColumnsAnalyzed        []string  `json:"columns_analyzed"`
	TotalCorrelationsFound int       `json:"total_correlations_found"`
	Threshold              JSONFloat `json:"threshold"`
	TopCorrelations        []Record  `json:"top_correlations"`
	AllCorrelations        []Record  `json:"all_correlations"`
}

// Marshal serializes the report. Non-finite values come out as null.
func (r *Report) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// ParseReport reconstructs a report from its persisted form.
func ParseReport(data []byte) (*Report, error) {
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	return &report, nil
}
