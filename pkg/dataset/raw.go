// Package dataset normalizes raw ingested payloads into canonical time-indexed tables.
package dataset

// Shape declares how a raw payload is structured. It is resolved once at
// ingestion time and never re-sniffed downstream.
type Shape string

const (
	// ShapeRecords is a JSON array of row objects
	ShapeRecords Shape = "records"
	// ShapeWrapped is a JSON object containing a field that is an array of row objects
	ShapeWrapped Shape = "wrapped"
	// ShapeSingle is a single flat JSON object treated as one row
	ShapeSingle Shape = "single"
	// ShapeUnknown is any other structure; it normalizes to an empty table
	ShapeUnknown Shape = "unknown"
)

// RawDataset is one raw payload for one entity, as produced by ingestion.
type RawDataset struct {
	Source  string `json:"source"`  // source category, e.g. "market"
	Entity  string `json:"entity"`  // entity identifier, e.g. "market_SPY"
	Shape   Shape  `json:"shape"`   // declared payload shape
	Payload []byte `json:"payload"` // opaque JSON document
}
