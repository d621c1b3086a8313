// Package registry tracks ingestion metadata for every dataset entity.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/chimeradata/chimera/pkg/dataset"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// SourceCategories is the fixed set of known source categories.
//
//nolint:gochecknoglobals // Fixed category set, read-only
var SourceCategories = []string{"market", "planetary", "geomagnetic", "schumann", "gcp"}

// Record is one ingestion event for one entity.
type Record struct {
	SourceID      string        `json:"source_id"`  // e.g. "market_SPY"
	ObjectKey     string        `json:"object_key"` // object store key of the raw payload
	Shape         dataset.Shape `json:"shape"`
	RecordCount   int           `json:"record_count"`
	Status        string        `json:"status"` // success or failed
	IngestionTime time.Time     `json:"ingestion_time"`
}

// SourceStatus summarizes the ingestion state of one source category.
type SourceStatus struct {
	Source        string     `json:"source"`
	Entities      int        `json:"entities"`
	LastStatus    string     `json:"last_status,omitempty"`
	LastIngestion *time.Time `json:"last_ingestion,omitempty"`
}

// Registry is the Redis-backed dataset registry.
type Registry struct {
	log    logrus.FieldLogger
	client *redis.Client
	prefix string
}

// New creates a registry.
func New(log logrus.FieldLogger, client *redis.Client, prefix string) *Registry {
	return &Registry{
		log:    log.WithField("component", "registry"),
		client: client,
		prefix: prefix,
	}
}

// Add appends an ingestion record for an entity and registers the entity
// under its category. Multiple records per entity are retained; Latest
// resolves the most recent one.
func (r *Registry) Add(ctx context.Context, category string, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.recordsKey(category, record.SourceID), data)
	pipe.SAdd(ctx, r.entitiesKey(category), record.SourceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record ingestion for %s: %w", record.SourceID, err)
	}

	return nil
}

// Entities returns the known entity identifiers of a category in sorted order.
func (r *Registry) Entities(ctx context.Context, category string) ([]string, error) {
	entities, err := r.client.SMembers(ctx, r.entitiesKey(category)).Result()
	if err != nil {
		return nil, fmt.Errorf("list entities for %s: %w", category, err)
	}
	sort.Strings(entities)

	return entities, nil
}

// Latest returns the most recent successful record per entity of a
// category, ordered by entity identifier. Recency is decided by parsed
// ingestion timestamps, never by lexical comparison, so it stays correct
// regardless of producer formatting.
func (r *Registry) Latest(ctx context.Context, category string) ([]Record, error) {
	entities, err := r.Entities(ctx, category)
	if err != nil {
		return nil, err
	}

	latest := make([]Record, 0, len(entities))

	for _, entity := range entities {
		records, err := r.records(ctx, category, entity)
		if err != nil {
			return nil, err
		}

		var best *Record
		for i := range records {
			record := &records[i]
			if record.Status != StatusSuccess || record.ObjectKey == "" {
				continue
			}
			if best == nil || record.IngestionTime.After(best.IngestionTime) {
				best = record
			}
		}
		if best != nil {
			latest = append(latest, *best)
		}
	}

	return latest, nil
}

// Status summarizes every source category for the dashboard.
func (r *Registry) Status(ctx context.Context) ([]SourceStatus, error) {
	statuses := make([]SourceStatus, 0, len(SourceCategories))

	for _, category := range SourceCategories {
		entities, err := r.Entities(ctx, category)
		if err != nil {
			return nil, err
		}

		status := SourceStatus{Source: category, Entities: len(entities)}

		for _, entity := range entities {
			records, err := r.records(ctx, category, entity)
			if err != nil {
				return nil, err
			}
			for i := range records {
				record := &records[i]
				if status.LastIngestion == nil || record.IngestionTime.After(*status.LastIngestion) {
					ts := record.IngestionTime
					status.LastIngestion = &ts
					status.LastStatus = record.Status
				}
			}
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (r *Registry) records(ctx context.Context, category, entity string) ([]Record, error) {
	raw, err := r.client.LRange(ctx, r.recordsKey(category, entity), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load records for %s: %w", entity, err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var record Record
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			r.log.WithError(err).WithField("entity", entity).Warn("Skipping unreadable registry record")
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

func (r *Registry) recordsKey(category, entity string) string {
	return fmt.Sprintf("%s:registry:%s:%s", r.prefix, category, entity)
}

func (r *Registry) entitiesKey(category string) string {
	return fmt.Sprintf("%s:registry:%s:entities", r.prefix, category)
}

const (
	// StatusSuccess marks a completed ingestion
	StatusSuccess = "success"
	// StatusFailed marks a failed ingestion
	StatusFailed = "failed"
)
