// Package pipeline orchestrates the alignment and correlation batch stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chimeradata/chimera/pkg/alignment"
	"github.com/chimeradata/chimera/pkg/correlation"
	"github.com/chimeradata/chimera/pkg/dataset"
	"github.com/chimeradata/chimera/pkg/objectstore"
	"github.com/chimeradata/chimera/pkg/observability"
	"github.com/chimeradata/chimera/pkg/registry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// AlignedLatestKey points at the most recent aligned dataset.
	AlignedLatestKey = "aligned/latest"
	// CorrelationsLatestKey points at the most recent correlation report.
	CorrelationsLatestKey = "correlations/latest"

	snapshotTimeFormat = "20060102_150405"
)

var (
	// ErrNoAlignedDataset is returned when correlation runs before any
	// alignment run has persisted a dataset
	ErrNoAlignedDataset = errors.New("no aligned dataset available")
)

// Service runs the two batch stages. The stages share nothing in memory;
// correlation always reads the aligned dataset back from the object store.
type Service struct {
	log        logrus.FieldLogger
	normalizer *dataset.Normalizer
	aligner    *alignment.Engine
	correlator *correlation.Engine
	store      objectstore.Store
	registry   *registry.Registry
}

// NewService creates a pipeline service.
func NewService(
	log logrus.FieldLogger,
	aligner *alignment.Engine,
	correlator *correlation.Engine,
	store objectstore.Store,
	reg *registry.Registry,
) *Service {
	return &Service{
		log:        log.WithField("service", "pipeline"),
		normalizer: dataset.NewNormalizer(log),
		aligner:    aligner,
		correlator: correlator,
		store:      store,
		registry:   reg,
	}
}

// AlignmentResult summarizes one alignment run.
type AlignmentResult struct {
	RunID       string           `json:"run_id"`
	SnapshotKey string           `json:"snapshot_key"`
	Rows        int              `json:"rows"`
	Columns     int              `json:"columns"`
	Stats       *alignment.Stats `json:"stats"`
}

// CorrelationResult summarizes one correlation run.
type CorrelationResult struct {
	RunID       string `json:"run_id"`
	SnapshotKey string `json:"snapshot_key"`
	Found       int    `json:"found"`
	Reported    int    `json:"reported"`
}

// RunAlignment loads the latest raw payload of every registered entity,
// normalizes each one, aligns them onto the master grid and persists the
// result twice: a timestamped snapshot and the overwritten latest pointer.
func (s *Service) RunAlignment(ctx context.Context) (*AlignmentResult, error) {
	runID := uuid.New().String()
	now := time.Now().UTC()
	log := s.log.WithField("run_id", runID)
	start := time.Now()

	log.Info("Starting alignment run")

	entities, err := s.loadEntities(ctx, log)
	if err != nil {
		observability.RecordRun("alignment", "failed", time.Since(start).Seconds())

		return nil, err
	}

	ds, stats, err := s.aligner.Align(ctx, now, entities)
	if err != nil {
		observability.RecordRun("alignment", "failed", time.Since(start).Seconds())

		return nil, fmt.Errorf("alignment failed: %w", err)
	}

	payload, err := ds.MarshalRows()
	if err != nil {
		observability.RecordRun("alignment", "failed", time.Since(start).Seconds())

		return nil, fmt.Errorf("failed to serialize aligned dataset: %w", err)
	}

	key := fmt.Sprintf("aligned/%s.json", now.Format(snapshotTimeFormat))
	if err := s.persist(ctx, key, AlignedLatestKey, payload); err != nil {
		observability.RecordRun("alignment", "failed", time.Since(start).Seconds())

		return nil, err
	}

	rows, cols := ds.Shape()
	observability.RecordRun("alignment", "success", time.Since(start).Seconds())

	log.WithFields(logrus.Fields{
		"rows":             rows,
		"columns":          cols,
		"entities_merged":  stats.EntitiesMerged,
		"entities_skipped": stats.EntitiesSkipped,
		"snapshot_key":     key,
	}).Info("Alignment run complete")

	return &AlignmentResult{
		RunID:       runID,
		SnapshotKey: key,
		Rows:        rows,
		Columns:     cols,
		Stats:       stats,
	}, nil
}

// RunCorrelation reads the latest aligned dataset back from the object
// store, runs the correlation search and persists the report twice. A
// missing aligned dataset is fatal: there is nothing to analyze.
func (s *Service) RunCorrelation(ctx context.Context) (*CorrelationResult, error) {
	runID := uuid.New().String()
	now := time.Now().UTC()
	log := s.log.WithField("run_id", runID)
	start := time.Now()

	log.Info("Starting correlation run")

	payload, err := s.store.Get(ctx, AlignedLatestKey)
	if err != nil {
		observability.RecordRun("correlation", "failed", time.Since(start).Seconds())

		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, ErrNoAlignedDataset
		}

		return nil, fmt.Errorf("failed to load aligned dataset: %w", err)
	}

	ds, err := alignment.ParseRows(payload)
	if err != nil {
		observability.RecordRun("correlation", "failed", time.Since(start).Seconds())

		if errors.Is(err, alignment.ErrEmptyDataset) {
			return nil, ErrNoAlignedDataset
		}

		return nil, fmt.Errorf("failed to parse aligned dataset: %w", err)
	}

	report, err := s.correlator.Analyze(ctx, ds, now)
	if err != nil {
		observability.RecordRun("correlation", "failed", time.Since(start).Seconds())

		return nil, fmt.Errorf("correlation analysis failed: %w", err)
	}

	data, err := report.Marshal()
	if err != nil {
		observability.RecordRun("correlation", "failed", time.Since(start).Seconds())

		return nil, fmt.Errorf("failed to serialize correlation report: %w", err)
	}

	key := fmt.Sprintf("correlations/%s.json", now.Format(snapshotTimeFormat))
	if err := s.persist(ctx, key, CorrelationsLatestKey, data); err != nil {
		observability.RecordRun("correlation", "failed", time.Since(start).Seconds())

		return nil, err
	}

	observability.RecordRun("correlation", "success", time.Since(start).Seconds())

	log.WithFields(logrus.Fields{
		"found":        report.TotalCorrelationsFound,
		"reported":     len(report.TopCorrelations),
		"snapshot_key": key,
	}).Info("Correlation run complete")

	return &CorrelationResult{
		RunID:       runID,
		SnapshotKey: key,
		Found:       report.TotalCorrelationsFound,
		Reported:    len(report.TopCorrelations),
	}, nil
}

// loadEntities resolves the latest successful raw payload for every
// registered entity and normalizes each into a canonical table. Entities
// whose payloads cannot be loaded or normalize to empty tables are skipped.
func (s *Service) loadEntities(ctx context.Context, log logrus.FieldLogger) ([]alignment.Entity, error) {
	var entities []alignment.Entity

	for _, category := range registry.SourceCategories {
		records, err := s.registry.Latest(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve latest records for %s: %w", category, err)
		}

		for _, record := range records {
			payload, err := s.store.Get(ctx, record.ObjectKey)
			if err != nil {
				log.WithError(err).WithField("entity", record.SourceID).Warn("Failed to load raw payload, skipping entity")
				observability.RunSkipsTotal.WithLabelValues("alignment").Inc()

				continue
			}

			table := s.normalizer.Normalize(&dataset.RawDataset{
				Source:  category,
				Entity:  record.SourceID,
				Shape:   record.Shape,
				Payload: payload,
			})
			if table.Empty() {
				log.WithField("entity", record.SourceID).Debug("Payload normalized to empty table, skipping entity")
				observability.RunSkipsTotal.WithLabelValues("alignment").Inc()

				continue
			}

			entities = append(entities, alignment.Entity{
				Category: category,
				ID:       record.SourceID,
				Table:    table,
			})
		}
	}

	return entities, nil
}

// persist writes a payload under its timestamped snapshot key and then
// overwrites the latest pointer. Snapshots accumulate; the pointer always
// names the newest complete artifact.
func (s *Service) persist(ctx context.Context, snapshotKey, latestKey string, payload []byte) error {
	if err := s.store.Put(ctx, snapshotKey, payload); err != nil {
		return fmt.Errorf("failed to persist snapshot %s: %w", snapshotKey, err)
	}

	if err := s.store.Put(ctx, latestKey, payload); err != nil {
		return fmt.Errorf("failed to update %s: %w", latestKey, err)
	}

	return nil
}
