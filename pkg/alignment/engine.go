package alignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chimeradata/chimera/pkg/dataset"
	"github.com/chimeradata/chimera/pkg/observability"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoEntities is returned when zero entities exist across all source
	// categories. This is the only fatal condition of an alignment run.
	ErrNoEntities = errors.New("no entities available for alignment")
)

// Entity is one normalized input series for a run.
type Entity struct {
	Category string         // source category, e.g. "market"
	ID       string         // entity identifier, e.g. "market_SPY"
	Table    *dataset.Table // canonical normalized table
}

// Stats summarizes an alignment run. Skips are counted, never fatal.
type Stats struct {
	EntitiesMerged  int `json:"entities_merged"`
	EntitiesSkipped int `json:"entities_skipped"`
	Columns         int `json:"columns"`
}

// Engine aligns per-entity canonical tables onto one master grid.
type Engine struct {
	log logrus.FieldLogger
	cfg *Config
}

// NewEngine creates an alignment engine.
func NewEngine(log logrus.FieldLogger, cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid alignment config: %w", err)
	}

	return &Engine{
		log: log.WithField("component", "alignment"),
		cfg: cfg,
	}, nil
}

// entityResult is the isolated output slot of one fan-out unit.
type entityResult struct {
	columns []string
	values  map[string][]*float64
	skipped bool
}

// Align resamples every entity onto the master grid and left-joins the
// derived columns. Entities are processed concurrently in isolated slots
// and merged in input order, so the output is deterministic regardless of
// completion order. Per-entity failures and cancellations drop only that
// entity's contribution.
func (e *Engine) Align(ctx context.Context, now time.Time, entities []Entity) (*Dataset, *Stats, error) {
	if len(entities) == 0 {
		return nil, nil, ErrNoEntities
	}

	grid := NewGrid(now, e.cfg.LookbackDays, e.cfg.GridStep)
	slots := make([]entityResult, len(entities))

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := e.cfg.Concurrency
	if workers > len(entities) {
		workers = len(entities)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					slots[i] = entityResult{skipped: true}
					continue
				}
				slots[i] = e.alignEntity(grid, entities[i])
			}
		}()
	}

	for i := range entities {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Single-writer merge barrier: join in input order, grid never narrows.
	merged := &Dataset{
		Grid:    grid,
		Columns: make([]string, 0),
		Values:  make(map[string][]*float64),
	}
	stats := &Stats{}

	for _, slot := range slots {
		if slot.skipped {
			stats.EntitiesSkipped++
			continue
		}
		for _, column := range slot.columns {
			if _, exists := merged.Values[column]; exists {
				e.log.WithField("column", column).Warn("Duplicate derived column, keeping first")
				continue
			}
			merged.Columns = append(merged.Columns, column)
			merged.Values[column] = slot.values[column]
		}
		stats.EntitiesMerged++
		stats.Columns += len(slot.columns)
	}

	observability.AlignmentEntitiesMerged.Set(float64(stats.EntitiesMerged))
	observability.AlignmentColumnsProduced.Set(float64(stats.Columns))
	observability.RunSkipsTotal.WithLabelValues("alignment").Add(float64(stats.EntitiesSkipped))

	e.log.WithFields(logrus.Fields{
		"entities": stats.EntitiesMerged,
		"skipped":  stats.EntitiesSkipped,
		"columns":  stats.Columns,
		"rows":     grid.Len(),
	}).Info("Alignment complete")

	return merged, stats, nil
}

// alignEntity resamples one entity into its result slot. Failures are
// contained: a panic during resample skips the entity instead of aborting
// the run.
func (e *Engine) alignEntity(grid *Grid, entity Entity) (result entityResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{
				"entity": entity.ID,
				"panic":  r,
			}).Warn("Entity alignment failed, skipping")
			result = entityResult{skipped: true}
		}
	}()

	numericColumns := entity.Table.NumericColumns()
	if len(numericColumns) == 0 {
		e.log.WithField("entity", entity.ID).Debug("No numeric columns, skipping entity")
		return entityResult{skipped: true}
	}

	policy := e.cfg.PolicyFor(entity.Category)
	result = entityResult{
		columns: make([]string, 0, len(numericColumns)),
		values:  make(map[string][]*float64, len(numericColumns)),
	}

	for _, column := range numericColumns {
		obs := make([]observation, 0, len(entity.Table.Rows))
		for i := range entity.Table.Rows {
			row := &entity.Table.Rows[i]
			if v, ok := row.NumericValue(column); ok {
				obs = append(obs, observation{ts: row.Timestamp, value: v})
			}
		}
		if len(obs) == 0 {
			continue
		}

		var series []*float64
		switch policy {
		case ForwardFill:
			series = reindexForward(grid, bucketLast(obs, grid.Step))
		case NearestMean:
			series = reindexNearest(grid, bucketMean(obs, grid.Step))
		}

		derived := DeriveColumnName(entity.Category, entity.ID, column)
		result.columns = append(result.columns, derived)
		result.values[derived] = series
	}

	if len(result.columns) == 0 {
		return entityResult{skipped: true}
	}

	return result
}

// DeriveColumnName builds the canonical derived column name:
// lowercase({category}_{entityLocal}_{field}) with whitespace replaced by
// underscores. The category prefix is stripped from the entity identifier.
func DeriveColumnName(category, entityID, field string) string {
	local := strings.TrimPrefix(entityID, category+"_")
	name := fmt.Sprintf("%s_%s_%s", category, local, field)

	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}
