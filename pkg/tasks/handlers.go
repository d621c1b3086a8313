package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chimeradata/chimera/pkg/ingest"
	"github.com/chimeradata/chimera/pkg/pipeline"
	"github.com/chimeradata/chimera/pkg/registry"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Ingestor runs ingestion for one source category.
type Ingestor interface {
	Run(ctx context.Context, category string) (*ingest.Summary, error)
}

// PipelineRunner runs the batch pipeline stages.
type PipelineRunner interface {
	RunAlignment(ctx context.Context) (*pipeline.AlignmentResult, error)
	RunCorrelation(ctx context.Context) (*pipeline.CorrelationResult, error)
}

// TaskHandler executes queued tasks against the ingestion and pipeline services.
type TaskHandler struct {
	log      logrus.FieldLogger
	ingestor Ingestor
	pipeline PipelineRunner
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(log logrus.FieldLogger, ingestor Ingestor, runner PipelineRunner) *TaskHandler {
	return &TaskHandler{
		log:      log.WithField("component", "task-handler"),
		ingestor: ingestor,
		pipeline: runner,
	}
}

// HandleIngest handles per-category ingestion tasks.
func (h *TaskHandler) HandleIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	log := h.log.WithFields(logrus.Fields{
		"category": payload.Category,
		"trigger":  payload.Trigger,
	})
	log.Info("Starting ingestion task")

	start := time.Now()

	summary, err := h.ingestor.Run(ctx, payload.Category)
	if err != nil {
		log.WithError(err).Error("Ingestion task failed")

		return fmt.Errorf("ingestion failed: %w", err)
	}

	log.WithFields(logrus.Fields{
		"fetched":  summary.Fetched,
		"failed":   summary.Failed,
		"duration": time.Since(start),
	}).Info("Ingestion task completed")

	return nil
}

// HandlePipeline handles alignment and correlation tasks.
func (h *TaskHandler) HandlePipeline(ctx context.Context, t *asynq.Task) error {
	var payload PipelinePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	log := h.log.WithFields(logrus.Fields{
		"stage":   payload.Stage,
		"trigger": payload.Trigger,
	})
	log.Info("Starting pipeline task")

	start := time.Now()

	switch t.Type() {
	case TypePipelineAlignment:
		result, err := h.pipeline.RunAlignment(ctx)
		if err != nil {
			log.WithError(err).Error("Alignment task failed")

			return fmt.Errorf("alignment failed: %w", err)
		}

		log.WithFields(logrus.Fields{
			"run_id":   result.RunID,
			"columns":  result.Columns,
			"duration": time.Since(start),
		}).Info("Alignment task completed")
	case TypePipelineCorrelation:
		result, err := h.pipeline.RunCorrelation(ctx)
		if err != nil {
			log.WithError(err).Error("Correlation task failed")

			return fmt.Errorf("correlation failed: %w", err)
		}

		log.WithFields(logrus.Fields{
			"run_id":   result.RunID,
			"found":    result.Found,
			"duration": time.Since(start),
		}).Info("Correlation task completed")
	default:
		return fmt.Errorf("unexpected pipeline task type %q", t.Type())
	}

	return nil
}

// Routes returns the task handler routes for Asynq.
func (h *TaskHandler) Routes() map[string]asynq.HandlerFunc {
	routes := map[string]asynq.HandlerFunc{
		TypePipelineAlignment:   h.HandlePipeline,
		TypePipelineCorrelation: h.HandlePipeline,
	}

	for _, category := range registry.SourceCategories {
		routes[TypeIngest(category)] = h.HandleIngest
	}

	return routes
}
