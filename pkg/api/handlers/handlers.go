// Package handlers implements the request handlers for the Chimera API.
package handlers

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/chimeradata/chimera/pkg/objectstore"
	"github.com/chimeradata/chimera/pkg/pipeline"
	"github.com/chimeradata/chimera/pkg/registry"
	"github.com/chimeradata/chimera/pkg/tasks"
	"github.com/gofiber/fiber/v3"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// RegistryReader is the registry surface the API reads from.
type RegistryReader interface {
	Status(ctx context.Context) ([]registry.SourceStatus, error)
	Entities(ctx context.Context, category string) ([]string, error)
	Latest(ctx context.Context, category string) ([]registry.Record, error)
}

// Enqueuer is the queue surface used by the manual trigger routes.
type Enqueuer interface {
	EnqueueIngest(category, trigger string, opts ...asynq.Option) error
	EnqueuePipeline(taskType, trigger string, opts ...asynq.Option) error
}

// Server holds the handler dependencies.
type Server struct {
	log      logrus.FieldLogger
	registry RegistryReader
	store    objectstore.Store
	queue    Enqueuer
}

// NewServer creates a new API handler set.
func NewServer(log logrus.FieldLogger, reg RegistryReader, store objectstore.Store, queue Enqueuer) *Server {
	return &Server{
		log:      log.WithField("component", "api.handlers"),
		registry: reg,
		store:    store,
		queue:    queue,
	}
}

// Register mounts every route on the given router.
func (s *Server) Register(router fiber.Router) {
	router.Get("/health", s.GetHealth)
	router.Get("/status", s.GetStatus)
	router.Get("/sources", s.GetSources)
	router.Get("/data/:source", s.GetSourceData)
	router.Post("/ingest/:source", s.PostIngest)
	router.Post("/analyze", s.PostAnalyze)
	router.Get("/aligned/latest", s.GetAlignedLatest)
	router.Get("/correlations/latest", s.GetCorrelationsLatest)
}

// GetHealth reports liveness.
func (s *Server) GetHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// GetStatus reports the per-category ingestion state.
func (s *Server) GetStatus(c fiber.Ctx) error {
	statuses, err := s.registry.Status(c.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to read registry status")

		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"sources": statuses})
}

// GetSources lists the known source categories and their registered entities.
func (s *Server) GetSources(c fiber.Ctx) error {
	sources := make(map[string][]string, len(registry.SourceCategories))

	for _, category := range registry.SourceCategories {
		entities, err := s.registry.Entities(c.Context(), category)
		if err != nil {
			s.log.WithError(err).WithField("category", category).Error("Failed to list entities")

			return fiber.ErrInternalServerError
		}
		sources[category] = entities
	}

	return c.JSON(fiber.Map{"sources": sources})
}

// GetSourceData returns the latest ingestion records of one source category.
func (s *Server) GetSourceData(c fiber.Ctx) error {
	category := c.Params("source")
	if !slices.Contains(registry.SourceCategories, category) {
		return ErrUnknownSource
	}

	records, err := s.registry.Latest(c.Context(), category)
	if err != nil {
		s.log.WithError(err).WithField("category", category).Error("Failed to resolve latest records")

		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{
		"source":  category,
		"records": records,
	})
}

// PostIngest enqueues an ingestion task for one source category.
func (s *Server) PostIngest(c fiber.Ctx) error {
	category := c.Params("source")
	if !slices.Contains(registry.SourceCategories, category) {
		return ErrUnknownSource
	}

	if err := s.queue.EnqueueIngest(category, tasks.TriggerManual); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return ErrRunInProgress
		}

		s.log.WithError(err).WithField("category", category).Error("Failed to enqueue ingestion")

		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"enqueued": tasks.TypeIngest(category),
	})
}

// PostAnalyze enqueues an alignment run followed by a correlation run.
func (s *Server) PostAnalyze(c fiber.Ctx) error {
	enqueued := make([]string, 0, 2)

	for _, taskType := range []string{tasks.TypePipelineAlignment, tasks.TypePipelineCorrelation} {
		if err := s.queue.EnqueuePipeline(taskType, tasks.TriggerManual); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}

			s.log.WithError(err).WithField("task_type", taskType).Error("Failed to enqueue pipeline task")

			return fiber.ErrInternalServerError
		}
		enqueued = append(enqueued, taskType)
	}

	if len(enqueued) == 0 {
		return ErrRunInProgress
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"enqueued": enqueued,
	})
}

// GetAlignedLatest serves the most recent aligned dataset verbatim.
func (s *Server) GetAlignedLatest(c fiber.Ctx) error {
	return s.serveArtifact(c, pipeline.AlignedLatestKey)
}

// GetCorrelationsLatest serves the most recent correlation report verbatim.
func (s *Server) GetCorrelationsLatest(c fiber.Ctx) error {
	return s.serveArtifact(c, pipeline.CorrelationsLatestKey)
}

func (s *Server) serveArtifact(c fiber.Ctx, key string) error {
	payload, err := s.store.Get(c.Context(), key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return ErrArtifactNotFound
		}

		s.log.WithError(err).WithField("key", key).Error("Failed to load artifact")

		return fiber.ErrInternalServerError
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Send(payload)
}
