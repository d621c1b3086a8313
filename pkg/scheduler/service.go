package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/chimeradata/chimera/pkg/tasks"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service defines the public interface for the scheduler
type Service interface {
	// Start registers all configured schedules and starts the cron loop
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler
	Stop() error
}

// Enqueuer is the queue surface the scheduler drives.
type Enqueuer interface {
	EnqueueIngest(category, trigger string, opts ...asynq.Option) error
	EnqueuePipeline(taskType, trigger string, opts ...asynq.Option) error
}

// service triggers ingestion and pipeline tasks on their cron schedules.
// Tasks it enqueues deduplicate by task ID, so a slow run is never stacked
// behind a second copy of itself.
type service struct {
	log   logrus.FieldLogger
	cfg   *Config
	queue Enqueuer
	cron  *cron.Cron
}

// NewService creates a new scheduler service
func NewService(log logrus.FieldLogger, cfg *Config, queue Enqueuer) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &service{
		log:   log.WithField("service", "scheduler"),
		cfg:   cfg,
		queue: queue,
		cron:  cron.New(cron.WithLocation(time.UTC)),
	}, nil
}

// Start registers all configured schedules and starts the cron loop
func (s *service) Start(_ context.Context) error {
	registered, err := s.registerSchedules()
	if err != nil {
		return err
	}

	s.cron.Start()

	s.log.WithField("schedules", registered).Info("Scheduler service started")

	return nil
}

// Stop gracefully shuts down the scheduler. Blocks until any in-flight
// enqueue callbacks return.
func (s *service) Stop() error {
	<-s.cron.Stop().Done()

	s.log.Info("Scheduler service stopped successfully")

	return nil
}

func (s *service) registerSchedules() (int, error) {
	registered := 0

	categories := make([]string, 0, len(s.cfg.Ingest))
	for category := range s.cfg.Ingest {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		expr := s.cfg.Ingest[category]
		if expr == "" {
			continue
		}

		if err := s.addJob(expr, tasks.TypeIngest(category), func() error {
			return s.queue.EnqueueIngest(category, tasks.TriggerSchedule)
		}); err != nil {
			return registered, err
		}
		registered++
	}

	if s.cfg.Alignment != "" {
		if err := s.addJob(s.cfg.Alignment, tasks.TypePipelineAlignment, func() error {
			return s.queue.EnqueuePipeline(tasks.TypePipelineAlignment, tasks.TriggerSchedule)
		}); err != nil {
			return registered, err
		}
		registered++
	}

	if s.cfg.Correlation != "" {
		if err := s.addJob(s.cfg.Correlation, tasks.TypePipelineCorrelation, func() error {
			return s.queue.EnqueuePipeline(tasks.TypePipelineCorrelation, tasks.TriggerSchedule)
		}); err != nil {
			return registered, err
		}
		registered++
	}

	return registered, nil
}

func (s *service) addJob(expr, taskType string, enqueue func() error) error {
	log := s.log.WithFields(logrus.Fields{
		"task_type": taskType,
		"schedule":  expr,
	})

	_, err := s.cron.AddFunc(expr, func() {
		if err := enqueue(); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				log.Debug("Task already queued, skipping")

				return
			}

			log.WithError(err).Error("Failed to enqueue scheduled task")

			return
		}

		log.Debug("Enqueued scheduled task")
	})
	if err != nil {
		return fmt.Errorf("failed to register schedule for %s: %w", taskType, err)
	}

	log.Info("Registered schedule")

	return nil
}

// Ensure service implements the interface
var _ Service = (*service)(nil)
