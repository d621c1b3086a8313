package worker

import (
	"context"
	"fmt"
	"sync"

	r "github.com/chimeradata/chimera/pkg/redis"
	"github.com/chimeradata/chimera/pkg/tasks"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Service defines the public interface for the worker service
type Service interface {
	// Start initializes and starts the worker service
	Start(ctx context.Context) error

	// Stop gracefully shuts down the worker service
	Stop() error
}

// service encapsulates the worker application logic
type service struct {
	config  *Config
	log     logrus.FieldLogger
	handler *tasks.TaskHandler

	redisOpt    *redis.Options
	queuePrefix string

	wg     sync.WaitGroup
	server *asynq.Server
}

// NewService creates a new worker service. The handler decides which task
// types exist; the worker only provides the serving loop.
func NewService(log logrus.FieldLogger, cfg *Config, handler *tasks.TaskHandler, redisOpt *redis.Options, queuePrefix string) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &service{
		log:         log.WithField("service", "worker"),
		config:      cfg,
		handler:     handler,
		redisOpt:    redisOpt,
		queuePrefix: queuePrefix,
	}, nil
}

// Start initializes and starts the worker service
func (s *service) Start(_ context.Context) error {
	// Pipeline runs are heavier than ingestion fetches, give them priority
	queues := map[string]int{
		s.queueName(tasks.QueuePipeline): 6,
		s.queueName(tasks.QueueIngest):   4,
	}

	s.log.WithFields(logrus.Fields{
		"concurrency": s.config.Concurrency,
		"queues":      queues,
	}).Info("Starting worker service")

	srv := asynq.NewServer(r.NewAsynqRedisOptions(s.redisOpt), asynq.Config{
		Concurrency: s.config.Concurrency,
		Queues:      queues,
	})

	mux := asynq.NewServeMux()
	for taskType, handlerFunc := range s.handler.Routes() {
		mux.HandleFunc(taskType, handlerFunc)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if runErr := srv.Run(mux); runErr != nil {
			s.log.WithError(runErr).Error("Worker server stopped with error")
		}
	}()

	s.server = srv

	s.log.Info("Worker service started successfully")

	return nil
}

// Stop gracefully shuts down the worker service
func (s *service) Stop() error {
	if s.server != nil {
		s.server.Shutdown()
	}

	s.wg.Wait()

	s.log.Info("Worker service stopped successfully")

	return nil
}

func (s *service) queueName(queue string) string {
	if s.queuePrefix == "" {
		return queue
	}

	return s.queuePrefix + ":" + queue
}

// Ensure service implements the interface
var _ Service = (*service)(nil)
