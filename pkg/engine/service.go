package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chimeradata/chimera/pkg/alignment"
	"github.com/chimeradata/chimera/pkg/api"
	"github.com/chimeradata/chimera/pkg/api/handlers"
	"github.com/chimeradata/chimera/pkg/correlation"
	"github.com/chimeradata/chimera/pkg/ingest"
	"github.com/chimeradata/chimera/pkg/objectstore"
	"github.com/chimeradata/chimera/pkg/observability"
	"github.com/chimeradata/chimera/pkg/pipeline"
	r "github.com/chimeradata/chimera/pkg/redis"
	"github.com/chimeradata/chimera/pkg/registry"
	"github.com/chimeradata/chimera/pkg/scheduler"
	"github.com/chimeradata/chimera/pkg/tasks"
	"github.com/chimeradata/chimera/pkg/worker"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Service wires every Chimera component together for the serve command.
type Service struct {
	config *Config
	log    *logrus.Logger

	store     objectstore.Store
	registry  *registry.Registry
	ingestor  *ingest.Service
	pipeline  *pipeline.Service
	queue     *tasks.QueueManager
	scheduler scheduler.Service
	worker    worker.Service
	api       api.Service

	healthServer *http.Server

	redisClient *redis.Client
}

// NewService creates a fully wired engine service from configuration.
func NewService(log *logrus.Logger, cfg *Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	redisOptions, err := cfg.Redis.Options()
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisClient := redis.NewClient(redisOptions)

	store := objectstore.NewRedisStore(redisClient, cfg.Redis.Prefix)
	reg := registry.New(log, redisClient, cfg.Redis.Prefix)

	ingestor, err := ingest.NewService(log, &cfg.Ingest, store, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest service: %w", err)
	}

	aligner, err := alignment.NewEngine(log, &cfg.Alignment)
	if err != nil {
		return nil, fmt.Errorf("failed to create alignment engine: %w", err)
	}

	correlator, err := correlation.NewEngine(log, &cfg.Correlation)
	if err != nil {
		return nil, fmt.Errorf("failed to create correlation engine: %w", err)
	}

	pipelineService := pipeline.NewService(log, aligner, correlator, store, reg)

	queue := tasks.NewQueueManager(r.NewAsynqRedisOptions(redisOptions), cfg.Redis.Prefix)

	handler := tasks.NewTaskHandler(log, ingestor, pipelineService)

	workerService, err := worker.NewService(log, &cfg.Worker, handler, redisOptions, cfg.Redis.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker service: %w", err)
	}

	schedulerService, err := scheduler.NewService(log, &cfg.Scheduler, queue)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler service: %w", err)
	}

	apiService := api.NewService(log, &cfg.API, handlers.NewServer(log, reg, store, queue))

	return &Service{
		log:    log,
		config: cfg,

		redisClient: redisClient,
		store:       store,
		registry:    reg,
		ingestor:    ingestor,
		pipeline:    pipelineService,
		queue:       queue,
		scheduler:   schedulerService,
		worker:      workerService,
		api:         apiService,
	}, nil
}

// Pipeline exposes the pipeline service for one-shot commands.
func (a *Service) Pipeline() *pipeline.Service {
	return a.pipeline
}

// Ingestor exposes the ingest service for one-shot commands.
func (a *Service) Ingestor() *ingest.Service {
	return a.ingestor
}

// Start initializes and starts every component.
func (a *Service) Start() error {
	a.log.Info("Starting Chimera engine...")

	ctx := context.Background()

	observability.StartMetricsServer(a.log, a.config.MetricsAddr)
	a.log.WithField("addr", a.config.MetricsAddr).Info("Started metrics server")

	if a.config.HealthCheckAddr != "" {
		a.startHealthCheck()
	}

	if err := a.worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if err := a.api.Start(ctx); err != nil {
		return fmt.Errorf("failed to start API service: %w", err)
	}

	a.log.Info("Chimera engine started successfully")

	return nil
}

// Stop gracefully shuts down every component.
func (a *Service) Stop() error {
	a.log.Info("Shutting down Chimera engine...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopService := func(name string, stopFunc func() error) {
		if stopFunc == nil {
			return
		}
		if err := stopFunc(); err != nil {
			a.log.WithError(err).Errorf("Failed to stop %s", name)
		}
	}

	// Scheduler first so no new tasks appear, then the worker drains, then
	// the API, then the shared Redis connections.
	if a.scheduler != nil {
		stopService("scheduler service", a.scheduler.Stop)
	}

	if a.worker != nil {
		stopService("worker service", a.worker.Stop)
	}

	if a.api != nil {
		stopService("API service", a.api.Stop)
	}

	if a.queue != nil {
		stopService("queue manager", a.queue.Close)
	}

	if a.redisClient != nil {
		stopService("Redis client", a.redisClient.Close)
	}

	if a.healthServer != nil {
		stopService("health check server", func() error { return a.healthServer.Shutdown(ctx) })
	}

	return nil
}

func (a *Service) startHealthCheck() {
	a.log.WithField("addr", a.config.HealthCheckAddr).Info("Starting health check server")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	a.healthServer = &http.Server{
		Addr:              a.config.HealthCheckAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Health check server failed")
		}
	}()
}
